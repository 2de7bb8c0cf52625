package server

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"reconsim/engine"
	"reconsim/history"
)

// Record is one persisted simulation or benchmark/compare run, named by a
// data/<timestamp>_<kind>_<label>/ folder per spec §6. encoding/json and
// encoding/csv are used here on the standard-library grounds documented in
// DESIGN.md: no third-party serialization library appears anywhere in the
// example pack.
type Record struct {
	Folder  string          `json:"folder"`
	Kind    string          `json:"kind"`
	Label   string          `json:"label"`
	Config  engine.Config   `json:"config"`
	Metrics engine.Metrics  `json:"metrics"`
	History *history.Recorder `json:"history,omitempty"`
}

// Store persists and retrieves Records. Implementations: a filesystem
// store for production use, and an in-memory store for tests.
type Store interface {
	Save(rec *Record) error
	List() ([]string, error)
	Load(folder string) (*Record, error)
}

// MemoryStore is a Store backed by a map, used in tests.
type MemoryStore struct {
	records map[string]*Record
	order   []string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]*Record{}}
}

func (s *MemoryStore) Save(rec *Record) error {
	if _, exists := s.records[rec.Folder]; !exists {
		s.order = append(s.order, rec.Folder)
	}
	s.records[rec.Folder] = rec
	return nil
}

func (s *MemoryStore) List() ([]string, error) {
	out := make([]string, len(s.order))
	copy(out, s.order)
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) Load(folder string) (*Record, error) {
	rec, ok := s.records[folder]
	if !ok {
		return nil, fmt.Errorf("server: no such record %q", folder)
	}
	return rec, nil
}

// FileStore persists Records as JSON under DataDir/<folder>/record.json.
type FileStore struct {
	DataDir string
}

// NewFileStore returns a FileStore rooted at dataDir, creating it if needed.
func NewFileStore(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	return &FileStore{DataDir: dataDir}, nil
}

func (s *FileStore) folderPath(folder string) string {
	return filepath.Join(s.DataDir, folder)
}

func (s *FileStore) Save(rec *Record) error {
	dir := s.folderPath(rec.Folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(dir, "record.json"))
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}

func (s *FileStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.DataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *FileStore) Load(folder string) (*Record, error) {
	f, err := os.Open(filepath.Join(s.folderPath(folder), "record.json"))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rec := &Record{}
	if err := json.NewDecoder(f).Decode(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// WriteCSV renders a Record's per-tick agent trail as CSV: one row per
// (tick, agent) pair, for spreadsheet-friendly download per spec §6.
func WriteCSV(w *csv.Writer, rec *Record) error {
	if err := w.Write([]string{"tick", "agent_id", "x", "y", "battery", "dead"}); err != nil {
		return err
	}
	if rec.History == nil {
		w.Flush()
		return w.Error()
	}
	for _, frame := range rec.History.Frames {
		for _, a := range frame.Agents {
			row := []string{
				strconv.Itoa(frame.Tick),
				strconv.Itoa(a.ID),
				strconv.Itoa(a.X),
				strconv.Itoa(a.Y),
				strconv.Itoa(a.Battery),
				strconv.FormatBool(a.Dead),
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
	}
	w.Flush()
	return w.Error()
}
