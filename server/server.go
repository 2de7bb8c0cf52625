// Package server exposes the simulation, benchmark, compare, and history
// endpoints over HTTP, routed with gorilla/mux. Follows a handler-method-
// on-Server shape with a websocket upgrade path, generalized from a
// single-page single-client view server to a multi-endpoint JSON API with
// a streamed job-progress websocket.
package server

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"reconsim/config"
	"reconsim/engine"
	"reconsim/policy"
	"reconsim/scheduler"
	"reconsim/server/streaming"
	"reconsim/worldmap"
)

// Request-count bounds enforced by validateConfig, spec §7's BadRequest
// contract ("malformed inputs, out-of-range counts... fail the request; do
// not create a job").
const (
	minWidth, maxWidth     = 10, 500
	minHeight, maxHeight   = 10, 500
	minDrones, maxDrones   = 1, 10
	minTargets, maxTargets = 1, 20
)

// validateConfig rejects out-of-range grid/drone/target counts before a
// simulation or job is ever started.
func validateConfig(cfg engine.Config) error {
	if cfg.Width < minWidth || cfg.Width > maxWidth {
		return fmt.Errorf("server: width %d out of range [%d,%d]", cfg.Width, minWidth, maxWidth)
	}
	if cfg.Height < minHeight || cfg.Height > maxHeight {
		return fmt.Errorf("server: height %d out of range [%d,%d]", cfg.Height, minHeight, maxHeight)
	}
	if cfg.NumDrones < minDrones || cfg.NumDrones > maxDrones {
		return fmt.Errorf("server: num_drones %d out of range [%d,%d]", cfg.NumDrones, minDrones, maxDrones)
	}
	if cfg.NumTargets < minTargets || cfg.NumTargets > maxTargets {
		return fmt.Errorf("server: num_targets %d out of range [%d,%d]", cfg.NumTargets, minTargets, maxTargets)
	}
	return nil
}

// validatePolicyName rejects any policy name not present in the registry,
// the other half of spec §7's BadRequest contract ("selected policies not
// registered").
func (s *Server) validatePolicyName(name string) error {
	if _, ok := s.policies.Get(name); !ok {
		return fmt.Errorf("server: policy %q is not registered", name)
	}
	return nil
}

// Server wires the policy registry, job scheduler, and persistence store
// to an HTTP router.
type Server struct {
	addr     string
	router   *mux.Router
	policies *policy.Registry
	jobs     *scheduler.Registry
	store    Store
	defaults config.Defaults
}

// New builds a Server ready to Serve, with every spec §6 route registered.
func New(addr string, defaults config.Defaults, store Store) *Server {
	s := &Server{
		addr:     addr,
		router:   mux.NewRouter(),
		policies: policy.NewRegistry(),
		jobs:     scheduler.NewRegistry(),
		store:    store,
		defaults: defaults,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/policies", s.handlePolicies).Methods(http.MethodGet)
	api.HandleFunc("/simulate", s.handleSimulate).Methods(http.MethodPost)
	api.HandleFunc("/benchmark", s.handleBenchmark).Methods(http.MethodPost)
	api.HandleFunc("/compare", s.handleCompare).Methods(http.MethodPost)
	api.HandleFunc("/job/{id}", s.handleJob).Methods(http.MethodGet)
	api.HandleFunc("/ws/job/{id}", s.handleJobStream).Methods(http.MethodGet)
	api.HandleFunc("/history", s.handleHistoryList).Methods(http.MethodGet)
	api.HandleFunc("/history/{folder}", s.handleHistoryGet).Methods(http.MethodGet)
	api.HandleFunc("/history/{folder}/download", s.handleHistoryDownload).Methods(http.MethodGet)
	api.HandleFunc("/simulation/{folder}", s.handleHistoryGet).Methods(http.MethodGet)
}

// Serve blocks, listening on s.addr.
func (s *Server) Serve() error {
	if err := http.ListenAndServe(s.addr, s.router); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handlePolicies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"policies": s.policies.Names()})
}

// simulateRequest is the POST /api/simulate body; any omitted field falls
// back to the configured Defaults.
type simulateRequest struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	MapType     string  `json:"map_type"`
	Complexity  float64 `json:"complexity"`
	RoomSize    int     `json:"room_size"`
	NumRooms    int     `json:"num_rooms"`
	NumDrones   int     `json:"num_drones"`
	NumTargets  int     `json:"num_targets"`
	Policy      string  `json:"policy"`
	Seed        int64   `json:"seed"`
	SensorRange int     `json:"sensor_range"`
	CommRange   int     `json:"comm_range"`
	MaxSteps    int     `json:"max_steps"`
	Battery     int     `json:"battery"`
}

func (req simulateRequest) toConfig(d config.Defaults) engine.Config {
	cfg := engine.Config{
		Width: d.Width, Height: d.Height, Complexity: d.Complexity,
		RoomSize: d.RoomSize, NumRooms: d.NumRooms, NumDrones: d.NumDrones,
		NumTargets: d.NumTargets, SensorRadius: d.SensorRange,
		CommRange: float64(d.CommRange),
		MapType:   worldmap.Random,
	}
	// MaxStepsOverride is left at 0 (engine.Config.maxSteps' 500*NumDrones
	// scaling rule) unless the caller explicitly names max_steps below;
	// config.Defaults.MaxSteps is a documented default for callers
	// constructing engine.Config directly, not a per-request override base.
	if req.Width > 0 {
		cfg.Width = req.Width
	}
	if req.Height > 0 {
		cfg.Height = req.Height
	}
	mapType := d.MapType
	if req.MapType != "" {
		mapType = req.MapType
	}
	if mapType == "floorplan" {
		cfg.MapType = worldmap.Floorplan
	}
	if req.Complexity > 0 {
		cfg.Complexity = req.Complexity
	}
	if req.RoomSize > 0 {
		cfg.RoomSize = req.RoomSize
	}
	if req.NumRooms > 0 {
		cfg.NumRooms = req.NumRooms
	}
	if req.NumDrones > 0 {
		cfg.NumDrones = req.NumDrones
	}
	if req.NumTargets > 0 {
		cfg.NumTargets = req.NumTargets
	}
	if req.SensorRange > 0 {
		cfg.SensorRadius = req.SensorRange
	}
	if req.CommRange > 0 {
		cfg.CommRange = float64(req.CommRange)
	}
	if req.MaxSteps > 0 {
		cfg.MaxStepsOverride = req.MaxSteps
	}
	if req.Battery > 0 {
		cfg.BatteryCapacity = req.Battery
	}
	cfg.PolicyName = req.Policy
	cfg.Seed = req.Seed
	return cfg
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var req simulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	cfg := req.toConfig(s.defaults)
	if err := validateConfig(cfg); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.validatePolicyName(cfg.PolicyName); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := engine.Run(cfg, s.policies)
	if err != nil {
		if errors.Is(err, engine.ErrUnknownPolicy) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	folder := fmt.Sprintf("%s_simulation_%s", time.Now().Format("20060102T150405"), cfg.PolicyName)
	rec := &Record{Folder: folder, Kind: "simulation", Label: cfg.PolicyName, Config: cfg, Metrics: result.Metrics, History: result.History}
	if err := s.store.Save(rec); err != nil {
		log.Printf("server: save simulation record: %v", err)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"folder": folder, "metrics": result.Metrics})
}

type batchRequest struct {
	simulateRequest
	NumRuns  int   `json:"num_runs"`
	BaseSeed int64 `json:"base_seed"`
}

func (s *Server) handleBenchmark(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.NumRuns <= 0 {
		req.NumRuns = 10
	}
	cfg := req.toConfig(s.defaults)
	if err := validateConfig(cfg); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.validatePolicyName(cfg.PolicyName); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	job := s.jobs.SubmitBenchmark(context.Background(), s.policies, scheduler.BenchmarkRequest{
		Template: cfg, NumRuns: req.NumRuns, BaseSeed: req.BaseSeed,
	})
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": job.ID})
}

type compareRequest struct {
	simulateRequest
	Policies []string `json:"policies"`
	NumRuns  int      `json:"num_runs"`
	BaseSeed int64    `json:"base_seed"`
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(req.Policies) == 0 {
		req.Policies = s.policies.Names()
	}
	if req.NumRuns <= 0 {
		req.NumRuns = 10
	}
	cfg := req.toConfig(s.defaults)
	if err := validateConfig(cfg); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	for _, name := range req.Policies {
		if err := s.validatePolicyName(name); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	job := s.jobs.SubmitCompare(context.Background(), s.policies, scheduler.CompareRequest{
		Template: cfg, PolicyNames: req.Policies, NumRuns: req.NumRuns, BaseSeed: req.BaseSeed,
	})
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": job.ID})
}

// jobSnapshot is the JSON-visible view of a scheduler.Job at one instant,
// used both by the polling GET /api/job/{id} handler and by the
// websocket-streamed progress updates.
type jobSnapshot struct {
	ID           string      `json:"id"`
	Status       string      `json:"status"`
	Done         int         `json:"done"`
	Total        int         `json:"total"`
	BestCoverage float64     `json:"best_coverage_so_far"`
	Result       interface{} `json:"result,omitempty"`
	Error        string      `json:"error,omitempty"`
}

func snapshotJob(job *scheduler.Job) jobSnapshot {
	done, total := job.Progress()
	snap := jobSnapshot{
		ID: job.ID, Status: string(job.StatusValue()), Done: done, Total: total,
		BestCoverage: job.BestCoverageSoFar(),
	}
	if snap.Status == string(scheduler.Completed) || snap.Status == string(scheduler.Failed) {
		result, err := job.Result()
		snap.Result = result
		if err != nil {
			snap.Error = err.Error()
		}
	}
	return snap
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	job, ok := s.jobs.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("no such job %q", id))
		return
	}
	writeJSON(w, http.StatusOK, snapshotJob(job))
}

// handleJobStream upgrades to a websocket and pushes jobSnapshot updates
// until the job finishes or the client disconnects. This endpoint
// supplements the polling GET /api/job/{id} route with a push channel so a
// dashboard need not poll a long-running benchmark.
func (s *Server) handleJobStream(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	job, ok := s.jobs.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("no such job %q", id))
		return
	}

	updates := make(chan jobSnapshot)
	done := make(chan struct{})
	go func() {
		defer close(updates)
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				snap := snapshotJob(job)
				select {
				case updates <- snap:
				case <-done:
					return
				}
				if snap.Status == string(scheduler.Completed) || snap.Status == string(scheduler.Failed) {
					return
				}
			}
		}
	}()

	client, err := streaming.NewClient(updates, w, r)
	if err != nil {
		close(done)
		return
	}
	if err := client.Sync(); err != nil {
		log.Printf("server: job stream %s: %v", id, err)
	}
	close(done)
}

func (s *Server) handleHistoryList(w http.ResponseWriter, r *http.Request) {
	folders, err := s.store.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"runs": folders})
}

func (s *Server) handleHistoryGet(w http.ResponseWriter, r *http.Request) {
	folder := mux.Vars(r)["folder"]
	rec, err := s.store.Load(folder)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleHistoryDownload(w http.ResponseWriter, r *http.Request) {
	folder := mux.Vars(r)["folder"]
	rec, err := s.store.Load(folder)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.csv", folder))
	if err := WriteCSV(csv.NewWriter(w), rec); err != nil {
		log.Printf("server: write csv for %s: %v", folder, err)
	}
}
