// Package config loads server and simulation defaults from a YAML file.
// Grounded on reinforcement.FromYaml's two-pass decode: viper reads the
// file into an outer document, the selected section is re-marshaled and
// decoded again with yaml.v3 into a concrete struct, which keeps the file
// format free to carry unrelated top-level sections without coupling this
// package's struct tags to viper's own mapstructure conventions.
package config

import (
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Defaults mirrors the default request parameters named in the simulation
// API: grid size, generation mode, drone/target counts, sensing/comm
// ranges, and step budget.
type Defaults struct {
	Width      int     `yaml:"width"`
	Height     int     `yaml:"height"`
	MapType    string  `yaml:"map_type"`
	Complexity float64 `yaml:"complexity"`
	RoomSize   int     `yaml:"room_size"`
	NumRooms   int     `yaml:"num_rooms"`
	NumDrones  int     `yaml:"num_drones"`
	NumTargets int     `yaml:"num_targets"`
	SensorRange int    `yaml:"sensor_range"`
	CommRange   int    `yaml:"comm_range"`
	MaxSteps    int    `yaml:"max_steps"`
}

// Server holds HTTP and worker-pool settings.
type Server struct {
	Addr       string `yaml:"addr"`
	DataDir    string `yaml:"data_dir"`
	MaxWorkers int    `yaml:"max_workers"`
}

// Config is the full decoded application configuration.
type Config struct {
	Defaults Defaults `yaml:"defaults"`
	Server   Server   `yaml:"server"`
}

// outerDoc mirrors reinforcement.OuterConfig's kind/def envelope, letting
// one YAML file hold sections for multiple subsystems without this
// package needing to know about them.
type outerDoc struct {
	Kind string      `mapstructure:"kind"`
	Def  interface{} `mapstructure:"def"`
}

// DefaultConfig returns a Config populated with the documented defaults (spec
// §6): a 100x100 random map, complexity 0.67, one drone, one target,
// sensor range 3, comm range 20, 500 max steps.
func DefaultConfig() Config {
	return Config{
		Defaults: Defaults{
			Width: 100, Height: 100, MapType: "random", Complexity: 0.67,
			RoomSize: 15, NumRooms: 10, NumDrones: 1, NumTargets: 1,
			SensorRange: 3, CommRange: 20, MaxSteps: 500,
		},
		Server: Server{Addr: ":8080", DataDir: "./data", MaxWorkers: 0},
	}
}

// FromYaml reads path via viper, re-marshals its "def" section, and decodes
// it into a Config. Any field the file omits keeps its DefaultConfig value
// since decoding starts from a pre-populated struct.
func FromYaml(path string) (*Config, error) {
	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	vp.AddConfigPath(filepath.Dir(path))
	if err := vp.ReadInConfig(); err != nil {
		return nil, err
	}

	outer := &outerDoc{}
	if err := vp.Unmarshal(outer); err != nil {
		return nil, err
	}

	spec, err := yaml.Marshal(outer.Def)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(spec, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
