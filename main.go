/*
reconsim simulates teams of exploring drones sweeping an unknown grid
looking for targets, under a choice of navigation policies, and serves the
results (single runs, multi-seed benchmarks, and cross-policy comparisons)
over an HTTP API.
*/
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"reconsim/config"
	"reconsim/server"
)

var (
	configPath *string
	addr       *string
	dataDir    *string
)

// TODO: per 12-factor rules these should also be overridable from env; KISS for now.
func init() {
	configPath = flag.String("config", "./config.yaml", "path to config.yaml")
	addr = flag.String("addr", "", "http listen address, overrides config.yaml's server.addr")
	dataDir = flag.String("data-dir", "", "history data directory, overrides config.yaml's server.data_dir")
	flag.Parse()
}

func loadConfig() config.Config {
	cfg, err := config.FromYaml(*configPath)
	if err != nil {
		log.Printf("main: no usable %s (%v), falling back to built-in defaults", *configPath, err)
		defaults := config.DefaultConfig()
		cfg = &defaults
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *dataDir != "" {
		cfg.Server.DataDir = *dataDir
	}
	return *cfg
}

func runApp() error {
	cfg := loadConfig()

	store, err := server.NewFileStore(cfg.Server.DataDir)
	if err != nil {
		return fmt.Errorf("main: opening data dir %s: %w", cfg.Server.DataDir, err)
	}

	srv := server.New(cfg.Server.Addr, cfg.Defaults, store)
	log.Printf("reconsim listening on %s, history under %s", cfg.Server.Addr, cfg.Server.DataDir)
	return srv.Serve()
}

func main() {
	if err := runApp(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
