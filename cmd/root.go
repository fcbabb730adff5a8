package cmd

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/satchel-app/satchel/internal/conflict"
	"github.com/satchel-app/satchel/internal/config"
	"github.com/satchel-app/satchel/internal/connectivity"
	"github.com/satchel-app/satchel/internal/remote"
	"github.com/satchel-app/satchel/internal/store"
	"github.com/satchel-app/satchel/internal/syncer"
)

var (
	version string
	baseDir string
)

// SetVersion sets the version string shown by --version.
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

var rootCmd = &cobra.Command{
	Use:   "satchel",
	Short: "Offline-first student planner",
	Long: `satchel - An offline-first planner for assignments, timetables, and grades.

Every change works without a connection: mutations queue locally and replay
against the server when it is reachable, with field-level conflict resolution
when both sides changed the same record.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initBaseDir)

	rootCmd.AddGroup(
		&cobra.Group{ID: "planner", Title: "Planner Commands:"},
		&cobra.Group{ID: "sync", Title: "Sync Commands:"},
		&cobra.Group{ID: "system", Title: "System Commands:"},
	)
}

// initBaseDir resolves the directory holding the local store. SATCHEL_HOME
// overrides the home directory for tests and scripting.
func initBaseDir() {
	if dir := os.Getenv("SATCHEL_HOME"); dir != "" {
		baseDir = dir
		return
	}
	home, err := os.UserHomeDir()
	if err != nil {
		baseDir = "."
		return
	}
	baseDir = home
}

// openStore opens the local store for commands that need it.
func openStore() (*store.Store, error) {
	return store.Open(baseDir)
}

// buildSyncer wires a Syncer from config, auth, and the local store. The
// caller owns closing the store.
func buildSyncer(st *store.Store) (*syncer.Syncer, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	deviceID, err := config.GetDeviceID()
	if err != nil {
		return nil, err
	}

	timeout := remote.DefaultTimeout
	if cfg.Sync.TimeoutSec > 0 {
		timeout = time.Duration(cfg.Sync.TimeoutSec) * time.Second
	}
	client := remote.NewWithTimeout(config.GetServerURL(), config.GetAPIKey(), deviceID, timeout)

	tieBreak := conflict.SideServer
	if cfg.Sync.TieBreak == "client" {
		tieBreak = conflict.SideClient
	}

	syncCfg := syncer.Config{
		MaxRetries: cfg.Sync.MaxRetries,
		TieBreak:   tieBreak,
	}
	return syncer.New(st, client, nil, syncer.NewHub(), syncCfg), nil
}

// buildMonitoredSyncer is buildSyncer plus a health-probe connectivity
// monitor, for the long-running monitor command.
func buildMonitoredSyncer(st *store.Store) (*syncer.Syncer, *connectivity.Probe, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	deviceID, err := config.GetDeviceID()
	if err != nil {
		return nil, nil, err
	}

	timeout := remote.DefaultTimeout
	if cfg.Sync.TimeoutSec > 0 {
		timeout = time.Duration(cfg.Sync.TimeoutSec) * time.Second
	}
	serverURL := config.GetServerURL()
	client := remote.NewWithTimeout(serverURL, config.GetAPIKey(), deviceID, timeout)

	probe := connectivity.NewProbe(serverURL+"/healthz", 15*time.Second)

	tieBreak := conflict.SideServer
	if cfg.Sync.TieBreak == "client" {
		tieBreak = conflict.SideClient
	}

	s := syncer.New(st, client, probe, syncer.NewHub(), syncer.Config{
		MaxRetries: cfg.Sync.MaxRetries,
		TieBreak:   tieBreak,
	})
	return s, probe, nil
}
