// Command lumen-uci is the UCI front end of the Lumen chess engine.
package main

import (
	"os"
	"path/filepath"

	"github.com/op/go-logging"

	"github.com/hailam/lumen/internal/engine"
	"github.com/hailam/lumen/internal/nnue"
	"github.com/hailam/lumen/internal/storage"
	"github.com/hailam/lumen/internal/uci"
)

var log = logging.MustGetLogger("lumen")

func main() {
	setupLogging()

	store := openStore()
	defer store.Close()

	opts := store.LoadOptions()

	tt := engine.NewTranspositionTable(opts.HashMB)

	// Start on a reproducible placeholder network; EvalFile replaces it.
	net := &nnue.Network{}
	net.InitRandom(0x1CEB00DA)
	if opts.EvalFile != "" {
		if loaded, err := nnue.LoadFile(opts.EvalFile); err == nil {
			net = loaded
			log.Infof("network restored from %s", opts.EvalFile)
		} else {
			log.Warningf("persisted EvalFile unusable: %v", err)
		}
	}

	shared := engine.NewSearchSharedState(tt, net, opts.Threads)
	shared.MultiPV = opts.MultiPV
	shared.Chess960 = opts.Chess960
	if opts.SyzygyProbeDepth >= 1 {
		shared.TBProbeDepth = opts.SyzygyProbeDepth
	}

	handler := uci.New(shared, store, os.Stdout)
	os.Exit(handler.Run(os.Stdin))
}

// setupLogging routes every logger to stderr so stdout carries nothing but
// protocol lines.
func setupLogging() {
	backend := logging.NewLogBackend(os.Stderr, "", 0)
	formatted := logging.NewBackendFormatter(backend,
		logging.MustStringFormatter(`%{time:15:04:05.000} %{module} %{level:.4s} %{message}`))
	leveled := logging.AddModuleLevel(formatted)
	leveled.SetLevel(logging.WARNING, "")
	if os.Getenv("LUMEN_DEBUG") != "" {
		leveled.SetLevel(logging.DEBUG, "")
	}
	logging.SetBackend(leveled)
}

// openStore opens the settings database under the user config directory.
// Any failure degrades to a nil store, which disables persistence only.
func openStore() *storage.Store {
	base, err := os.UserConfigDir()
	if err != nil {
		log.Warningf("no config directory: %v", err)
		return nil
	}
	dir := filepath.Join(base, "lumen")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Warningf("cannot create %s: %v", dir, err)
		return nil
	}
	store, err := storage.Open(dir)
	if err != nil {
		log.Warningf("settings store unavailable: %v", err)
		return nil
	}
	return store
}
