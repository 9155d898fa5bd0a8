package tablebase

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/op/go-logging"

	"github.com/hailam/lumen/internal/board"
)

var log = logging.MustGetLogger("lumen.tablebase")

// SyzygyProber scans a directory of .rtbw/.rtbz files to learn which piece
// counts are covered. Decoding the table files is delegated to a pluggable
// backend; without one, probes report not-found and the search proceeds on
// its own, which is the contract for a missing or unreadable table.
type SyzygyProber struct {
	mu        sync.RWMutex
	path      string
	maxPieces int
	backend   Prober // optional decoding backend
}

// NewSyzygyProber scans path and returns a prober for it.
func NewSyzygyProber(path string) *SyzygyProber {
	sp := &SyzygyProber{path: path}
	sp.refresh()
	return sp
}

// SetBackend installs a decoding backend for the scanned files.
func (sp *SyzygyProber) SetBackend(p Prober) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	sp.backend = p
}

// refresh rescans the directory for table files.
func (sp *SyzygyProber) refresh() {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	sp.maxPieces = 0
	entries, err := os.ReadDir(sp.path)
	if err != nil {
		log.Warningf("syzygy path %s unreadable: %v", sp.path, err)
		return
	}

	for _, e := range entries {
		name := e.Name()
		ext := filepath.Ext(name)
		if ext != ".rtbw" && ext != ".rtbz" {
			continue
		}
		// Material signatures look like KQvKR: piece count is the letter
		// count minus the separator.
		sig := strings.TrimSuffix(name, ext)
		pieces := len(strings.ReplaceAll(sig, "v", ""))
		if pieces > sp.maxPieces {
			sp.maxPieces = pieces
		}
	}

	if sp.maxPieces > 0 {
		log.Infof("syzygy tables for up to %d pieces at %s", sp.maxPieces, sp.path)
	} else {
		log.Warningf("no syzygy tables found at %s", sp.path)
	}
}

// Available implements Prober.
func (sp *SyzygyProber) Available() bool {
	sp.mu.RLock()
	defer sp.mu.RUnlock()
	return sp.maxPieces > 0
}

// MaxPieces implements Prober.
func (sp *SyzygyProber) MaxPieces() int {
	sp.mu.RLock()
	defer sp.mu.RUnlock()
	return sp.maxPieces
}

// Probe implements Prober.
func (sp *SyzygyProber) Probe(b *board.BoardState) ProbeResult {
	sp.mu.RLock()
	backend := sp.backend
	max := sp.maxPieces
	sp.mu.RUnlock()

	if backend == nil || CountPieces(b) > max {
		return ProbeResult{}
	}
	return backend.Probe(b)
}

// ProbeRoot implements Prober.
func (sp *SyzygyProber) ProbeRoot(b *board.BoardState) ProbeResult {
	sp.mu.RLock()
	backend := sp.backend
	max := sp.maxPieces
	sp.mu.RUnlock()

	if backend == nil || CountPieces(b) > max {
		return ProbeResult{}
	}
	return backend.ProbeRoot(b)
}
