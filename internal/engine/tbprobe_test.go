package engine

import (
	"sync/atomic"
	"testing"

	"github.com/hailam/lumen/internal/board"
	"github.com/hailam/lumen/internal/tablebase"
)

// countingProber records probe calls without ever answering, so the search
// proceeds normally while the test watches the gate.
type countingProber struct {
	probes atomic.Uint64
}

func (p *countingProber) Available() bool { return true }
func (p *countingProber) MaxPieces() int  { return 6 }

func (p *countingProber) Probe(*board.BoardState) tablebase.ProbeResult {
	p.probes.Add(1)
	return tablebase.ProbeResult{}
}

func (p *countingProber) ProbeRoot(*board.BoardState) tablebase.ProbeResult {
	p.probes.Add(1)
	return tablebase.ProbeResult{}
}

func TestSyzygyProbeDepthGate(t *testing.T) {
	fen := "4k3/8/8/8/8/8/4R3/4K3 w - - 0 1" // 3 pieces, no castling rights

	run := func(probeDepth int) uint64 {
		s := newTestShared(1)
		prober := &countingProber{}
		s.TB = prober
		s.TBProbeDepth = probeDepth
		searchFEN(t, s, fen, SearchLimits{Depth: 4})
		return prober.probes.Load()
	}

	if probes := run(1); probes == 0 {
		t.Error("probe depth 1 never reached the tablebase adapter")
	}
	// A gate above the search depth keeps the adapter out of the tree.
	if probes := run(100); probes != 0 {
		t.Errorf("probe depth 100 still probed %d times", probes)
	}
}
