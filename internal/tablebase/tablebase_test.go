package tablebase

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hailam/lumen/internal/board"
)

func TestCountPieces(t *testing.T) {
	b, err := board.ParseFEN("4k3/8/8/8/8/8/4P3/4K3 w - - 0 1")
	if err != nil {
		t.Fatal(err)
	}
	if got := CountPieces(&b); got != 3 {
		t.Errorf("CountPieces = %d, want 3", got)
	}
}

func TestWDLToScore(t *testing.T) {
	if s := WDLToScore(WDLWin, 4); s <= 0 || s >= 29000-128 {
		t.Errorf("win score %d outside (0, mate range)", s)
	}
	if s := WDLToScore(WDLLoss, 4); s >= 0 {
		t.Errorf("loss score %d not negative", s)
	}
	for _, wdl := range []WDL{WDLDraw, WDLCursedWin, WDLBlessedLoss} {
		if s := WDLToScore(wdl, 10); s != 0 {
			t.Errorf("wdl %d scores %d, want 0", wdl, s)
		}
	}
	// Deeper wins score lower than shallower ones.
	if WDLToScore(WDLWin, 10) >= WDLToScore(WDLWin, 2) {
		t.Error("win score does not decay with distance")
	}
}

func TestSyzygyProberScansDirectory(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"KQvK.rtbw", "KQvK.rtbz", "KRPvKR.rtbw", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte{0}, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	sp := NewSyzygyProber(dir)
	if !sp.Available() {
		t.Fatal("tables not detected")
	}
	if got := sp.MaxPieces(); got != 5 {
		t.Errorf("MaxPieces = %d, want 5 (KRPvKR)", got)
	}
}

func TestSyzygyProberMissingDir(t *testing.T) {
	sp := NewSyzygyProber(filepath.Join(t.TempDir(), "nope"))
	if sp.Available() {
		t.Error("missing directory reported available")
	}

	b, _ := board.ParseFEN("4k3/8/8/8/8/8/8/3QK3 w - - 0 1")
	if res := sp.Probe(&b); res.Found {
		t.Error("probe without tables found a result")
	}
}

// fakeBackend is a canned decoding backend for the adapter tests.
type fakeBackend struct{ result ProbeResult }

func (f fakeBackend) Available() bool                          { return true }
func (f fakeBackend) MaxPieces() int                           { return 7 }
func (f fakeBackend) Probe(*board.BoardState) ProbeResult     { return f.result }
func (f fakeBackend) ProbeRoot(*board.BoardState) ProbeResult { return f.result }

func TestSyzygyProberDelegatesToBackend(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "KQvK.rtbw"), []byte{0}, 0o644); err != nil {
		t.Fatal(err)
	}

	sp := NewSyzygyProber(dir)
	sp.SetBackend(fakeBackend{result: ProbeResult{Found: true, WDL: WDLWin}})

	b, _ := board.ParseFEN("4k3/8/8/8/8/8/8/3QK3 w - - 0 1")
	if res := sp.Probe(&b); !res.Found || res.WDL != WDLWin {
		t.Errorf("probe = %+v", res)
	}

	// Positions beyond the scanned piece count never reach the backend.
	big, _ := board.ParseFEN(board.StartFEN)
	if res := sp.Probe(&big); res.Found {
		t.Error("oversized position probed")
	}
}
