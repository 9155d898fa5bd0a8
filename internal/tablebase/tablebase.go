// Package tablebase defines the endgame tablebase probe interface used by
// the search and a thin Syzygy directory adapter. Probing is best effort:
// any failure simply reports "not found" and the search carries on.
package tablebase

import (
	"github.com/hailam/lumen/internal/board"
)

// WDL is a win/draw/loss verdict from the probing side's point of view.
type WDL int

const (
	WDLLoss WDL = iota - 2
	WDLBlessedLoss
	WDLDraw
	WDLCursedWin
	WDLWin
)

// ProbeResult is the outcome of a probe. Move is only set by root probes.
type ProbeResult struct {
	Found bool
	WDL   WDL
	Move  board.Move
}

// Prober is the adapter the search calls into. Implementations must be safe
// for concurrent use by every search thread.
type Prober interface {
	// Available reports whether any table files are usable.
	Available() bool

	// MaxPieces is the largest piece count covered by the tables.
	MaxPieces() int

	// Probe returns the WDL verdict for the side to move.
	Probe(b *board.BoardState) ProbeResult

	// ProbeRoot additionally resolves a best move for the root position.
	ProbeRoot(b *board.BoardState) ProbeResult
}

// CountPieces returns the total number of pieces on the board.
func CountPieces(b *board.BoardState) int {
	return b.AllOccupied.PopCount()
}

// tbWinScore sits above any static evaluation but below the mate range, so
// proven tablebase wins order correctly against both.
const tbWinScore = 19000

// WDLToScore converts a verdict into a search score at the given distance
// from root.
func WDLToScore(wdl WDL, distanceFromRoot int) int {
	switch wdl {
	case WDLWin:
		return tbWinScore - distanceFromRoot
	case WDLLoss:
		return -tbWinScore + distanceFromRoot
	default:
		// Cursed wins and blessed losses are fifty-move draws.
		return 0
	}
}
