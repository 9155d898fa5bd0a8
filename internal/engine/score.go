// Package engine implements the search: iterative deepening negascout with
// a staged move picker, history and correction tables, a lock-free
// transposition table and NNUE static evaluation.
package engine

import "github.com/hailam/lumen/internal/nnue"

// Score constants. Mate scores are biased by distance from root so shallower
// mates dominate deeper ones; static evaluations are clamped well below the
// mate range.
const (
	Infinity  = 30000
	MateScore = 29000
	MaxDepth  = 128

	EvalMax = nnue.EvalClamp
	EvalMin = -nnue.EvalClamp

	DrawScore = 0
)

// MateIn returns the score for delivering mate after ply more plies.
func MateIn(ply int) int {
	return MateScore - ply
}

// MatedIn returns the score for being mated after ply more plies.
func MatedIn(ply int) int {
	return -MateScore + ply
}

// IsMateScore reports whether a score encodes a forced mate either way.
func IsMateScore(score int) bool {
	return score > MateScore-MaxDepth || score < -MateScore+MaxDepth
}

// MateDistance converts a mate score into full moves until mate, negative
// when the side to move is being mated. Used for UCI "score mate" output.
func MateDistance(score int) int {
	if score > 0 {
		return (MateScore - score + 1) / 2
	}
	return -(MateScore + score + 1) / 2
}

// Piece values for SEE and pruning margins.
const (
	PawnValue   = 100
	KnightValue = 320
	BishopValue = 330
	RookValue   = 500
	QueenValue  = 900
	KingValue   = 20000
)

var pieceValues = [7]int{PawnValue, KnightValue, BishopValue, RookValue, QueenValue, KingValue, 0}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
