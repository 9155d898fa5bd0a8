package nnue

import "github.com/hailam/lumen/internal/board"

// FeatureIndex maps a piece on a square to its input index as seen from one
// perspective. Black's perspective flips ranks and relative piece colors;
// both perspectives mirror files so that the perspective's own king always
// sits in the a-d half. King-relative mirroring is why a king move forces a
// full rebuild of that perspective's accumulator.
func FeatureIndex(persp board.Color, kingSq board.Square, p board.Piece, sq board.Square) int {
	if persp == board.Black {
		sq = sq.FlipRank()
		kingSq = kingSq.FlipRank()
	}
	if kingSq.File() >= 4 {
		sq = sq.FlipFile()
	}

	rel := int(p.Type())
	if p.Color() != persp {
		rel += 6
	}
	return rel*64 + int(sq)
}
