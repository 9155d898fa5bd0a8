package engine

import "github.com/hailam/lumen/internal/board"

// Static exchange evaluation: the material outcome of the capture sequence
// on a single square, both sides always recapturing with their least
// valuable attacker. X-ray attackers are revealed as pieces are lifted off
// the occupancy; absolutely pinned pieces may only take part when their pin
// ray runs through the contested square.

// See returns the exact exchange value of m in centipawns.
func See(b *board.BoardState, m board.Move) int {
	if m.IsCastle() {
		return 0
	}

	from, to := m.From(), m.To()
	attacker := b.PieceAt(from)

	gain := capturedValue(b, m)
	if m.IsPromotion() {
		gain += pieceValues[m.PromotionPiece()] - PawnValue
	}

	occupied := b.AllOccupied &^ board.SquareBB(from)
	if m.IsEnPassant() {
		occupied &^= board.SquareBB(board.NewSquare(to.File(), from.Rank()))
	}

	pinned := [2]board.Bitboard{b.PinnedPieces(board.White), b.PinnedPieces(board.Black)}

	// swap list: gains[d] is the running balance if the sequence stops after
	// d captures.
	var gains [32]int
	d := 0
	gains[0] = gain

	attackerValue := pieceValues[attacker.Type()]
	side := attacker.Color().Other()

	for {
		d++
		gains[d] = attackerValue - gains[d-1]
		if maxInt(-gains[d-1], gains[d]) < 0 {
			break
		}

		sq, piece := leastValuableAttacker(b, to, side, occupied, pinned[side])
		if sq == board.NoSquare {
			break
		}

		occupied &^= board.SquareBB(sq)
		attackerValue = pieceValues[piece.Type()]
		side = side.Other()
	}

	for d--; d > 0; d-- {
		gains[d-1] = -maxInt(-gains[d-1], gains[d])
	}
	return gains[0]
}

// SeeGE reports whether the exchange started by m nets at least threshold.
func SeeGE(b *board.BoardState, m board.Move, threshold int) bool {
	// The first capture is an upper bound on the whole sequence: if it
	// cannot reach the threshold nothing later can.
	best := capturedValue(b, m)
	if m.IsPromotion() {
		best += pieceValues[m.PromotionPiece()] - PawnValue
	}
	if best < threshold {
		return false
	}
	return See(b, m) >= threshold
}

func capturedValue(b *board.BoardState, m board.Move) int {
	if m.IsEnPassant() {
		return PawnValue
	}
	victim := b.PieceAt(m.To())
	if victim == board.NoPiece {
		return 0
	}
	return pieceValues[victim.Type()]
}

// leastValuableAttacker finds the cheapest piece of side bearing on target
// under the current occupancy. Pinned pieces are skipped unless the target
// lies on their pin ray.
func leastValuableAttacker(b *board.BoardState, target board.Square, side board.Color, occupied, pinned board.Bitboard) (board.Square, board.Piece) {
	ksq := b.KingSq(side)

	usable := func(attackers board.Bitboard) board.Square {
		for attackers != 0 {
			sq := attackers.PopLSB()
			if pinned.IsSet(sq) && !board.Aligned(ksq, sq, target) {
				continue
			}
			return sq
		}
		return board.NoSquare
	}

	if sq := usable(board.PawnAttacks(target, side.Other()) & b.PieceBB(board.Pawn, side) & occupied); sq != board.NoSquare {
		return sq, board.NewPiece(board.Pawn, side)
	}
	if sq := usable(board.KnightAttacks(target) & b.PieceBB(board.Knight, side) & occupied); sq != board.NoSquare {
		return sq, board.NewPiece(board.Knight, side)
	}

	diag := board.BishopAttacks(target, occupied)
	if sq := usable(diag & b.PieceBB(board.Bishop, side) & occupied); sq != board.NoSquare {
		return sq, board.NewPiece(board.Bishop, side)
	}

	straight := board.RookAttacks(target, occupied)
	if sq := usable(straight & b.PieceBB(board.Rook, side) & occupied); sq != board.NoSquare {
		return sq, board.NewPiece(board.Rook, side)
	}
	if sq := usable((diag | straight) & b.PieceBB(board.Queen, side) & occupied); sq != board.NoSquare {
		return sq, board.NewPiece(board.Queen, side)
	}

	if sq := usable(board.KingAttacks(target) & b.PieceBB(board.King, side) & occupied); sq != board.NoSquare {
		return sq, board.NewPiece(board.King, side)
	}
	return board.NoSquare, board.NoPiece
}
