package board

import "fmt"

// DebugChecks enables expensive internal consistency checks after every
// mutation. Only ever enabled by tests; the UCI layer has no switch for it.
var DebugChecks = false

// BoardState is a complete chess position as a single flat record. It is a
// value type: GameState keeps a stack of these and ApplyMove works on a fresh
// copy, so no per-move undo record exists.
type BoardState struct {
	// Piece bitboards indexed by Piece (WhitePawn..BlackKing).
	Pieces [12]Bitboard

	// Occupancy bitboards, cached from Pieces.
	Occupied    [2]Bitboard
	AllOccupied Bitboard

	SideToMove Color
	EnPassant  Square // en passant target, NoSquare if none

	// CastleRooks is the set of rook starting squares from which castling is
	// still legal. A bitboard rather than four flags keeps Chess960 exact.
	CastleRooks Bitboard

	HalfMoveClock int // plies since the last pawn move or capture
	HalfTurns     int // plies since the start of the game

	// Incrementally maintained hash keys. PawnKey covers pawns only;
	// NonPawnKey[c] covers color c's non-pawn pieces. The split keys feed the
	// evaluation correction histories.
	Key        uint64
	PawnKey    uint64
	NonPawnKey [2]uint64

	// RepetitionDistance is the number of plies back to the previous position
	// with the same key (0 = none); ThreeFold is set when that position has
	// occurred at least twice before. Both are maintained by GameState.
	RepetitionDistance int
	ThreeFold          bool
}

// PieceBB returns the bitboard for a piece type of a color.
func (b *BoardState) PieceBB(pt PieceType, c Color) Bitboard {
	return b.Pieces[NewPiece(pt, c)]
}

// KingSq returns the king square of the given color.
func (b *BoardState) KingSq(c Color) Square {
	return b.Pieces[NewPiece(King, c)].LSB()
}

// IsEmpty returns true if the square is empty.
func (b *BoardState) IsEmpty(sq Square) bool {
	return !b.AllOccupied.IsSet(sq)
}

// PieceAt returns the piece at the given square, or NoPiece if empty.
func (b *BoardState) PieceAt(sq Square) Piece {
	bb := SquareBB(sq)
	if b.AllOccupied&bb == 0 {
		return NoPiece
	}

	base := WhitePawn
	if b.Occupied[Black]&bb != 0 {
		base = BlackPawn
	}
	for p := base; p <= base+5; p++ {
		if b.Pieces[p]&bb != 0 {
			return p
		}
	}
	return NoPiece
}

// addPiece places a piece and folds it into every affected key.
func (b *BoardState) addPiece(p Piece, sq Square) {
	bb := SquareBB(sq)
	c := p.Color()

	b.Pieces[p] |= bb
	b.Occupied[c] |= bb
	b.AllOccupied |= bb

	b.Key ^= zobristPiece[p][sq]
	if p.Type() == Pawn {
		b.PawnKey ^= zobristPiece[p][sq]
	} else {
		b.NonPawnKey[c] ^= zobristPiece[p][sq]
	}
}

// removePiece removes a piece and folds it out of every affected key.
func (b *BoardState) removePiece(p Piece, sq Square) {
	bb := SquareBB(sq)
	c := p.Color()

	b.Pieces[p] &^= bb
	b.Occupied[c] &^= bb
	b.AllOccupied &^= bb

	b.Key ^= zobristPiece[p][sq]
	if p.Type() == Pawn {
		b.PawnKey ^= zobristPiece[p][sq]
	} else {
		b.NonPawnKey[c] ^= zobristPiece[p][sq]
	}
}

// movePiece relocates a piece of known identity.
func (b *BoardState) movePiece(p Piece, from, to Square) {
	b.removePiece(p, from)
	b.addPiece(p, to)
}

// clearCastleRooks removes the given rook squares from the castle set,
// folding each removed square out of the key.
func (b *BoardState) clearCastleRooks(mask Bitboard) {
	gone := b.CastleRooks & mask
	for gone != 0 {
		b.Key ^= zobristCastle[gone.PopLSB()]
	}
	b.CastleRooks &^= mask
}

// AttackersTo returns all pieces of both colors attacking sq under the given
// occupancy.
func (b *BoardState) AttackersTo(sq Square, occupied Bitboard) Bitboard {
	return (pawnAttacks[Black][sq] & b.Pieces[WhitePawn]) |
		(pawnAttacks[White][sq] & b.Pieces[BlackPawn]) |
		(knightAttacks[sq] & (b.Pieces[WhiteKnight] | b.Pieces[BlackKnight])) |
		(kingAttacks[sq] & (b.Pieces[WhiteKing] | b.Pieces[BlackKing])) |
		(BishopAttacks(sq, occupied) & (b.Pieces[WhiteBishop] | b.Pieces[BlackBishop] |
			b.Pieces[WhiteQueen] | b.Pieces[BlackQueen])) |
		(RookAttacks(sq, occupied) & (b.Pieces[WhiteRook] | b.Pieces[BlackRook] |
			b.Pieces[WhiteQueen] | b.Pieces[BlackQueen]))
}

// AttackersBy returns pieces of color c attacking sq under the given
// occupancy.
func (b *BoardState) AttackersBy(sq Square, c Color, occupied Bitboard) Bitboard {
	return (pawnAttacks[c.Other()][sq] & b.PieceBB(Pawn, c)) |
		(knightAttacks[sq] & b.PieceBB(Knight, c)) |
		(kingAttacks[sq] & b.PieceBB(King, c)) |
		(BishopAttacks(sq, occupied) & (b.PieceBB(Bishop, c) | b.PieceBB(Queen, c))) |
		(RookAttacks(sq, occupied) & (b.PieceBB(Rook, c) | b.PieceBB(Queen, c)))
}

// IsSquareAttacked returns true if sq is attacked by the given color.
func (b *BoardState) IsSquareAttacked(sq Square, byColor Color) bool {
	return b.AttackersBy(sq, byColor, b.AllOccupied) != 0
}

// CheckersBB returns the pieces giving check to the side to move.
func (b *BoardState) CheckersBB() Bitboard {
	return b.AttackersBy(b.KingSq(b.SideToMove), b.SideToMove.Other(), b.AllOccupied)
}

// InCheck returns true if the side to move is in check.
func (b *BoardState) InCheck() bool {
	return b.CheckersBB() != 0
}

// PinnedPieces returns the pieces of color c that are pinned to their king
// by an enemy slider.
func (b *BoardState) PinnedPieces(c Color) Bitboard {
	them := c.Other()
	ksq := b.KingSq(c)
	pinned := Empty

	snipers := (RookAttacks(ksq, 0) & (b.PieceBB(Rook, them) | b.PieceBB(Queen, them))) |
		(BishopAttacks(ksq, 0) & (b.PieceBB(Bishop, them) | b.PieceBB(Queen, them)))

	for snipers != 0 {
		sq := snipers.PopLSB()
		blockers := Between(sq, ksq) & b.AllOccupied
		if !blockers.Multiple() && blockers&b.Occupied[c] != 0 {
			pinned |= blockers
		}
	}
	return pinned
}

// HasNonPawnMaterial returns true if the side to move has anything beyond
// king and pawns. Null-move pruning avoids pure pawn endgames (zugzwang).
func (b *BoardState) HasNonPawnMaterial() bool {
	us := b.SideToMove
	return b.PieceBB(Knight, us)|b.PieceBB(Bishop, us)|
		b.PieceBB(Rook, us)|b.PieceBB(Queen, us) != 0
}

// ApplyMove mutates the state by playing m. The caller is responsible for
// having saved the prior state (GameState pushes a copy first).
func (b *BoardState) ApplyMove(m Move) {
	us := b.SideToMove
	them := us.Other()
	from, to := m.From(), m.To()
	moved := b.PieceAt(from)

	b.Key ^= zobristSideToMove
	if b.EnPassant != NoSquare {
		b.Key ^= zobristEnPassant[b.EnPassant.File()]
		b.EnPassant = NoSquare
	}

	// Castling rights: king moves drop both of our rook squares, rook moves
	// drop their own square, and captures landing on a castle square drop it.
	if moved.Type() == King {
		b.clearCastleRooks(homeRank(us))
	}
	b.clearCastleRooks(SquareBB(from) | SquareBB(to))

	switch m.Flag() {
	case FlagQuiet:
		b.movePiece(moved, from, to)

	case FlagPawnDoubleMove:
		b.movePiece(moved, from, to)
		// Only publish the en passant target if some enemy pawn could
		// legally capture it; this keeps keys equal across transpositions
		// that differ only in a dead ep square.
		epsq := Square((int(from) + int(to)) / 2)
		candidates := pawnAttacks[us][epsq] & b.PieceBB(Pawn, them)
		for candidates != 0 {
			capturer := candidates.PopLSB()
			if b.epCaptureLegal(capturer, epsq, them) {
				b.EnPassant = epsq
				b.Key ^= zobristEnPassant[epsq.File()]
				break
			}
		}

	case FlagCastleASide, FlagCastleHSide:
		// to is the rook's starting square. Remove both pieces first: in
		// Chess960 the king's destination may be the rook's origin.
		rook := NewPiece(Rook, us)
		b.removePiece(moved, from)
		b.removePiece(rook, to)
		b.addPiece(moved, m.CastleKingTo(us))
		b.addPiece(rook, m.CastleRookTo(us))

	case FlagCapture:
		b.removePiece(b.PieceAt(to), to)
		b.movePiece(moved, from, to)

	case FlagEnPassant:
		capturedSq := NewSquare(to.File(), from.Rank())
		b.removePiece(NewPiece(Pawn, them), capturedSq)
		b.movePiece(moved, from, to)

	default: // the eight promotion flags
		if m.IsCapture() {
			b.removePiece(b.PieceAt(to), to)
		}
		b.removePiece(moved, from)
		b.addPiece(NewPiece(m.PromotionPiece(), us), to)
	}

	if moved.Type() == Pawn || m.IsCapture() || m.IsPromotion() {
		b.HalfMoveClock = 0
	} else {
		b.HalfMoveClock++
	}
	b.HalfTurns++
	b.SideToMove = them

	if DebugChecks {
		if err := b.Validate(); err != nil {
			panic(fmt.Sprintf("apply %s: %v", m, err))
		}
	}
}

// ApplyNullMove passes the turn. The caller guarantees the side to move is
// not in check.
func (b *BoardState) ApplyNullMove() {
	b.Key ^= zobristSideToMove
	if b.EnPassant != NoSquare {
		b.Key ^= zobristEnPassant[b.EnPassant.File()]
		b.EnPassant = NoSquare
	}
	b.HalfMoveClock++
	b.HalfTurns++
	b.SideToMove = b.SideToMove.Other()
}

// epCaptureLegal reports whether the mover may capture en passant on epsq
// from the given square without exposing the mover's own king. Works on the
// current occupancy by simulating the three affected squares.
func (b *BoardState) epCaptureLegal(from, epsq Square, mover Color) bool {
	enemy := mover.Other()
	capturedSq := NewSquare(epsq.File(), from.Rank())
	occ := (b.AllOccupied &^ SquareBB(from) &^ SquareBB(capturedSq)) | SquareBB(epsq)
	ksq := b.KingSq(mover)

	if pawnAttacks[mover][ksq]&(b.PieceBB(Pawn, enemy)&^SquareBB(capturedSq))&^SquareBB(epsq) != 0 {
		// A remaining enemy pawn attacks the king. The capturing pawn now on
		// epsq is ours, so it is excluded.
		return false
	}
	if knightAttacks[ksq]&b.PieceBB(Knight, enemy) != 0 {
		return false
	}
	if BishopAttacks(ksq, occ)&(b.PieceBB(Bishop, enemy)|b.PieceBB(Queen, enemy)) != 0 {
		return false
	}
	if RookAttacks(ksq, occ)&(b.PieceBB(Rook, enemy)|b.PieceBB(Queen, enemy)) != 0 {
		return false
	}
	if kingAttacks[ksq]&b.PieceBB(King, enemy) != 0 {
		return false
	}
	return true
}

// homeRank returns the back-rank mask of the color.
func homeRank(c Color) Bitboard {
	if c == White {
		return Rank1
	}
	return Rank8
}

// ComputeKey recomputes the main Zobrist key from scratch.
func (b *BoardState) ComputeKey() uint64 {
	var key uint64
	for p := WhitePawn; p <= BlackKing; p++ {
		bb := b.Pieces[p]
		for bb != 0 {
			key ^= zobristPiece[p][bb.PopLSB()]
		}
	}
	if b.SideToMove == Black {
		key ^= zobristSideToMove
	}
	key ^= zobristCastleMask(b.CastleRooks)
	if b.EnPassant != NoSquare {
		key ^= zobristEnPassant[b.EnPassant.File()]
	}
	return key
}

// ComputePawnKey recomputes the pawn-only key from scratch.
func (b *BoardState) ComputePawnKey() uint64 {
	var key uint64
	for _, p := range [2]Piece{WhitePawn, BlackPawn} {
		bb := b.Pieces[p]
		for bb != 0 {
			key ^= zobristPiece[p][bb.PopLSB()]
		}
	}
	return key
}

// ComputeNonPawnKey recomputes the non-pawn key of one color from scratch.
func (b *BoardState) ComputeNonPawnKey(c Color) uint64 {
	var key uint64
	for pt := Knight; pt <= King; pt++ {
		p := NewPiece(pt, c)
		bb := b.Pieces[p]
		for bb != 0 {
			key ^= zobristPiece[p][bb.PopLSB()]
		}
	}
	return key
}

// Validate checks the structural invariants: disjoint piece boards, coherent
// occupancy, castle rooks on home ranks under real rooks, and every
// incremental key equal to its from-scratch computation.
func (b *BoardState) Validate() error {
	var all Bitboard
	var occ [2]Bitboard
	for p := WhitePawn; p <= BlackKing; p++ {
		if all&b.Pieces[p] != 0 {
			return fmt.Errorf("piece bitboards overlap at %v", p)
		}
		all |= b.Pieces[p]
		occ[p.Color()] |= b.Pieces[p]
	}
	if occ[White] != b.Occupied[White] || occ[Black] != b.Occupied[Black] {
		return fmt.Errorf("occupancy out of sync with piece bitboards")
	}
	if all != b.AllOccupied {
		return fmt.Errorf("total occupancy out of sync")
	}

	rooks := b.Pieces[WhiteRook] | b.Pieces[BlackRook]
	if b.CastleRooks&^rooks != 0 {
		return fmt.Errorf("castle squares without rooks: %v", b.CastleRooks&^rooks)
	}
	if b.CastleRooks&^(Rank1|Rank8) != 0 {
		return fmt.Errorf("castle rooks off the home ranks")
	}

	if key := b.ComputeKey(); key != b.Key {
		return fmt.Errorf("main key drift: have %016x want %016x", b.Key, key)
	}
	if key := b.ComputePawnKey(); key != b.PawnKey {
		return fmt.Errorf("pawn key drift: have %016x want %016x", b.PawnKey, key)
	}
	for c := White; c <= Black; c++ {
		if key := b.ComputeNonPawnKey(c); key != b.NonPawnKey[c] {
			return fmt.Errorf("%v non-pawn key drift: have %016x want %016x",
				c, b.NonPawnKey[c], key)
		}
	}
	return nil
}

// String returns a visual representation of the position.
func (b *BoardState) String() string {
	s := "\n"
	for rank := 7; rank >= 0; rank-- {
		s += fmt.Sprintf("%d  ", rank+1)
		for file := 0; file < 8; file++ {
			piece := b.PieceAt(NewSquare(file, rank))
			if piece == NoPiece {
				s += ". "
			} else {
				s += piece.String() + " "
			}
		}
		s += "\n"
	}
	s += "\n   a b c d e f g h\n\n"
	s += fmt.Sprintf("Side to move: %s\n", b.SideToMove)
	s += fmt.Sprintf("En passant: %s\n", b.EnPassant)
	s += fmt.Sprintf("Half-move clock: %d\n", b.HalfMoveClock)
	s += fmt.Sprintf("Key: %016x\n", b.Key)
	return s
}
