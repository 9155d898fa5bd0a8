package board

// MoveFlag classifies a move. The flag occupies the top four bits of a Move.
// Bit layout: bit 3 set on promotions, bit 2 set on captures, so a single
// mask test answers IsPromotion / IsCapture for every flag value.
type MoveFlag uint16

const (
	FlagQuiet MoveFlag = iota
	FlagPawnDoubleMove
	FlagCastleASide
	FlagCastleHSide
	FlagCapture
	FlagEnPassant
	flagUnused6
	flagUnused7
	FlagKnightPromotion
	FlagBishopPromotion
	FlagRookPromotion
	FlagQueenPromotion
	FlagKnightPromotionCapture
	FlagBishopPromotionCapture
	FlagRookPromotionCapture
	FlagQueenPromotionCapture
)

// Move encodes a chess move in 16 bits:
// bits 0-5:   from square (0-63)
// bits 6-11:  to square (0-63)
// bits 12-15: MoveFlag
//
// For castling moves the "to" square holds the starting square of the rook,
// which keeps the encoding exact under Chess960. The king's destination is
// derived from the castle side.
type Move uint16

// NoMove represents an invalid or absent move.
const NoMove Move = 0

// NewMove creates a move with the given flag.
func NewMove(from, to Square, flag MoveFlag) Move {
	return Move(from) | Move(to)<<6 | Move(flag)<<12
}

// From returns the origin square.
func (m Move) From() Square {
	return Square(m & 0x3F)
}

// To returns the destination square (the rook square for castling).
func (m Move) To() Square {
	return Square((m >> 6) & 0x3F)
}

// Flag returns the move flag.
func (m Move) Flag() MoveFlag {
	return MoveFlag(m >> 12)
}

// IsCapture returns true for captures, including en passant and capturing
// promotions.
func (m Move) IsCapture() bool {
	return m&0x4000 != 0
}

// IsPromotion returns true for the eight promotion flags.
func (m Move) IsPromotion() bool {
	return m&0x8000 != 0
}

// IsEnPassant returns true for en passant captures.
func (m Move) IsEnPassant() bool {
	return m.Flag() == FlagEnPassant
}

// IsCastle returns true for either castling flag.
func (m Move) IsCastle() bool {
	f := m.Flag()
	return f == FlagCastleASide || f == FlagCastleHSide
}

// PromotionPiece returns the piece type produced by a promotion move.
// Only meaningful when IsPromotion() is true.
func (m Move) PromotionPiece() PieceType {
	return Knight + PieceType(m.Flag()&3)
}

// CastleKingTo returns the king's destination square for a castling move by
// the given side.
func (m Move) CastleKingTo(c Color) Square {
	rank := 0
	if c == Black {
		rank = 7
	}
	if m.Flag() == FlagCastleHSide {
		return NewSquare(6, rank) // g-file
	}
	return NewSquare(2, rank) // c-file
}

// CastleRookTo returns the rook's destination square for a castling move by
// the given side.
func (m Move) CastleRookTo(c Color) Square {
	rank := 0
	if c == Black {
		rank = 7
	}
	if m.Flag() == FlagCastleHSide {
		return NewSquare(5, rank) // f-file
	}
	return NewSquare(3, rank) // d-file
}

// String returns the UCI form of the move for classic chess (king destination
// for castling). Chess960 output is handled by the UCI layer, which prints
// the rook square instead.
func (m Move) String() string {
	if m == NoMove {
		return "0000"
	}

	to := m.To()
	if m.IsCastle() {
		// Infer the side from the from-square's rank.
		c := White
		if m.From().Rank() == 7 {
			c = Black
		}
		to = m.CastleKingTo(c)
	}

	s := m.From().String() + to.String()
	if m.IsPromotion() {
		s += string(m.PromotionPiece().PromotionChar())
	}
	return s
}

// MaxMoves is the capacity of a MoveList. No legal chess position has more
// than 218 moves.
const MaxMoves = 256

// ScoredMove pairs a move with its ordering score. SEE values are computed
// lazily during move picking and cached here so the search can reuse them.
type ScoredMove struct {
	Move   Move
	Score  int16
	see    int16
	hasSee bool
}

// SetSEE caches a SEE value on the item.
func (sm *ScoredMove) SetSEE(v int) {
	sm.see = int16(v)
	sm.hasSee = true
}

// SEE returns the cached SEE value and whether one has been computed.
func (sm *ScoredMove) SEE() (int, bool) {
	return int(sm.see), sm.hasSee
}

// MoveList is a fixed-capacity list of scored moves to avoid allocations.
type MoveList struct {
	moves [MaxMoves]ScoredMove
	count int
}

// Add appends a move to the list.
func (ml *MoveList) Add(m Move) {
	ml.moves[ml.count] = ScoredMove{Move: m}
	ml.count++
}

// Len returns the number of moves in the list.
func (ml *MoveList) Len() int {
	return ml.count
}

// At returns a pointer to the scored move at index i.
func (ml *MoveList) At(i int) *ScoredMove {
	return &ml.moves[i]
}

// Swap swaps two items in the list.
func (ml *MoveList) Swap(i, j int) {
	ml.moves[i], ml.moves[j] = ml.moves[j], ml.moves[i]
}

// Clear empties the list.
func (ml *MoveList) Clear() {
	ml.count = 0
}

// Contains returns true if the list contains the move.
func (ml *MoveList) Contains(m Move) bool {
	for i := 0; i < ml.count; i++ {
		if ml.moves[i].Move == m {
			return true
		}
	}
	return false
}
