package board

import (
	"fmt"
	"strconv"
	"strings"
)

// StartFEN is the FEN string for the starting position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// ParseFEN parses a FEN string into a BoardState. The castling field accepts
// classic KQkq, X-FEN/Shredder file letters (A-H, a-h), or "-".
func ParseFEN(fen string) (BoardState, error) {
	var b BoardState
	b.EnPassant = NoSquare

	parts := strings.Fields(fen)
	if len(parts) < 4 {
		return b, fmt.Errorf("invalid FEN %q: need at least 4 fields, got %d", fen, len(parts))
	}

	if err := parsePiecePlacement(&b, parts[0]); err != nil {
		return b, err
	}

	switch parts[1] {
	case "w":
		b.SideToMove = White
	case "b":
		b.SideToMove = Black
	default:
		return b, fmt.Errorf("invalid side to move: %q", parts[1])
	}

	if err := parseCastling(&b, parts[2]); err != nil {
		return b, err
	}

	if parts[3] != "-" {
		sq, err := ParseSquare(parts[3])
		if err != nil {
			return b, fmt.Errorf("invalid en passant square: %q", parts[3])
		}
		b.EnPassant = sq
	}

	if len(parts) > 4 {
		hmc, err := strconv.Atoi(parts[4])
		if err != nil || hmc < 0 {
			return b, fmt.Errorf("invalid half-move clock: %q", parts[4])
		}
		b.HalfMoveClock = hmc
	}

	fullMove := 1
	if len(parts) > 5 {
		fmn, err := strconv.Atoi(parts[5])
		if err != nil || fmn < 1 {
			return b, fmt.Errorf("invalid full-move number: %q", parts[5])
		}
		fullMove = fmn
	}
	b.HalfTurns = (fullMove - 1) * 2
	if b.SideToMove == Black {
		b.HalfTurns++
	}

	if b.Pieces[WhiteKing].PopCount() != 1 || b.Pieces[BlackKing].PopCount() != 1 {
		return b, fmt.Errorf("invalid FEN %q: each side needs exactly one king", fen)
	}

	// Drop a dead en passant target so the key matches transpositions that
	// never had one.
	if b.EnPassant != NoSquare {
		legal := false
		candidates := pawnAttacks[b.SideToMove.Other()][b.EnPassant] & b.PieceBB(Pawn, b.SideToMove)
		for candidates != 0 {
			if b.epCaptureLegal(candidates.PopLSB(), b.EnPassant, b.SideToMove) {
				legal = true
				break
			}
		}
		if !legal {
			b.EnPassant = NoSquare
		}
	}

	b.Key = b.ComputeKey()
	b.PawnKey = b.ComputePawnKey()
	b.NonPawnKey[White] = b.ComputeNonPawnKey(White)
	b.NonPawnKey[Black] = b.ComputeNonPawnKey(Black)

	return b, nil
}

func parsePiecePlacement(b *BoardState, placement string) error {
	ranks := strings.Split(placement, "/")
	if len(ranks) != 8 {
		return fmt.Errorf("invalid piece placement: need 8 ranks, got %d", len(ranks))
	}

	for i, rankStr := range ranks {
		rank := 7 - i
		file := 0

		for _, c := range rankStr {
			if file > 7 {
				return fmt.Errorf("too many squares in rank %d", rank+1)
			}
			if c >= '1' && c <= '8' {
				file += int(c - '0')
				continue
			}
			piece := PieceFromChar(byte(c))
			if piece == NoPiece {
				return fmt.Errorf("invalid piece character: %c", c)
			}
			sq := NewSquare(file, rank)
			bb := SquareBB(sq)
			b.Pieces[piece] |= bb
			b.Occupied[piece.Color()] |= bb
			b.AllOccupied |= bb
			file++
		}
		if file != 8 {
			return fmt.Errorf("rank %d has %d squares", rank+1, file)
		}
	}
	return nil
}

// parseCastling fills the castle-rook mask. Classic letters pick the
// outermost rook on the matching side of the king; file letters (X-FEN /
// Shredder-FEN) name the rook file directly.
func parseCastling(b *BoardState, castling string) error {
	if castling == "-" {
		return nil
	}

	for _, c := range castling {
		var side Color
		letter := c
		if c >= 'a' && c <= 'z' {
			side = Black
		} else if c >= 'A' && c <= 'Z' {
			side = White
			letter = c - 'A' + 'a'
		} else {
			return fmt.Errorf("invalid castling character: %c", c)
		}

		home := 0
		if side == Black {
			home = 7
		}
		ksq := b.KingSq(side)
		if !ksq.IsValid() || ksq.Rank() != home {
			return fmt.Errorf("castling rights for %v with no home-rank king", side)
		}
		rooks := b.PieceBB(Rook, side) & RankMask[home]

		var rsq Square
		switch letter {
		case 'k':
			rsq = (rooks & ^(SquareBB(ksq) - 1)).MSB() // outermost rook right of the king
		case 'q':
			rsq = (rooks & (SquareBB(ksq) - 1)).LSB() // outermost rook left of the king
		default:
			if letter < 'a' || letter > 'h' {
				return fmt.Errorf("invalid castling character: %c", c)
			}
			rsq = NewSquare(int(letter-'a'), home)
			if !rooks.IsSet(rsq) {
				return fmt.Errorf("castling file %c names no rook", c)
			}
		}
		if !rsq.IsValid() {
			return fmt.Errorf("castling right %c has no matching rook", c)
		}
		b.CastleRooks |= SquareBB(rsq)
	}
	return nil
}

// ToFEN returns the FEN representation of the position. Castle rooks on the
// classical corner squares render as KQkq; anything else falls back to
// Shredder-FEN file letters.
func (b *BoardState) ToFEN() string {
	var sb strings.Builder

	for rank := 7; rank >= 0; rank-- {
		empty := 0
		for file := 0; file < 8; file++ {
			piece := b.PieceAt(NewSquare(file, rank))
			if piece == NoPiece {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteString(strconv.Itoa(empty))
				empty = 0
			}
			sb.WriteString(piece.String())
		}
		if empty > 0 {
			sb.WriteString(strconv.Itoa(empty))
		}
		if rank > 0 {
			sb.WriteByte('/')
		}
	}

	sb.WriteByte(' ')
	if b.SideToMove == White {
		sb.WriteByte('w')
	} else {
		sb.WriteByte('b')
	}

	sb.WriteByte(' ')
	sb.WriteString(b.castlingString())

	sb.WriteByte(' ')
	sb.WriteString(b.EnPassant.String())

	sb.WriteByte(' ')
	sb.WriteString(strconv.Itoa(b.HalfMoveClock))
	sb.WriteByte(' ')
	sb.WriteString(strconv.Itoa(b.HalfTurns/2 + 1))

	return sb.String()
}

func (b *BoardState) castlingString() string {
	if b.CastleRooks == 0 {
		return "-"
	}

	classic := b.CastleRooks&^(SquareBB(A1)|SquareBB(H1)|SquareBB(A8)|SquareBB(H8)) == 0
	var sb strings.Builder

	emit := func(side Color, upper bool) {
		home := 0
		if side == Black {
			home = 7
		}
		// h-side first, then a-side, high files before low.
		rooks := b.CastleRooks & RankMask[home]
		for rooks != 0 {
			sq := rooks.MSB()
			rooks = rooks.Clear(sq)

			var ch byte
			if classic {
				if sq.File() > b.KingSq(side).File() {
					ch = 'k'
				} else {
					ch = 'q'
				}
			} else {
				ch = byte('a' + sq.File())
			}
			if upper {
				ch = ch - 'a' + 'A'
			}
			sb.WriteByte(ch)
		}
	}

	emit(White, true)
	emit(Black, false)
	return sb.String()
}
