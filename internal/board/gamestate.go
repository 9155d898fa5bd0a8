package board

import "fmt"

// GameState owns the live position and the full stack of prior positions.
// ApplyMove clones the top state, mutates the clone and pushes it; RevertMove
// pops. Keeping whole states makes unmake trivially exact, including every
// hash key.
type GameState struct {
	states []BoardState
}

// NewGameState returns a game at the standard starting position.
func NewGameState() *GameState {
	gs := &GameState{}
	b, _ := ParseFEN(StartFEN)
	gs.states = append(gs.states, b)
	return gs
}

// NewGameStateFromFEN returns a game at the given position.
func NewGameStateFromFEN(fen string) (*GameState, error) {
	b, err := ParseFEN(fen)
	if err != nil {
		return nil, err
	}
	return &GameState{states: []BoardState{b}}, nil
}

// Board returns the live position.
func (g *GameState) Board() *BoardState {
	return &g.states[len(g.states)-1]
}

// Ply returns the number of moves applied since the root state.
func (g *GameState) Ply() int {
	return len(g.states) - 1
}

// Reset replaces the whole history with the given position.
func (g *GameState) Reset(b BoardState) {
	g.states = g.states[:0]
	g.states = append(g.states, b)
}

// ApplyMove pushes a copy of the live position and plays m on it.
func (g *GameState) ApplyMove(m Move) {
	g.states = append(g.states, *g.Board())
	b := g.Board()
	b.ApplyMove(m)
	g.updateRepetition()
}

// ApplyNullMove pushes a copy of the live position and passes the turn.
func (g *GameState) ApplyNullMove() {
	g.states = append(g.states, *g.Board())
	b := g.Board()
	b.ApplyNullMove()
	// A null move is irreversible for repetition purposes: the same position
	// with the same side to move cannot recur across it without an
	// intervening real repetition.
	b.RepetitionDistance = 0
	b.ThreeFold = false
}

// RevertMove pops the most recent state, undoing a move or null move.
func (g *GameState) RevertMove() {
	g.states = g.states[:len(g.states)-1]
}

// ApplyMoveString parses a UCI move string against the current legal moves
// and applies it. chess960 selects the castling encoding: classic input
// writes castling as the king landing two files away, Chess960 input writes
// the rook's square.
func (g *GameState) ApplyMoveString(s string, chess960 bool) error {
	m, err := g.Board().ParseUCIMove(s, chess960)
	if err != nil {
		return err
	}
	g.ApplyMove(m)
	return nil
}

// ParseUCIMove resolves a UCI move string to a legal move in this position.
func (b *BoardState) ParseUCIMove(s string, chess960 bool) (Move, error) {
	if len(s) < 4 || len(s) > 5 {
		return NoMove, fmt.Errorf("invalid move string: %q", s)
	}
	from, err := ParseSquare(s[0:2])
	if err != nil {
		return NoMove, err
	}
	to, err := ParseSquare(s[2:4])
	if err != nil {
		return NoMove, err
	}

	var promo PieceType = NoPieceType
	if len(s) == 5 {
		switch s[4] {
		case 'n':
			promo = Knight
		case 'b':
			promo = Bishop
		case 'r':
			promo = Rook
		case 'q':
			promo = Queen
		default:
			return NoMove, fmt.Errorf("invalid promotion piece: %c", s[4])
		}
	}

	var ml MoveList
	b.GenerateLegalMoves(&ml)
	for i := 0; i < ml.Len(); i++ {
		m := ml.At(i).Move
		if m.From() != from {
			continue
		}

		mTo := m.To()
		if m.IsCastle() {
			if chess960 {
				mTo = m.To() // rook square, as encoded
			} else {
				mTo = m.CastleKingTo(b.SideToMove)
				// Classic GUIs may still send the rook square for the
				// king-takes-rook styles; accept both.
				if mTo != to && m.To() == to {
					mTo = to
				}
			}
		}
		if mTo != to {
			continue
		}

		if promo != NoPieceType {
			if m.IsPromotion() && m.PromotionPiece() == promo {
				return m, nil
			}
			continue
		}
		if !m.IsPromotion() {
			return m, nil
		}
	}
	return NoMove, fmt.Errorf("illegal move %q", s)
}

// updateRepetition fills the live state's repetition bookkeeping by walking
// the stack backwards in steps of two plies. The walk stops at the last
// irreversible move, where the fifty-move clock drops to one or zero.
func (g *GameState) updateRepetition() {
	b := g.Board()
	b.RepetitionDistance = 0
	b.ThreeFold = false

	maxBack := b.HalfMoveClock
	seen := 0
	for back := 2; back <= maxBack && back < len(g.states); back += 2 {
		prev := &g.states[len(g.states)-1-back]
		if prev.Key == b.Key {
			seen++
			if b.RepetitionDistance == 0 {
				b.RepetitionDistance = back
			}
			if seen >= 2 {
				b.ThreeFold = true
				return
			}
		}
	}
}

// IsDrawByRepetition applies the search draw rule: a repetition inside the
// search tree counts immediately (two-fold), while repetitions that straddle
// the root need the full three-fold.
func (g *GameState) IsDrawByRepetition(distanceFromRoot int) bool {
	b := g.Board()
	if b.RepetitionDistance == 0 {
		return false
	}
	return b.ThreeFold || b.RepetitionDistance <= distanceFromRoot
}

// IsDrawByFiftyMove reports the fifty-move rule.
func (g *GameState) IsDrawByFiftyMove() bool {
	return g.Board().HalfMoveClock >= 100
}

// IsDrawByInsufficientMaterial reports dead positions where neither side can
// possibly mate: bare kings, or king and one minor against a bare king.
func (g *GameState) IsDrawByInsufficientMaterial() bool {
	b := g.Board()
	if b.Pieces[WhitePawn]|b.Pieces[BlackPawn]|
		b.Pieces[WhiteRook]|b.Pieces[BlackRook]|
		b.Pieces[WhiteQueen]|b.Pieces[BlackQueen] != 0 {
		return false
	}

	wMinors := (b.Pieces[WhiteKnight] | b.Pieces[WhiteBishop]).PopCount()
	bMinors := (b.Pieces[BlackKnight] | b.Pieces[BlackBishop]).PopCount()
	return wMinors+bMinors <= 1
}

// KeyHistory returns the zobrist keys of every state from oldest to newest.
func (g *GameState) KeyHistory() []uint64 {
	keys := make([]uint64, len(g.states))
	for i := range g.states {
		keys[i] = g.states[i].Key
	}
	return keys
}

// stateFromTop returns the state back plies behind the live one.
func (g *GameState) stateFromTop(back int) *BoardState {
	return &g.states[len(g.states)-1-back]
}

// Copy returns an independent GameState with the same history. Each search
// thread works on its own copy.
func (g *GameState) Copy() *GameState {
	states := make([]BoardState, len(g.states), len(g.states)+64)
	copy(states, g.states)
	return &GameState{states: states}
}
