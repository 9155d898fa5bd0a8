package nnue

import "github.com/hailam/lumen/internal/board"

// Accumulator is the feature transformer output for both perspectives.
type Accumulator struct {
	Values [2][L1Size]int16 // [perspective color]
}

// MaxStack bounds the accumulator stack: search depth plus slack for
// quiescence extensions.
const MaxStack = 160

// AccumulatorStack keeps one accumulator per ply so reverting a move is a
// pointer decrement.
type AccumulatorStack struct {
	stack [MaxStack]Accumulator
	top   int
}

// NewAccumulatorStack returns an empty stack.
func NewAccumulatorStack() *AccumulatorStack {
	return &AccumulatorStack{}
}

// Current returns the live accumulator.
func (s *AccumulatorStack) Current() *Accumulator {
	return &s.stack[s.top]
}

// Reset rebuilds the bottom accumulator from scratch for a new root
// position and drops everything above it.
func (s *AccumulatorStack) Reset(net *Network, pos *board.BoardState) {
	s.top = 0
	s.stack[0].Refresh(net, pos, board.White)
	s.stack[0].Refresh(net, pos, board.Black)
}

// push duplicates the live accumulator.
func (s *AccumulatorStack) push() {
	s.stack[s.top+1] = s.stack[s.top]
	s.top++
}

// Pop reverts to the accumulator of the previous ply.
func (s *AccumulatorStack) Pop() {
	s.top--
}

// ApplyNullMove records a ply with no feature changes.
func (s *AccumulatorStack) ApplyNullMove() {
	s.push()
}

// ApplyMove pushes an accumulator updated for m. pos must already reflect
// the move; mover and captured describe it (captured is NoPiece for
// non-captures). King moves rebuild the moving side's perspective because
// every feature of that perspective is relative to its king square.
func (s *AccumulatorStack) ApplyMove(net *Network, pos *board.BoardState, m board.Move, mover, captured board.Piece) {
	s.push()
	acc := s.Current()
	us := mover.Color()

	if mover.Type() == board.King {
		acc.Refresh(net, pos, us)
		acc.updatePerspective(net, pos, us.Other(), m, mover, captured)
		return
	}
	acc.updatePerspective(net, pos, board.White, m, mover, captured)
	acc.updatePerspective(net, pos, board.Black, m, mover, captured)
}

// Refresh rebuilds one perspective from the full piece configuration.
func (acc *Accumulator) Refresh(net *Network, pos *board.BoardState, persp board.Color) {
	v := &acc.Values[persp]
	copy(v[:], net.FTBias[:])

	ksq := pos.KingSq(persp)
	for p := board.WhitePawn; p <= board.BlackKing; p++ {
		bb := pos.Pieces[p]
		for bb != 0 {
			acc.add(net, persp, FeatureIndex(persp, ksq, p, bb.PopLSB()))
		}
	}
}

// updatePerspective applies the at most four feature changes of a move to
// one perspective.
func (acc *Accumulator) updatePerspective(net *Network, pos *board.BoardState, persp board.Color, m board.Move, mover, captured board.Piece) {
	us := mover.Color()
	ksq := pos.KingSq(persp)
	from, to := m.From(), m.To()

	if m.IsCastle() {
		rook := board.NewPiece(board.Rook, us)
		acc.sub(net, persp, FeatureIndex(persp, ksq, mover, from))
		acc.add(net, persp, FeatureIndex(persp, ksq, mover, m.CastleKingTo(us)))
		acc.sub(net, persp, FeatureIndex(persp, ksq, rook, to))
		acc.add(net, persp, FeatureIndex(persp, ksq, rook, m.CastleRookTo(us)))
		return
	}

	placed := mover
	if m.IsPromotion() {
		placed = board.NewPiece(m.PromotionPiece(), us)
	}
	acc.sub(net, persp, FeatureIndex(persp, ksq, mover, from))
	acc.add(net, persp, FeatureIndex(persp, ksq, placed, to))

	if captured != board.NoPiece {
		capSq := to
		if m.IsEnPassant() {
			capSq = board.NewSquare(to.File(), from.Rank())
		}
		acc.sub(net, persp, FeatureIndex(persp, ksq, captured, capSq))
	}
}

func (acc *Accumulator) add(net *Network, persp board.Color, idx int) {
	v := &acc.Values[persp]
	w := &net.FTWeights[idx]
	for i := 0; i < L1Size; i++ {
		v[i] += w[i]
	}
}

func (acc *Accumulator) sub(net *Network, persp board.Color, idx int) {
	v := &acc.Values[persp]
	w := &net.FTWeights[idx]
	for i := 0; i < L1Size; i++ {
		v[i] -= w[i]
	}
}
