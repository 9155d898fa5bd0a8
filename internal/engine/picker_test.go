package engine

import (
	"testing"

	"github.com/hailam/lumen/internal/board"
)

func drainPicker(mp *MovePicker) []board.Move {
	var out []board.Move
	for {
		item := mp.Next()
		if item == nil {
			return out
		}
		out = append(out, item.Move)
	}
}

// TestPickerYieldsAllLegalMovesOnce: the staged picker is a permutation of
// the legal move list, no duplicates, no omissions.
func TestPickerYieldsAllLegalMovesOnce(t *testing.T) {
	fens := []string{
		board.StartFEN,
		"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
		"8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - - 0 1",
		"rnbq1k1r/pp1Pbppp/2p5/8/2B5/8/PPP1NnPP/RNBQK2R w KQ - 1 8",
	}

	hist := NewHistoryTables()
	for _, fen := range fens {
		b := mustFEN(t, fen)
		ctx := quietContext{stm: b.SideToMove, pawnKey: b.PawnKey}

		var legal board.MoveList
		b.GenerateLegalMoves(&legal)

		// Seed a TT move and killers from the legal set so every stage runs.
		ttMove := legal.At(0).Move
		var killers [2]board.Move
		for i := 0; i < legal.Len() && killers[1] == board.NoMove; i++ {
			m := legal.At(i).Move
			if !m.IsCapture() && !m.IsPromotion() && m != ttMove {
				if killers[0] == board.NoMove {
					killers[0] = m
				} else {
					killers[1] = m
				}
			}
		}

		got := drainPicker(NewMovePicker(&b, hist, &ctx, ttMove, killers))
		if len(got) != legal.Len() {
			t.Fatalf("%s: picker yielded %d moves, legal set has %d", fen, len(got), legal.Len())
		}

		seen := map[board.Move]bool{}
		for _, m := range got {
			if seen[m] {
				t.Errorf("%s: %v yielded twice", fen, m)
			}
			seen[m] = true
			if !legal.Contains(m) {
				t.Errorf("%s: %v not legal", fen, m)
			}
		}
	}
}

func TestPickerStageOrder(t *testing.T) {
	// A position with winning captures, losing captures and quiets.
	b := mustFEN(t, "1k1r4/1pp4p/p7/4p3/8/P5PB/1PP4P/2K1R3 w - - 0 1")
	hist := NewHistoryTables()
	ctx := quietContext{stm: b.SideToMove, pawnKey: b.PawnKey}

	moves := drainPicker(NewMovePicker(&b, hist, &ctx, board.NoMove, [2]board.Move{}))

	// Rxe5 wins a pawn and must come before every quiet move.
	rxe5 := mustMove(t, &b, "e1e5")
	rxe5Idx, firstQuiet := -1, -1
	for i, m := range moves {
		if m == rxe5 {
			rxe5Idx = i
		}
		if firstQuiet == -1 && !m.IsCapture() && !m.IsPromotion() {
			firstQuiet = i
		}
	}
	if rxe5Idx == -1 {
		t.Fatal("Rxe5 never yielded")
	}
	if firstQuiet != -1 && rxe5Idx > firstQuiet {
		t.Errorf("winning capture at %d after first quiet at %d", rxe5Idx, firstQuiet)
	}
}

func TestPickerTTMoveFirst(t *testing.T) {
	b := mustFEN(t, board.StartFEN)
	hist := NewHistoryTables()
	ctx := quietContext{stm: b.SideToMove, pawnKey: b.PawnKey}

	ttMove := mustMove(t, &b, "g1f3")
	moves := drainPicker(NewMovePicker(&b, hist, &ctx, ttMove, [2]board.Move{}))
	if len(moves) == 0 || moves[0] != ttMove {
		t.Errorf("TT move not first: %v", moves[:minInt(3, len(moves))])
	}

	// An illegal TT move is skipped without harm.
	bogus := board.NewMove(board.E2, board.E5, board.FlagQuiet)
	moves = drainPicker(NewMovePicker(&b, hist, &ctx, bogus, [2]board.Move{}))
	if len(moves) != 20 {
		t.Errorf("bogus TT move changed the move count: %d", len(moves))
	}
}

func TestPickerSkipQuiets(t *testing.T) {
	b := mustFEN(t, "1k1r4/1pp4p/p7/4p3/8/P5P1/1PP4P/2K1R3 w - - 0 1")
	hist := NewHistoryTables()
	ctx := quietContext{stm: b.SideToMove, pawnKey: b.PawnKey}

	mp := NewMovePicker(&b, hist, &ctx, board.NoMove, [2]board.Move{})
	mp.SkipQuiets()
	for _, m := range drainPicker(mp) {
		if !m.IsCapture() && !m.IsPromotion() {
			t.Errorf("quiet %v yielded after SkipQuiets", m)
		}
	}
}

func TestPickerCaptureHistoryTieBreak(t *testing.T) {
	// Nd4 can take either undefended pawn; both exchanges are worth exactly
	// one pawn, so capture history decides which comes first.
	fen := "4k3/8/2p1p3/8/3N4/8/8/4K3 w - - 0 1"
	b := mustFEN(t, fen)
	ctx := quietContext{stm: b.SideToMove, pawnKey: b.PawnKey}

	nxe6 := mustMove(t, &b, "d4e6")
	nxc6 := mustMove(t, &b, "d4c6")

	order := func(hist *HistoryTables) (int, int) {
		moves := drainPicker(NewMovePicker(&b, hist, &ctx, board.NoMove, [2]board.Move{}))
		e6Idx, c6Idx := -1, -1
		for i, m := range moves {
			switch m {
			case nxe6:
				e6Idx = i
			case nxc6:
				c6Idx = i
			}
		}
		return e6Idx, c6Idx
	}

	hist := NewHistoryTables()
	for i := 0; i < 20; i++ {
		hist.UpdateCapture(board.White, board.WhiteKnight, board.E6, board.Pawn, 400)
	}
	e6Idx, c6Idx := order(hist)
	if e6Idx == -1 || c6Idx == -1 {
		t.Fatal("captures missing from picker output")
	}
	if e6Idx > c6Idx {
		t.Errorf("rewarded capture yielded at %d, after its twin at %d", e6Idx, c6Idx)
	}

	// And symmetrically: rewarding the other twin flips the order.
	hist.Clear()
	for i := 0; i < 20; i++ {
		hist.UpdateCapture(board.White, board.WhiteKnight, board.C6, board.Pawn, 400)
	}
	if e6Idx, c6Idx = order(hist); c6Idx > e6Idx {
		t.Errorf("rewarded capture yielded at %d, after its twin at %d", c6Idx, e6Idx)
	}
}

func TestLoudPickerOnlyLoud(t *testing.T) {
	b := mustFEN(t, "r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1")
	hist := NewHistoryTables()
	ctx := quietContext{stm: b.SideToMove, pawnKey: b.PawnKey}

	var loud board.MoveList
	b.GenerateLoudMoves(&loud)

	moves := drainPicker(NewLoudPicker(&b, hist, &ctx, board.NoMove))
	if len(moves) != loud.Len() {
		t.Errorf("loud picker yielded %d moves, want %d", len(moves), loud.Len())
	}
	for _, m := range moves {
		if !m.IsCapture() && !m.IsPromotion() {
			t.Errorf("loud picker yielded quiet %v", m)
		}
	}
}
