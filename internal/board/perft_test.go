package board

import "testing"

// perft counts leaf nodes of the legal move tree; the published totals for
// the standard test positions pin down every generation edge case.
func perft(g *GameState, depth int) uint64 {
	var ml MoveList
	g.Board().GenerateLegalMoves(&ml)
	if depth == 1 {
		return uint64(ml.Len())
	}

	var nodes uint64
	for i := 0; i < ml.Len(); i++ {
		g.ApplyMove(ml.At(i).Move)
		nodes += perft(g, depth-1)
		g.RevertMove()
	}
	return nodes
}

func runPerft(t *testing.T, fen string, expected []uint64, deepLimit int) {
	t.Helper()
	g, err := NewGameStateFromFEN(fen)
	if err != nil {
		t.Fatalf("ParseFEN(%q): %v", fen, err)
	}

	for depth := 1; depth <= len(expected); depth++ {
		if depth > deepLimit && testing.Short() {
			t.Skipf("skipping depth %d in short mode", depth)
		}
		if got := perft(g, depth); got != expected[depth-1] {
			t.Fatalf("perft(%d) = %d, want %d", depth, got, expected[depth-1])
		}
	}
}

func TestPerftStartingPosition(t *testing.T) {
	runPerft(t, StartFEN,
		[]uint64{20, 400, 8902, 197281, 4865609, 119060324}, 4)
}

func TestPerftKiwipete(t *testing.T) {
	runPerft(t, "r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
		[]uint64{48, 2039, 97862, 4085603, 193690690}, 3)
}

func TestPerftPosition3(t *testing.T) {
	runPerft(t, "8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - - 0 1",
		[]uint64{14, 191, 2812, 43238, 674624, 11030083, 178633661}, 5)
}

func TestPerftPosition4(t *testing.T) {
	runPerft(t, "r3k2r/Pppp1ppp/1b3nbN/nP6/BBP1P3/q4N2/Pp1P2PP/R2Q1RK1 w kq - 0 1",
		[]uint64{6, 264, 9467, 422333, 15833292, 706045033}, 4)
}

func TestPerftPosition5(t *testing.T) {
	runPerft(t, "rnbq1k1r/pp1Pbppp/2p5/8/2B5/8/PPP1NnPP/RNBQK2R w KQ - 1 8",
		[]uint64{44, 1486, 62379, 2103487, 89941194}, 4)
}

func TestPerftEnPassantPin(t *testing.T) {
	// The d3 en passant capture would expose the a4 king to the h4 rook.
	g, err := NewGameStateFromFEN("8/8/8/8/k2Pp2R/8/8/4K3 b - d3 0 1")
	if err != nil {
		t.Fatal(err)
	}

	var ml MoveList
	g.Board().GenerateLegalMoves(&ml)
	for i := 0; i < ml.Len(); i++ {
		if ml.At(i).Move.IsEnPassant() {
			t.Errorf("en passant %v should be illegal (horizontal pin)", ml.At(i).Move)
		}
	}

	if got := perft(g, 1); got != 6 {
		t.Errorf("perft(1) = %d, want 6", got)
	}
	if got := perft(g, 2); got != 94 {
		t.Errorf("perft(2) = %d, want 94", got)
	}
}

func TestPerftChess960Castling(t *testing.T) {
	// A Shredder-FEN start where both sides still castle with inner rooks.
	cases := []struct {
		fen      string
		depth    int
		expected uint64
	}{
		{"bqnb1rkr/pp3ppp/3ppn2/2p5/5P2/P2P4/NPP1P1PP/BQ1BNRKR w HFhf - 2 9", 1, 21},
		{"bqnb1rkr/pp3ppp/3ppn2/2p5/5P2/P2P4/NPP1P1PP/BQ1BNRKR w HFhf - 2 9", 2, 528},
		{"bqnb1rkr/pp3ppp/3ppn2/2p5/5P2/P2P4/NPP1P1PP/BQ1BNRKR w HFhf - 2 9", 3, 12189},
		{"2nnrbkr/p1qppppp/8/1ppb4/6PP/3PP3/PPP2P2/BQNNRBKR w HEhe - 1 9", 1, 21},
		{"2nnrbkr/p1qppppp/8/1ppb4/6PP/3PP3/PPP2P2/BQNNRBKR w HEhe - 1 9", 2, 807},
		{"2nnrbkr/p1qppppp/8/1ppb4/6PP/3PP3/PPP2P2/BQNNRBKR w HEhe - 1 9", 3, 18002},
	}

	for _, tc := range cases {
		g, err := NewGameStateFromFEN(tc.fen)
		if err != nil {
			t.Fatalf("ParseFEN(%q): %v", tc.fen, err)
		}
		if got := perft(g, tc.depth); got != tc.expected {
			t.Errorf("%s: perft(%d) = %d, want %d", tc.fen, tc.depth, got, tc.expected)
		}
	}
}
