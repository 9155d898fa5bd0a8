package nnue

import (
	"bytes"
	"strings"
	"testing"

	"github.com/hailam/lumen/internal/board"
)

func testNetwork() *Network {
	net := &Network{}
	net.InitRandom(0xBADC0FFEE)
	return net
}

// TestIncrementalMatchesRefresh: after any move the incrementally updated
// accumulator must equal a from-scratch rebuild.
func TestIncrementalMatchesRefresh(t *testing.T) {
	net := testNetwork()

	fens := []string{
		board.StartFEN,
		"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
		"rnbq1k1r/pp1Pbppp/2p5/8/2B5/8/PPP1NnPP/RNBQK2R w KQ - 1 8",
	}

	for _, fen := range fens {
		g, err := board.NewGameStateFromFEN(fen)
		if err != nil {
			t.Fatal(err)
		}

		stack := NewAccumulatorStack()
		stack.Reset(net, g.Board())

		var ml board.MoveList
		g.Board().GenerateLegalMoves(&ml)
		for i := 0; i < ml.Len(); i++ {
			m := ml.At(i).Move
			mover := g.Board().PieceAt(m.From())
			var captured board.Piece = board.NoPiece
			if m.IsEnPassant() {
				captured = board.NewPiece(board.Pawn, mover.Color().Other())
			} else if m.IsCapture() {
				captured = g.Board().PieceAt(m.To())
			}

			g.ApplyMove(m)
			stack.ApplyMove(net, g.Board(), m, mover, captured)

			var want Accumulator
			want.Refresh(net, g.Board(), board.White)
			want.Refresh(net, g.Board(), board.Black)
			if *stack.Current() != want {
				t.Errorf("%s: incremental accumulator diverges after %v", fen, m)
			}

			stack.Pop()
			g.RevertMove()
		}
	}
}

// TestAccumulatorRoundTrip: push/pop restores the accumulator bit-exactly.
func TestAccumulatorRoundTrip(t *testing.T) {
	net := testNetwork()
	g := board.NewGameState()

	stack := NewAccumulatorStack()
	stack.Reset(net, g.Board())
	before := *stack.Current()

	var ml board.MoveList
	g.Board().GenerateLegalMoves(&ml)
	for i := 0; i < ml.Len(); i++ {
		m := ml.At(i).Move
		mover := g.Board().PieceAt(m.From())
		g.ApplyMove(m)
		stack.ApplyMove(net, g.Board(), m, mover, board.NoPiece)
		stack.Pop()
		g.RevertMove()

		if *stack.Current() != before {
			t.Fatalf("accumulator not restored after %v", m)
		}
	}

	stack.ApplyNullMove()
	stack.Pop()
	if *stack.Current() != before {
		t.Fatal("accumulator not restored after null move")
	}
}

// TestEvalSymmetry: a position and its color-flipped mirror produce the same
// score relative to the side to move.
func TestEvalSymmetry(t *testing.T) {
	net := testNetwork()

	cases := []struct{ fen, mirrored string }{
		{board.StartFEN, board.StartFEN},
		{
			"r1bqkbnr/pppp1ppp/2n5/4p3/2B1P3/5N2/PPPP1PPP/RNBQK2R b KQkq - 3 3",
			"rnbqk2r/pppp1ppp/5n2/2b1p3/4P3/2N5/PPPP1PPP/R1BQKBNR w KQkq - 3 3",
		},
		{
			"4k3/8/3q4/8/8/8/4P3/4K3 w - - 0 1",
			"4k3/4p3/8/8/8/3Q4/8/4K3 b - - 0 1",
		},
	}

	for _, tc := range cases {
		a, err := board.ParseFEN(tc.fen)
		if err != nil {
			t.Fatal(err)
		}
		b, err := board.ParseFEN(tc.mirrored)
		if err != nil {
			t.Fatal(err)
		}

		var accA, accB Accumulator
		accA.Refresh(net, &a, board.White)
		accA.Refresh(net, &a, board.Black)
		accB.Refresh(net, &b, board.White)
		accB.Refresh(net, &b, board.Black)

		evalA := net.Evaluate(&accA, a.SideToMove)
		evalB := net.Evaluate(&accB, b.SideToMove)
		if evalA != evalB {
			t.Errorf("%s vs mirror: stm-relative evals differ (%d vs %d)", tc.fen, evalA, evalB)
		}
	}
}

// TestEvalClamped: the forward pass never leaves the static-eval range.
func TestEvalClamped(t *testing.T) {
	net := testNetwork()
	b, err := board.ParseFEN("QQQQK2k/8/8/8/8/8/8/8 w - - 0 1")
	if err != nil {
		t.Fatal(err)
	}

	var acc Accumulator
	acc.Refresh(net, &b, board.White)
	acc.Refresh(net, &b, board.Black)
	eval := net.Evaluate(&acc, board.White)
	if eval > EvalClamp || eval < -EvalClamp {
		t.Errorf("eval %d escapes the clamp range", eval)
	}
}

func TestWeightsRoundTrip(t *testing.T) {
	net := testNetwork()

	var buf bytes.Buffer
	if err := net.Save(&buf); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != WeightFileSize {
		t.Fatalf("serialized size %d, want %d", buf.Len(), WeightFileSize)
	}

	loaded, err := Load(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if *loaded != *net {
		t.Error("loaded network differs from saved network")
	}
}

func TestLoadTruncated(t *testing.T) {
	net := testNetwork()
	var buf bytes.Buffer
	if err := net.Save(&buf); err != nil {
		t.Fatal(err)
	}

	truncated := buf.Bytes()[:buf.Len()/2]
	_, err := Load(bytes.NewReader(truncated))
	if err == nil {
		t.Fatal("loading a truncated stream should fail")
	}
	if !strings.Contains(err.Error(), "feature transformer") {
		t.Errorf("truncation error should name the failing layer, got %q", err)
	}
}
