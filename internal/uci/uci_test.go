package uci

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hailam/lumen/internal/board"
	"github.com/hailam/lumen/internal/engine"
	"github.com/hailam/lumen/internal/nnue"
)

func newTestHandler() (*Handler, *bytes.Buffer) {
	net := &nnue.Network{}
	net.InitRandom(0x7E57)
	shared := engine.NewSearchSharedState(engine.NewTranspositionTable(4), net, 1)
	out := &bytes.Buffer{}
	return New(shared, nil, out), out
}

func run(t *testing.T, input string) string {
	t.Helper()
	u, out := newTestHandler()
	if code := u.Run(strings.NewReader(input)); code != 0 {
		t.Fatalf("Run returned %d", code)
	}
	return out.String()
}

func TestUCIHandshake(t *testing.T) {
	out := run(t, "uci\nquit\n")

	for _, want := range []string{
		"id name Lumen",
		"id author",
		"option name Hash type spin default 64 min 1 max 1048576",
		"option name Threads type spin",
		"option name MultiPV type spin",
		"option name UCI_Chess960 type check default false",
		"option name EvalFile type string",
		"option name SyzygyPath type string",
		"option name SyzygyProbeDepth type spin default 1 min 1 max 100",
		"uciok",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("handshake missing %q\noutput:\n%s", want, out)
		}
	}
}

func TestUCIIsReady(t *testing.T) {
	out := run(t, "isready\nquit\n")
	if !strings.Contains(out, "readyok") {
		t.Errorf("no readyok in %q", out)
	}
}

func TestUCIPositionAndMoves(t *testing.T) {
	u, _ := newTestHandler()
	u.handlePosition(strings.Fields("startpos moves e2e4 e7e5 g1f3"))

	b := u.game.Board()
	if b.SideToMove != board.Black {
		t.Errorf("side to move = %v", b.SideToMove)
	}
	if b.PieceAt(board.F3) != board.WhiteKnight {
		t.Error("knight not on f3")
	}
}

func TestUCIPositionFEN(t *testing.T) {
	u, _ := newTestHandler()
	fen := "r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1"
	u.handlePosition(append([]string{"fen"}, strings.Fields(fen)...))

	if got := u.game.Board().ToFEN(); got != fen {
		t.Errorf("position fen mismatch:\ngot  %s\nwant %s", got, fen)
	}
}

func TestUCIBadInputRecovers(t *testing.T) {
	u, _ := newTestHandler()

	before := u.game.Board().Key
	u.handlePosition(strings.Fields("fen not a real fen at all"))
	if u.game.Board().Key != before {
		t.Error("bad FEN changed the position")
	}

	u.handlePosition(strings.Fields("startpos moves e2e5"))
	if u.game.Board().Key != before {
		t.Error("illegal move changed the position")
	}
}

func TestUCISetOptionValidation(t *testing.T) {
	u, _ := newTestHandler()

	u.handleSetOption(strings.Fields("name Threads value 4"))
	if got := u.shared.Threads(); got != 4 {
		t.Errorf("threads = %d, want 4", got)
	}

	// Out-of-range spin values are rejected, leaving the old value.
	u.handleSetOption(strings.Fields("name Threads value 100000"))
	if got := u.shared.Threads(); got != 4 {
		t.Errorf("threads changed to %d on invalid set", got)
	}

	u.handleSetOption(strings.Fields("name UCI_Chess960 value true"))
	if !u.chess960 {
		t.Error("chess960 option ignored")
	}

	u.handleSetOption(strings.Fields("name SyzygyProbeDepth value 8"))
	if got := u.shared.TBProbeDepth; got != 8 {
		t.Errorf("SyzygyProbeDepth = %d, want 8", got)
	}
	u.handleSetOption(strings.Fields("name SyzygyProbeDepth value 0"))
	if got := u.shared.TBProbeDepth; got != 8 {
		t.Errorf("out-of-range SyzygyProbeDepth changed the value to %d", got)
	}
}

// syncWriter makes the output buffer safe against the search goroutine
// printing bestmove while the test reads.
type syncWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (w *syncWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

func TestUCIGoProducesBestmove(t *testing.T) {
	net := &nnue.Network{}
	net.InitRandom(0x7E57)
	shared := engine.NewSearchSharedState(engine.NewTranspositionTable(4), net, 1)
	out := &syncWriter{}
	u := New(shared, nil, out)

	// Run drains stdin, then waits for the depth-limited search on quit.
	if code := u.Run(strings.NewReader("position startpos\ngo depth 4\nquit\n")); code != 0 {
		t.Fatalf("Run returned %d", code)
	}

	deadline := time.Now().Add(30 * time.Second)
	for !strings.Contains(out.String(), "bestmove ") {
		if time.Now().After(deadline) {
			t.Fatalf("no bestmove before deadline:\n%s", out.String())
		}
		time.Sleep(20 * time.Millisecond)
	}

	s := out.String()
	if !strings.Contains(s, "info depth") || !strings.Contains(s, " pv ") {
		t.Errorf("missing info output:\n%s", s)
	}
}

func TestParseGoArgs(t *testing.T) {
	limits := parseGoArgs(strings.Fields("wtime 60000 btime 50000 winc 1000 binc 2000 movestogo 30 depth 12 nodes 5000 mate 3"))

	if limits.Time[board.White] != 60*time.Second || limits.Time[board.Black] != 50*time.Second {
		t.Errorf("times: %v", limits.Time)
	}
	if limits.Inc[board.White] != time.Second || limits.Inc[board.Black] != 2*time.Second {
		t.Errorf("incs: %v", limits.Inc)
	}
	if limits.MovesToGo != 30 || limits.Depth != 12 || limits.Nodes != 5000 || limits.Mate != 3 {
		t.Errorf("limits: %+v", limits)
	}

	if !parseGoArgs([]string{"infinite"}).Infinite {
		t.Error("infinite not parsed")
	}
}

func TestMoveStringChess960Castle(t *testing.T) {
	u, _ := newTestHandler()
	m := board.NewMove(board.E1, board.H1, board.FlagCastleHSide)

	if got := u.moveString(m); got != "e1g1" {
		t.Errorf("classic castle = %q, want e1g1", got)
	}
	u.chess960 = true
	if got := u.moveString(m); got != "e1h1" {
		t.Errorf("chess960 castle = %q, want e1h1", got)
	}
}
