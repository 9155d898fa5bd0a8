// Package uci implements the Universal Chess Interface protocol loop.
// Protocol output goes to stdout; every diagnostic goes through the logger
// so a GUI never sees a line it cannot parse.
package uci

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/op/go-logging"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/hailam/lumen/internal/board"
	"github.com/hailam/lumen/internal/engine"
	"github.com/hailam/lumen/internal/nnue"
	"github.com/hailam/lumen/internal/storage"
	"github.com/hailam/lumen/internal/tablebase"
)

var log = logging.MustGetLogger("lumen.uci")

// printer groups digits in logged node counts (1,234,567) without touching
// protocol output.
var printer = message.NewPrinter(language.English)

const (
	engineName   = "Lumen"
	engineAuthor = "hailam"
)

// option is one typed entry of the option table. Setting an out-of-range
// spin value is rejected before apply runs.
type option struct {
	name string
	typ  string // "spin", "check", "string", "button"
	def  string
	min  int
	max  int

	apply func(u *Handler, value string) error
}

// Handler owns the protocol state: the current game, the shared search
// state, and the option table.
type Handler struct {
	shared *engine.SearchSharedState
	store  *storage.Store
	game   *board.GameState
	out    io.Writer

	options []option

	chess960   bool
	ponder     bool
	hashMB     int
	evalFile   string
	syzygyPath string

	mu         sync.Mutex
	searching  bool
	searchDone chan struct{}
	stopCh     chan struct{}
}

// New builds a handler around the shared search state. store may be nil.
func New(shared *engine.SearchSharedState, store *storage.Store, out io.Writer) *Handler {
	u := &Handler{
		shared: shared,
		store:  store,
		game:   board.NewGameState(),
		out:    out,
	}
	u.options = []option{
		{name: "Hash", typ: "spin", def: "64", min: 1, max: 1048576,
			apply: func(u *Handler, v string) error {
				mb, err := strconv.Atoi(v)
				if err != nil {
					return fmt.Errorf("not a number: %q", v)
				}
				u.shared.TT.Resize(mb)
				u.hashMB = mb
				return nil
			}},
		{name: "Threads", typ: "spin", def: "1", min: 1, max: 512,
			apply: func(u *Handler, v string) error {
				n, err := strconv.Atoi(v)
				if err != nil {
					return fmt.Errorf("not a number: %q", v)
				}
				u.shared.SetThreads(n)
				return nil
			}},
		{name: "MultiPV", typ: "spin", def: "1", min: 1, max: 256,
			apply: func(u *Handler, v string) error {
				n, err := strconv.Atoi(v)
				if err != nil {
					return fmt.Errorf("not a number: %q", v)
				}
				u.shared.MultiPV = n
				return nil
			}},
		{name: "UCI_Chess960", typ: "check", def: "false",
			apply: func(u *Handler, v string) error {
				u.chess960 = strings.EqualFold(v, "true")
				u.shared.Chess960 = u.chess960
				return nil
			}},
		{name: "Ponder", typ: "check", def: "false",
			apply: func(u *Handler, v string) error {
				u.ponder = strings.EqualFold(v, "true")
				return nil
			}},
		{name: "EvalFile", typ: "string", def: "<empty>",
			apply: func(u *Handler, v string) error {
				if err := u.loadNetwork(v); err != nil {
					return err
				}
				u.evalFile = v
				return nil
			}},
		{name: "SyzygyPath", typ: "string", def: "<empty>",
			apply: func(u *Handler, v string) error {
				if v == "" || v == "<empty>" {
					u.shared.TB = nil
					u.syzygyPath = ""
					return nil
				}
				u.shared.TB = tablebase.NewSyzygyProber(v)
				u.syzygyPath = v
				return nil
			}},
		{name: "SyzygyProbeDepth", typ: "spin", def: "1", min: 1, max: 100,
			apply: func(u *Handler, v string) error {
				n, err := strconv.Atoi(v)
				if err != nil {
					return fmt.Errorf("not a number: %q", v)
				}
				u.shared.TBProbeDepth = n
				return nil
			}},
		{name: "Clear Hash", typ: "button",
			apply: func(u *Handler, v string) error {
				u.shared.ResetForNewGame()
				return nil
			}},
	}
	return u
}

func (u *Handler) loadNetwork(path string) error {
	if path == "" || path == "<empty>" {
		return nil
	}
	if u.store != nil {
		if sum, err := u.store.VerifyNetFile(path); err == nil {
			log.Infof("network %s checksum %016x", path, sum)
		}
	}
	net, err := nnue.LoadFile(path)
	if err != nil {
		return err
	}
	u.shared.Net = net
	log.Infof("network loaded from %s", path)
	return nil
}

// Run processes commands until quit or EOF. Returns the process exit code:
// zero on a clean quit, non-zero on a read error.
func (u *Handler) Run(in io.Reader) int {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 1<<16), 1<<20)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd, args := fields[0], fields[1:]

		switch cmd {
		case "uci":
			u.handleUCI()
		case "isready":
			u.send("readyok")
		case "setoption":
			u.handleSetOption(args)
		case "ucinewgame":
			u.handleNewGame()
		case "position":
			u.handlePosition(args)
		case "go":
			u.handleGo(args)
		case "stop":
			u.handleStop()
		case "ponderhit":
			// Pondering is time-managed as a normal search; ponderhit only
			// releases the wait for "stop" so bestmove follows the search.
			u.mu.Lock()
			if u.searching {
				select {
				case <-u.stopCh:
				default:
					close(u.stopCh)
				}
			}
			u.mu.Unlock()
		case "quit":
			u.handleStop()
			return 0
		case "d":
			u.send("%s", u.game.Board().String())
		case "perft":
			u.handlePerft(args)
		default:
			log.Warningf("unknown command %q", cmd)
		}
	}

	u.handleStop()
	if err := scanner.Err(); err != nil {
		log.Errorf("reading stdin: %v", err)
		return 1
	}
	return 0
}

func (u *Handler) send(format string, a ...any) {
	fmt.Fprintf(u.out, format+"\n", a...)
}

func (u *Handler) handleUCI() {
	u.send("id name %s", engineName)
	u.send("id author %s", engineAuthor)
	u.send("")
	for _, opt := range u.options {
		switch opt.typ {
		case "spin":
			u.send("option name %s type spin default %s min %d max %d", opt.name, opt.def, opt.min, opt.max)
		case "button":
			u.send("option name %s type button", opt.name)
		default:
			u.send("option name %s type %s default %s", opt.name, opt.typ, opt.def)
		}
	}
	u.send("uciok")
}

func (u *Handler) handleSetOption(args []string) {
	var name, value string
	mode := ""
	for _, arg := range args {
		switch arg {
		case "name":
			mode = "name"
		case "value":
			mode = "value"
		default:
			switch mode {
			case "name":
				if name != "" {
					name += " "
				}
				name += arg
			case "value":
				if value != "" {
					value += " "
				}
				value += arg
			}
		}
	}

	for i := range u.options {
		opt := &u.options[i]
		if !strings.EqualFold(opt.name, name) {
			continue
		}
		if opt.typ == "spin" {
			n, err := strconv.Atoi(value)
			if err != nil || n < opt.min || n > opt.max {
				log.Warningf("option %s: value %q out of range [%d, %d]", opt.name, value, opt.min, opt.max)
				return
			}
		}
		if err := opt.apply(u, value); err != nil {
			log.Warningf("option %s: %v", opt.name, err)
		} else {
			u.persistOptions()
		}
		return
	}
	log.Warningf("unknown option %q", name)
}

func (u *Handler) persistOptions() {
	if u.store == nil {
		return
	}
	opts := storage.Options{
		HashMB:           u.hashMB,
		Threads:          u.shared.Threads(),
		MultiPV:          u.shared.MultiPV,
		EvalFile:         u.evalFile,
		SyzygyPath:       u.syzygyPath,
		SyzygyProbeDepth: u.shared.TBProbeDepth,
		Chess960:         u.chess960,
	}
	if opts.HashMB == 0 {
		opts.HashMB = 64
	}
	if err := u.store.SaveOptions(opts); err != nil {
		log.Warningf("persisting options: %v", err)
	}
}

func (u *Handler) handleNewGame() {
	u.shared.ResetForNewGame()
	u.game = board.NewGameState()
}

func (u *Handler) handlePosition(args []string) {
	if len(args) == 0 {
		return
	}

	var game *board.GameState
	moveStart := len(args)

	switch args[0] {
	case "startpos":
		game = board.NewGameState()
		for i, arg := range args {
			if arg == "moves" {
				moveStart = i + 1
				break
			}
		}
	case "fen":
		fenEnd := len(args)
		for i, arg := range args[1:] {
			if arg == "moves" {
				fenEnd = i + 1
				moveStart = i + 2
				break
			}
		}
		g, err := board.NewGameStateFromFEN(strings.Join(args[1:fenEnd], " "))
		if err != nil {
			log.Warningf("position: %v", err)
			return
		}
		game = g
	default:
		log.Warningf("position: expected startpos or fen, got %q", args[0])
		return
	}

	for _, moveStr := range args[minInt(moveStart, len(args)):] {
		if err := game.ApplyMoveString(moveStr, u.chess960); err != nil {
			log.Warningf("position: %v; position unchanged", err)
			return
		}
	}
	u.game = game
}

func (u *Handler) handleGo(args []string) {
	u.mu.Lock()
	if u.searching {
		u.mu.Unlock()
		log.Warningf("go while already searching")
		return
	}

	limits := parseGoArgs(args)
	u.searching = true
	u.searchDone = make(chan struct{})
	u.stopCh = make(chan struct{})
	u.mu.Unlock()

	u.shared.OnInfo = func(info engine.SearchInfo) {
		u.sendInfo(info)
	}

	game := u.game.Copy()
	waitForStop := limits.Infinite || limits.Ponder

	go func() {
		defer close(u.searchDone)

		start := time.Now()
		best, ponder := u.shared.Go(game, limits)

		// "go infinite" and "go ponder" hold bestmove until "stop" (or
		// "ponderhit").
		if waitForStop {
			<-u.stopCh
		}

		log.Infof("searched %v nodes in %v", printer.Sprint(u.shared.TotalNodes()), time.Since(start).Round(time.Millisecond))

		u.mu.Lock()
		u.searching = false
		u.mu.Unlock()

		if best == board.NoMove {
			u.send("bestmove 0000")
			return
		}
		if ponder != board.NoMove {
			u.send("bestmove %s ponder %s", u.moveString(best), u.moveString(ponder))
		} else {
			u.send("bestmove %s", u.moveString(best))
		}
	}()
}

func parseGoArgs(args []string) engine.SearchLimits {
	var limits engine.SearchLimits

	ms := func(v string) time.Duration {
		n, _ := strconv.Atoi(v)
		return time.Duration(n) * time.Millisecond
	}

	for i := 0; i < len(args); i++ {
		next := func() string {
			if i+1 < len(args) {
				i++
				return args[i]
			}
			return ""
		}
		switch args[i] {
		case "depth":
			limits.Depth, _ = strconv.Atoi(next())
		case "nodes":
			limits.Nodes, _ = strconv.ParseUint(next(), 10, 64)
		case "mate":
			limits.Mate, _ = strconv.Atoi(next())
		case "movetime":
			limits.MoveTime = ms(next())
		case "wtime":
			limits.Time[board.White] = ms(next())
		case "btime":
			limits.Time[board.Black] = ms(next())
		case "winc":
			limits.Inc[board.White] = ms(next())
		case "binc":
			limits.Inc[board.Black] = ms(next())
		case "movestogo":
			limits.MovesToGo, _ = strconv.Atoi(next())
		case "infinite":
			limits.Infinite = true
		case "ponder":
			limits.Ponder = true
		}
	}
	return limits
}

func (u *Handler) handleStop() {
	u.mu.Lock()
	searching := u.searching
	done := u.searchDone
	stopCh := u.stopCh
	u.mu.Unlock()

	if !searching {
		return
	}
	u.shared.Stop()
	select {
	case <-stopCh:
	default:
		close(stopCh)
	}
	<-done
}

func (u *Handler) handlePerft(args []string) {
	depth := 5
	if len(args) > 0 {
		if d, err := strconv.Atoi(args[0]); err == nil && d >= 1 {
			depth = d
		}
	}

	start := time.Now()
	nodes := perft(u.game, depth)
	elapsed := time.Since(start)

	u.send("Nodes: %d", nodes)
	u.send("Time: %v", elapsed.Round(time.Millisecond))
	if elapsed > 0 {
		u.send("NPS: %.0f", float64(nodes)/elapsed.Seconds())
	}
}

func perft(g *board.GameState, depth int) uint64 {
	var ml board.MoveList
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

// sendInfo renders one "info" line.
func (u *Handler) sendInfo(info engine.SearchInfo) {
	var sb strings.Builder

	fmt.Fprintf(&sb, "info depth %d seldepth %d multipv %d", info.Depth, info.SelDepth, info.MultiPV)

	if engine.IsMateScore(info.Score) {
		fmt.Fprintf(&sb, " score mate %d", engine.MateDistance(info.Score))
	} else {
		fmt.Fprintf(&sb, " score cp %d", info.Score)
	}

	fmt.Fprintf(&sb, " nodes %d nps %d hashfull %d tbhits %d time %d",
		info.Nodes, info.NPS, info.Hashfull, info.TBHits, info.Time.Milliseconds())

	if len(info.PV) > 0 {
		sb.WriteString(" pv")
		for _, m := range info.PV {
			sb.WriteByte(' ')
			sb.WriteString(u.moveString(m))
		}
	}

	u.send("%s", sb.String())
}

// moveString renders a move for the wire: castling prints the king's
// destination in classic chess and the rook's square under Chess960.
func (u *Handler) moveString(m board.Move) string {
	if u.chess960 && m.IsCastle() {
		s := m.From().String() + m.To().String()
		return s
	}
	return m.String()
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
