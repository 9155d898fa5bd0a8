package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/hailam/lumen/internal/board"
	"github.com/hailam/lumen/internal/nnue"
	"github.com/hailam/lumen/internal/tablebase"
)

// SearchInfo is one line of progress reporting for the UCI layer.
type SearchInfo struct {
	Depth    int
	SelDepth int
	MultiPV  int
	Score    int
	Nodes    uint64
	NPS      uint64
	Time     time.Duration
	Hashfull int
	TBHits   uint64
	PV       []board.Move
}

// searchResult is one installed (depth, multipv) result.
type searchResult struct {
	move     board.Move
	score    int
	selDepth int
	pv       []board.Move
}

// SearchSharedState owns everything the search threads share: the
// transposition table, the network, limits, the per-thread locals and the
// mutex-guarded results array. The recursion itself never takes the mutex.
type SearchSharedState struct {
	TT       *TranspositionTable
	Net      *nnue.Network
	TB       tablebase.Prober
	Chess960 bool
	MultiPV  int
	OnInfo   func(SearchInfo)

	// TBProbeDepth is the minimum remaining depth at which the search probes
	// the tablebases; shallow nodes are not worth the adapter call.
	TBProbeDepth int

	limits  SearchLimits
	timeman *TimeManager
	locals  []*SearchLocalState

	mu      sync.Mutex
	results [MaxDepth + 1][]searchResult

	// highestCompletedDepth lets threads skip depths another thread already
	// finished; keepSearching is the global abort flag (acquire/release so a
	// stop command is seen promptly).
	highestCompletedDepth atomic.Int32
	keepSearching         atomic.Bool

	startTime time.Time
}

// NewSearchSharedState wires up shared state for the given thread count.
func NewSearchSharedState(tt *TranspositionTable, net *nnue.Network, threads int) *SearchSharedState {
	s := &SearchSharedState{
		TT:           tt,
		Net:          net,
		MultiPV:      1,
		TBProbeDepth: 1,
		timeman:      NewTimeManager(),
	}
	s.SetThreads(threads)
	return s
}

// SetThreads rebuilds the per-thread local states.
func (s *SearchSharedState) SetThreads(n int) {
	if n < 1 {
		n = 1
	}
	s.locals = make([]*SearchLocalState, n)
	for i := range s.locals {
		s.locals[i] = newSearchLocalState(i, s)
	}
}

// Threads returns the configured thread count.
func (s *SearchSharedState) Threads() int {
	return len(s.locals)
}

// ResetForNewGame clears all learned state, for ucinewgame.
func (s *SearchSharedState) ResetForNewGame() {
	s.TT.Clear()
	for _, l := range s.locals {
		l.hist.Clear()
		l.evalCache.Clear()
	}
}

// Stop asks every thread to unwind as soon as it notices.
func (s *SearchSharedState) Stop() {
	s.keepSearching.Store(false)
}

// Searching reports whether a search is in flight.
func (s *SearchSharedState) Searching() bool {
	return s.keepSearching.Load()
}

// TotalNodes sums node counters across threads.
func (s *SearchSharedState) TotalNodes() uint64 {
	var total uint64
	for _, l := range s.locals {
		total += l.nodes.Load()
	}
	return total
}

// totalTBHits sums tablebase hit counters across threads.
func (s *SearchSharedState) totalTBHits() uint64 {
	var total uint64
	for _, l := range s.locals {
		total += l.tbHits.Load()
	}
	return total
}

// Go runs a full search on gs under the given limits and returns the best
// move and a ponder move (NoMove if the PV is only one deep). Blocks until
// the search finishes; Stop() unblocks it.
func (s *SearchSharedState) Go(gs *board.GameState, limits SearchLimits) (board.Move, board.Move) {
	s.limits = limits
	s.timeman.Init(&limits, gs.Board().SideToMove, gs.Board().HalfTurns)
	s.keepSearching.Store(true)
	s.highestCompletedDepth.Store(0)
	for d := range s.results {
		s.results[d] = nil
	}
	s.TT.NewSearch()
	s.startTime = time.Now()

	var wg sync.WaitGroup
	for _, l := range s.locals {
		wg.Add(1)
		go func(l *SearchLocalState) {
			defer wg.Done()
			l.iterativeDeepening(gs)
		}(l)
	}
	wg.Wait()
	s.keepSearching.Store(false)

	s.mu.Lock()
	defer s.mu.Unlock()
	best := s.bestResultLocked()
	if best == nil || best.move == board.NoMove {
		// Never resign to a bookkeeping gap: fall back to any legal move.
		var ml board.MoveList
		gs.Board().GenerateLegalMoves(&ml)
		if ml.Len() == 0 {
			return board.NoMove, board.NoMove
		}
		return ml.At(0).Move, board.NoMove
	}

	ponder := board.NoMove
	if len(best.pv) > 1 {
		ponder = best.pv[1]
	}
	return best.move, ponder
}

func (s *SearchSharedState) bestResultLocked() *searchResult {
	for d := MaxDepth; d >= 1; d-- {
		if len(s.results[d]) > 0 && s.results[d][0].move != board.NoMove {
			return &s.results[d][0]
		}
	}
	return nil
}

// installResult records a finished (depth, multipv) search. Only the first
// thread to finish a slot reports it; the depth counter advances once the
// last multipv slot of a depth lands, and stop conditions tied to completed
// depths are evaluated here under the same mutex.
func (s *SearchSharedState) installResult(l *SearchLocalState, depth, pvIdx, score int, move board.Move, pv []board.Move) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.results[depth] == nil {
		s.results[depth] = make([]searchResult, s.MultiPV)
	}
	if s.results[depth][pvIdx].move != board.NoMove {
		return // another thread got here first
	}
	s.results[depth][pvIdx] = searchResult{
		move:     move,
		score:    score,
		selDepth: l.selDepth,
		pv:       pv,
	}

	if pvIdx == s.MultiPV-1 && depth > int(s.highestCompletedDepth.Load()) {
		s.highestCompletedDepth.Store(int32(depth))
	}

	if s.OnInfo != nil {
		elapsed := time.Since(s.startTime)
		nodes := s.TotalNodes()
		var nps uint64
		if elapsed > 0 {
			nps = uint64(float64(nodes) / elapsed.Seconds())
		}
		s.OnInfo(SearchInfo{
			Depth:    depth,
			SelDepth: l.selDepth,
			MultiPV:  pvIdx + 1,
			Score:    score,
			Nodes:    nodes,
			NPS:      nps,
			Time:     elapsed,
			Hashfull: s.TT.Hashfull(),
			TBHits:   s.totalTBHits(),
			PV:       pv,
		})
	}

	// Depth / mate limits end the search once a depth fully completes.
	if s.limits.Depth > 0 && depth >= s.limits.Depth && pvIdx == s.MultiPV-1 {
		s.keepSearching.Store(false)
	}
	if s.limits.Mate > 0 && score >= MateIn(2*s.limits.Mate) {
		s.keepSearching.Store(false)
	}
}

// voteToStop is the soft-time consensus: a thread past its soft budget asks
// to stop, and only when every thread agrees does the global flag drop. A
// single still-improving thread keeps the whole pool alive until hard time.
func (s *SearchSharedState) voteToStop(l *SearchLocalState) {
	l.wantsToStop.Store(true)
	for _, other := range s.locals {
		if !other.wantsToStop.Load() {
			return
		}
	}
	s.keepSearching.Store(false)
}

// SearchStackState is the per-ply scratch state, preallocated per thread and
// indexed by distance from root.
type SearchStackState struct {
	killers         [2]board.Move
	currentMove     board.Move
	movedPiece      board.Piece
	excludedMove    board.Move
	multiExtensions int
	staticEval      int
}

// pvTable is the triangular principal variation store.
type pvTable struct {
	length [MaxDepth + 1]int
	moves  [MaxDepth + 1][MaxDepth + 1]board.Move
}

func (pv *pvTable) update(ply int, m board.Move) {
	pv.moves[ply][ply] = m
	for j := ply + 1; j < pv.length[ply+1]; j++ {
		pv.moves[ply][j] = pv.moves[ply+1][j]
	}
	pv.length[ply] = pv.length[ply+1]
}

func (pv *pvTable) line() []board.Move {
	out := make([]board.Move, pv.length[0])
	copy(out, pv.moves[0][:pv.length[0]])
	return out
}

// SearchLocalState is one thread's private world: its game copy, histories,
// eval cache, accumulator stack and search stack. Nothing here is shared, so
// none of it is synchronized; the atomics exist only for cross-thread
// statistics reads.
type SearchLocalState struct {
	id     int
	shared *SearchSharedState

	game *board.GameState
	acc  *nnue.AccumulatorStack

	hist      *HistoryTables
	evalCache *EvalCache

	stack [MaxDepth + 8]SearchStackState
	pv    pvTable

	nodes  atomic.Uint64
	tbHits atomic.Uint64

	selDepth     int
	aborting     bool
	wantsToStop  atomic.Bool
	nmpMinPly    int
	rootExcluded []board.Move
}

func newSearchLocalState(id int, shared *SearchSharedState) *SearchLocalState {
	return &SearchLocalState{
		id:        id,
		shared:    shared,
		acc:       nnue.NewAccumulatorStack(),
		hist:      NewHistoryTables(),
		evalCache: NewEvalCache(),
	}
}

func (l *SearchLocalState) isRootExcluded(m board.Move) bool {
	for _, ex := range l.rootExcluded {
		if ex == m {
			return true
		}
	}
	return false
}
