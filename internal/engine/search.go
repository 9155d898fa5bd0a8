package engine

import (
	"math"

	"github.com/hailam/lumen/internal/board"
	"github.com/hailam/lumen/internal/tablebase"
)

// Late move reduction table, indexed by [depth][move number].
var lmrTable [64][64]int

func init() {
	for d := 1; d < 64; d++ {
		for m := 1; m < 64; m++ {
			r := math.Round(-1.76 + 1.03*math.Log(float64(d))*math.Log(float64(m)))
			if r < 0 {
				r = 0
			}
			lmrTable[d][m] = int(r)
		}
	}
}

// Aspiration window parameters.
const (
	aspirationInitialDelta = 15
	aspirationMinDepth     = 5
)

// iterativeDeepening is one thread's top-level loop. Every thread runs the
// same loop against its own copy of the game; the shared results array and
// the highest-completed-depth counter keep them from duplicating finished
// work.
func (l *SearchLocalState) iterativeDeepening(root *board.GameState) {
	s := l.shared

	l.game = root.Copy()
	l.acc.Reset(s.Net, l.game.Board())
	l.nodes.Store(0)
	l.tbHits.Store(0)
	l.aborting = false
	l.wantsToStop.Store(false)
	l.nmpMinPly = 0
	for i := range l.stack {
		l.stack[i] = SearchStackState{}
	}

	maxDepth := MaxDepth - 1
	if s.limits.Depth > 0 && s.limits.Depth < maxDepth {
		maxDepth = s.limits.Depth
	}

	var prevScore int
	chosen := make([]board.Move, 0, s.MultiPV)

	for depth := 1; depth <= maxDepth; depth++ {
		if !s.keepSearching.Load() {
			return
		}
		// Another thread already finished this depth: join at the frontier.
		if done := int(s.highestCompletedDepth.Load()); depth <= done {
			continue
		}

		chosen = chosen[:0]
		for pvIdx := 0; pvIdx < s.MultiPV; pvIdx++ {
			l.rootExcluded = chosen
			l.selDepth = 0

			score, ok := l.aspirationSearch(depth, prevScore)
			if !ok {
				return
			}

			move := board.NoMove
			pv := l.pv.line()
			if len(pv) > 0 {
				move = pv[0]
			}
			if move == board.NoMove {
				break // root exhausted (fewer legal moves than MultiPV)
			}

			chosen = append(chosen, move)
			if pvIdx == 0 {
				prevScore = score
			}
			s.installResult(l, depth, pvIdx, score, move, pv)
		}

		if !s.limits.Infinite && s.limits.HasClock() && s.timeman.PastSoft() {
			s.voteToStop(l)
		}
	}

	// Depth cap reached. Under "infinite" the protocol expects the engine to
	// idle until "stop", so just stop contributing quietly.
	if !s.limits.Infinite {
		s.keepSearching.Store(false)
	}
}

// aspirationSearch wraps the root search in a widening window around the
// previous score. Fail-lows pull alpha toward -inf and fail-highs push beta
// toward +inf, doubling delta each time.
func (l *SearchLocalState) aspirationSearch(depth, prevScore int) (int, bool) {
	alpha, beta := -Infinity, Infinity
	delta := aspirationInitialDelta
	if depth >= aspirationMinDepth {
		alpha = maxInt(-Infinity, prevScore-delta)
		beta = minInt(Infinity, prevScore+delta)
	}

	for {
		score := l.negascout(depth, 0, alpha, beta, false)
		if l.aborting {
			return 0, false
		}

		if score <= alpha {
			alpha = maxInt(-Infinity, alpha-delta)
			delta *= 2
		} else if score >= beta {
			beta = minInt(Infinity, beta+delta)
			delta *= 2
		} else {
			return score, true
		}
	}
}

// nodeTick counts a node and polls the stop conditions every 1024 nodes.
// Returns true when the search must unwind.
func (l *SearchLocalState) nodeTick() bool {
	n := l.nodes.Add(1)
	if n&1023 != 0 {
		return false
	}

	s := l.shared
	if !s.keepSearching.Load() {
		l.aborting = true
		return true
	}
	if !s.limits.Infinite {
		if s.limits.HasClock() && s.timeman.PastHard() {
			s.keepSearching.Store(false)
			l.aborting = true
			return true
		}
		if s.limits.Nodes > 0 && s.TotalNodes() >= s.limits.Nodes {
			s.keepSearching.Store(false)
			l.aborting = true
			return true
		}
	}
	return false
}

// evaluate returns the raw NNUE evaluation of the current position, memoized
// in the per-thread eval cache.
func (l *SearchLocalState) evaluate() int {
	b := l.game.Board()
	if eval, ok := l.evalCache.Probe(b.Key); ok {
		return eval
	}
	eval := l.shared.Net.Evaluate(l.acc.Current(), b.SideToMove)
	l.evalCache.Store(b.Key, eval)
	return eval
}

func (l *SearchLocalState) applyMove(m board.Move, mover, captured board.Piece) {
	l.game.ApplyMove(m)
	l.acc.ApplyMove(l.shared.Net, l.game.Board(), m, mover, captured)
}

func (l *SearchLocalState) revertMove() {
	l.game.RevertMove()
	l.acc.Pop()
}

func victimType(b *board.BoardState, m board.Move) board.PieceType {
	if m.IsEnPassant() {
		return board.Pawn
	}
	victim := b.PieceAt(m.To())
	if victim == board.NoPiece {
		return board.NoPieceType
	}
	return victim.Type()
}

// opponentAttacks builds the full attack map of the side not to move, used
// by the threat history index.
func opponentAttacks(b *board.BoardState) board.Bitboard {
	them := b.SideToMove.Other()
	occ := b.AllOccupied

	pawns := b.PieceBB(board.Pawn, them)
	var attacks board.Bitboard
	if them == board.White {
		attacks = pawns.NorthEast() | pawns.NorthWest()
	} else {
		attacks = pawns.SouthEast() | pawns.SouthWest()
	}

	for pt := board.Knight; pt <= board.King; pt++ {
		pieces := b.PieceBB(pt, them)
		for pieces != 0 {
			attacks |= board.PieceAttacks(pt, pieces.PopLSB(), occ)
		}
	}
	return attacks
}

func (l *SearchLocalState) buildQuietContext(ply int) quietContext {
	b := l.game.Board()
	ctx := quietContext{
		stm:        b.SideToMove,
		pawnKey:    b.PawnKey,
		threatened: opponentAttacks(b),
	}
	for i, d := range continuationPlies {
		ctx.prev[i] = NoPieceTo
		if ply-d >= 0 && l.stack[ply-d].currentMove != board.NoMove {
			ctx.prev[i] = PieceTo{
				Piece: l.stack[ply-d].movedPiece,
				To:    l.stack[ply-d].currentMove.To(),
			}
		}
	}
	return ctx
}

// Pruning and extension tuning constants.
const (
	snmpMaxDepth    = 8
	snmpMargin      = 119
	nmpMinDepth     = 3
	nmpVerifyDepth  = 10
	iidMinDepth     = 4
	lmpMaxDepth     = 6
	futilityDepth   = 15
	futilityBase    = 20
	futilityScale   = 82
	singularDepth   = 8
	singularTTSlack = 3
	deltaMargin     = 200
)

// negascout is the recursive principal variation search.
func (l *SearchLocalState) negascout(depth, ply, alpha, beta int, cutNode bool) int {
	if l.aborting || l.nodeTick() {
		return 0
	}

	b := l.game.Board()
	l.pv.length[ply] = ply
	if ply > l.selDepth {
		l.selDepth = ply
	}
	if ply >= MaxDepth-1 {
		if b.InCheck() {
			return DrawScore
		}
		return l.evaluate()
	}

	isPV := beta-alpha > 1
	excluded := l.stack[ply].excludedMove
	if ply > 0 {
		l.stack[ply].multiExtensions = l.stack[ply-1].multiExtensions
	}

	if ply > 0 {
		if l.game.IsDrawByFiftyMove() || l.game.IsDrawByInsufficientMaterial() ||
			l.game.IsDrawByRepetition(ply) {
			return DrawScore
		}
		// A reversible move can close a cycle below us: treat the node as at
		// least a draw before descending.
		if alpha < DrawScore && l.game.HasUpcomingRepetition(ply) {
			alpha = DrawScore
			if alpha >= beta {
				return alpha
			}
		}

		// Mate distance pruning: the window cannot escape the best and worst
		// mates reachable from here.
		alpha = maxInt(alpha, MatedIn(ply))
		beta = minInt(beta, MateIn(ply+1))
		if alpha >= beta {
			return alpha
		}
	}

	// Transposition table probe. The move is kept for ordering even when the
	// entry cannot produce a cutoff.
	var ttData TTData
	var ttHit bool
	ttMove := board.NoMove
	if excluded == board.NoMove {
		ttData, ttHit = l.shared.TT.Probe(b.Key, ply)
		if ttHit {
			ttMove = ttData.Move
			if !isPV && ply > 0 && ttData.Depth >= depth && ttCutoffAllowed(ttData, alpha, beta) {
				return ttData.Score
			}
		}
	}

	// Endgame tablebase probe: exact WDL beats anything the search could
	// compute. Castling rights would make the tables wrong, so skip then;
	// nodes shallower than the configured probe depth are not worth the
	// adapter call.
	if tb := l.shared.TB; tb != nil && ply > 0 && excluded == board.NoMove &&
		depth >= maxInt(1, l.shared.TBProbeDepth) &&
		b.CastleRooks == 0 && tablebase.CountPieces(b) <= tb.MaxPieces() {
		if res := tb.Probe(b); res.Found {
			l.tbHits.Add(1)
			score := tablebase.WDLToScore(res.WDL, ply)
			switch {
			case res.WDL == tablebase.WDLWin:
				if score >= beta {
					l.shared.TT.Store(b.Key, MaxDepth-1, score, BoundLower, board.NoMove, score, ply)
					return score
				}
				if isPV && score > alpha {
					alpha = score
				}
			case res.WDL == tablebase.WDLLoss:
				if score <= alpha {
					l.shared.TT.Store(b.Key, MaxDepth-1, score, BoundUpper, board.NoMove, score, ply)
					return score
				}
			default:
				l.shared.TT.Store(b.Key, MaxDepth-1, score, BoundExact, board.NoMove, score, ply)
				return score
			}
		}
	}

	if depth <= 0 {
		return l.quiescence(ply, alpha, beta)
	}

	inCheck := b.InCheck()

	// Static evaluation, adjusted by the learned corrections. In check the
	// eval is meaningless and all eval-based pruning is off.
	rawEval := -Infinity
	staticEval := -Infinity
	if !inCheck {
		rawEval = l.evaluate()
		staticEval = rawEval + l.hist.Correction(b)
	}
	l.stack[ply].staticEval = staticEval
	improving := !inCheck && ply >= 2 && l.stack[ply-2].staticEval != -Infinity &&
		staticEval > l.stack[ply-2].staticEval

	if !isPV && !inCheck && ply > 0 && excluded == board.NoMove {
		// Static null move pruning (reverse futility): a comfortable margin
		// above beta at shallow depth fails high without searching.
		if depth < snmpMaxDepth && !IsMateScore(beta) &&
			staticEval-snmpMargin*depth >= beta {
			return beta
		}

		// Null move pruning. Skipping a turn with material on the board and
		// still beating beta means the position is too good to matter.
		if depth >= nmpMinDepth && staticEval >= beta && ply >= l.nmpMinPly &&
			l.stack[ply-1].currentMove != board.NoMove && b.HasNonPawnMaterial() {
			r := 4 + depth/6 + minInt(3, (staticEval-beta)/250)

			l.stack[ply].currentMove = board.NoMove
			l.stack[ply].movedPiece = board.NoPiece
			l.game.ApplyNullMove()
			l.acc.ApplyNullMove()
			nullScore := -l.negascout(depth-r, ply+1, -beta, -beta+1, !cutNode)
			l.game.RevertMove()
			l.acc.Pop()
			if l.aborting {
				return 0
			}

			if nullScore >= beta {
				if IsMateScore(nullScore) {
					nullScore = beta
				}
				if depth < nmpVerifyDepth || l.nmpMinPly > 0 {
					return nullScore
				}
				// Verification: repeat the reduced search with null moves
				// forbidden in the upper part of the subtree.
				l.nmpMinPly = ply + (depth-r)*3/4
				verified := l.negascout(depth-r, ply, beta-1, beta, false)
				l.nmpMinPly = 0
				if l.aborting {
					return 0
				}
				if verified >= beta {
					return nullScore
				}
			}
		}
	}

	// Internal iterative deepening, Rebel style: no TT move at real depth
	// means the first search here would be badly ordered, so shrink it and
	// let the TT carry the move up.
	if ttMove == board.NoMove && depth >= iidMinDepth && !inCheck {
		depth--
	}

	singularCandidate := excluded == board.NoMove && ttHit && ttMove != board.NoMove &&
		depth >= singularDepth && ttData.Depth >= depth-singularTTSlack &&
		(ttData.Bound == BoundLower || ttData.Bound == BoundExact) &&
		!IsMateScore(ttData.Score)

	ctx := l.buildQuietContext(ply)
	picker := NewMovePicker(b, l.hist, &ctx, ttMove, l.stack[ply].killers)

	alphaOrig := alpha
	bestScore := -Infinity
	bestMove := board.NoMove
	moveCount := 0

	var quietsTried [64]board.Move
	var quietPieces [64]board.Piece
	numQuiets := 0
	var loudTried [32]board.Move
	numLoud := 0

	futile := !inCheck && depth < futilityDepth &&
		staticEval+futilityBase+futilityScale*depth < alpha

	for {
		item := picker.Next()
		if item == nil {
			break
		}
		m := item.Move
		if m == excluded {
			continue
		}
		if ply == 0 && l.isRootExcluded(m) {
			continue
		}
		isQuiet := !m.IsCapture() && !m.IsPromotion()

		if isQuiet && moveCount > 0 && !inCheck && !IsMateScore(alpha) {
			// Late move pruning: at shallow depth, past a move budget the
			// remaining quiets are statistically dead.
			if depth < lmpMaxDepth && moveCount >= 10+7*depth {
				picker.SkipQuiets()
				continue
			}
			// Futility: a hopeless static eval prunes quiets outright.
			if futile {
				picker.SkipQuiets()
				continue
			}
		}

		// Singular extension check, run before the TT move is applied: search
		// the node without it at reduced depth. If everything else fails
		// well below the TT score, the TT move is singular and earns an
		// extension; a fail high here instead proves a multicut.
		extension := 0
		if singularCandidate && m == ttMove && ply > 0 {
			singularBeta := ttData.Score - 2*depth
			l.stack[ply].excludedMove = m
			singularScore := l.negascout((depth-1)/2, ply, singularBeta-1, singularBeta, cutNode)
			l.stack[ply].excludedMove = board.NoMove
			if l.aborting {
				return 0
			}

			if singularScore < singularBeta {
				extension = 1
				if !isPV && singularScore < singularBeta-20 && l.stack[ply].multiExtensions < 8 {
					extension = 2
					l.stack[ply].multiExtensions++
				}
			} else if singularBeta >= beta {
				return singularBeta
			} else if ttData.Score >= beta {
				extension = -2
			}
		}

		mover := b.PieceAt(m.From())
		captured := board.NoPiece
		if m.IsEnPassant() {
			captured = board.NewPiece(board.Pawn, mover.Color().Other())
		} else if m.IsCapture() {
			captured = b.PieceAt(m.To())
		}

		l.stack[ply].currentMove = m
		l.stack[ply].movedPiece = mover
		l.applyMove(m, mover, captured)
		moveCount++

		if extension == 0 && l.game.Board().InCheck() {
			extension = 1
		}
		newDepth := depth - 1 + extension

		var score int
		switch {
		case moveCount == 1:
			score = -l.negascout(newDepth, ply+1, -beta, -alpha, false)

		case isQuiet && !inCheck && moveCount > 3 && depth > 2 && extension <= 0:
			// Late move reduction with a logarithmic schedule; PV nodes
			// reduce one ply less. A reduced fail-high re-searches at full
			// depth before the usual PVS re-search.
			r := lmrTable[minInt(depth, 63)][minInt(moveCount, 63)]
			if isPV {
				r--
			}
			if !improving {
				r++
			}
			r = clamp(r, 0, maxInt(0, newDepth-1))

			score = -l.negascout(newDepth-r, ply+1, -alpha-1, -alpha, true)
			if score > alpha && r > 0 {
				score = -l.negascout(newDepth, ply+1, -alpha-1, -alpha, !cutNode)
			}
			if score > alpha && score < beta {
				score = -l.negascout(newDepth, ply+1, -beta, -alpha, false)
			}

		default:
			score = -l.negascout(newDepth, ply+1, -alpha-1, -alpha, !cutNode)
			if score > alpha && score < beta {
				score = -l.negascout(newDepth, ply+1, -beta, -alpha, false)
			}
		}

		l.revertMove()
		if l.aborting {
			return 0
		}

		if isQuiet && numQuiets < len(quietsTried) {
			quietsTried[numQuiets] = m
			quietPieces[numQuiets] = mover
			numQuiets++
		} else if !isQuiet && numLoud < len(loudTried) {
			loudTried[numLoud] = m
			numLoud++
		}

		if score > bestScore {
			bestScore = score
			bestMove = m
			if score > alpha {
				alpha = score
				l.pv.update(ply, m)
			}
		}

		if score >= beta {
			l.updateCutoffStats(&ctx, b, ply, depth, m, mover, quietsTried[:numQuiets], quietPieces[:numQuiets], loudTried[:numLoud])
			break
		}
	}

	if moveCount == 0 {
		if excluded != board.NoMove {
			// Everything was excluded: report a fail-low to the singular
			// verification, never a mate.
			return alpha
		}
		if inCheck {
			return MatedIn(ply)
		}
		return DrawScore
	}

	bound := BoundUpper
	if bestScore >= beta {
		bound = BoundLower
	} else if bestScore > alphaOrig {
		bound = BoundExact
	}

	// Teach the correction histories how wrong the static eval was, when the
	// result is usable as an eval sample.
	if !inCheck && excluded == board.NoMove && !IsMateScore(bestScore) &&
		(bestMove == board.NoMove || !bestMove.IsCapture()) &&
		!(bound == BoundLower && bestScore <= staticEval) &&
		!(bound == BoundUpper && bestScore >= staticEval) {
		l.hist.UpdateCorrection(b, depth, bestScore-rawEval)
	}

	if excluded == board.NoMove && !l.aborting {
		l.shared.TT.Store(b.Key, depth, bestScore, bound, bestMove, rawEval, ply)
	}

	return bestScore
}

// ttCutoffAllowed applies the bound semantics of a stored score.
func ttCutoffAllowed(d TTData, alpha, beta int) bool {
	switch d.Bound {
	case BoundExact:
		return true
	case BoundLower:
		return d.Score >= beta
	case BoundUpper:
		return d.Score <= alpha
	}
	return false
}

// updateCutoffStats applies the history bonuses and maluses after a beta
// cutoff: the cutoff move is rewarded, every earlier tried move punished,
// and a quiet cutoff becomes the new first killer.
func (l *SearchLocalState) updateCutoffStats(ctx *quietContext, b *board.BoardState, ply, depth int, m board.Move, mover board.Piece, quiets []board.Move, quietPieces []board.Piece, louds []board.Move) {
	bonus := depth * depth

	if !m.IsCapture() && !m.IsPromotion() {
		l.hist.UpdateQuiet(ctx, mover, m, bonus)
		for i, q := range quiets {
			if q != m {
				l.hist.UpdateQuiet(ctx, quietPieces[i], q, -bonus)
			}
		}

		if l.stack[ply].killers[0] != m {
			l.stack[ply].killers[1] = l.stack[ply].killers[0]
			l.stack[ply].killers[0] = m
		}
	} else if m.IsCapture() {
		l.hist.UpdateCapture(ctx.stm, mover, m.To(), victimType(b, m), bonus)
	}

	for _, c := range louds {
		if c == m || !c.IsCapture() {
			continue
		}
		l.hist.UpdateCapture(ctx.stm, b.PieceAt(c.From()), c.To(), victimType(b, c), -bonus)
	}
}

// quiescence resolves captures until the position is calm enough to trust
// the static evaluation. In check it searches every evasion instead of
// standing pat.
func (l *SearchLocalState) quiescence(ply, alpha, beta int) int {
	if l.aborting || l.nodeTick() {
		return 0
	}

	b := l.game.Board()
	l.pv.length[ply] = ply
	if ply > l.selDepth {
		l.selDepth = ply
	}
	if ply >= MaxDepth-1 {
		if b.InCheck() {
			return DrawScore
		}
		return l.evaluate()
	}

	isPV := beta-alpha > 1

	ttData, ttHit := l.shared.TT.Probe(b.Key, ply)
	ttMove := board.NoMove
	if ttHit {
		ttMove = ttData.Move
		if !isPV && ttCutoffAllowed(ttData, alpha, beta) {
			return ttData.Score
		}
	}

	inCheck := b.InCheck()
	bestScore := -Infinity
	rawEval := -Infinity
	staticEval := -Infinity

	if !inCheck {
		rawEval = l.evaluate()
		staticEval = rawEval + l.hist.Correction(b)

		// Stand pat: taking nothing is always an option when not in check.
		if staticEval >= beta {
			l.shared.TT.Store(b.Key, 0, staticEval, BoundLower, board.NoMove, rawEval, ply)
			return staticEval
		}
		if staticEval > alpha {
			alpha = staticEval
		}
		bestScore = staticEval
	}

	ctx := l.buildQuietContext(ply)
	var picker *MovePicker
	if inCheck {
		picker = NewMovePicker(b, l.hist, &ctx, ttMove, [2]board.Move{})
	} else {
		picker = NewLoudPicker(b, l.hist, &ctx, ttMove)
	}

	alphaOrig := alpha
	bestMove := board.NoMove
	moveCount := 0

	for {
		item := picker.Next()
		if item == nil {
			break
		}
		m := item.Move

		if !inCheck {
			see, ok := item.SEE()
			if !ok {
				see = See(b, m)
			}
			// Losing captures cannot rescue a quiet position.
			if see < 0 {
				continue
			}
			// Delta pruning: even winning the exchange plus a margin leaves
			// alpha out of reach.
			if staticEval+see+deltaMargin <= alpha {
				continue
			}
		}

		mover := b.PieceAt(m.From())
		captured := board.NoPiece
		if m.IsEnPassant() {
			captured = board.NewPiece(board.Pawn, mover.Color().Other())
		} else if m.IsCapture() {
			captured = b.PieceAt(m.To())
		}

		l.stack[ply].currentMove = m
		l.stack[ply].movedPiece = mover
		l.applyMove(m, mover, captured)
		moveCount++

		score := -l.quiescence(ply+1, -beta, -alpha)
		l.revertMove()
		if l.aborting {
			return 0
		}

		if score > bestScore {
			bestScore = score
			bestMove = m
			if score > alpha {
				alpha = score
			}
		}
		if score >= beta {
			break
		}
	}

	if inCheck && moveCount == 0 {
		return MatedIn(ply)
	}

	bound := BoundUpper
	if bestScore >= beta {
		bound = BoundLower
	} else if bestScore > alphaOrig {
		bound = BoundExact
	}
	if !l.aborting {
		l.shared.TT.Store(b.Key, 0, bestScore, bound, bestMove, rawEval, ply)
	}
	return bestScore
}
