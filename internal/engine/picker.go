package engine

import "github.com/hailam/lumen/internal/board"

// Staged move picker. Moves are produced in the order: TT move, good loud
// moves, the two killers, bad loud moves, then history-ordered quiets. Each
// stage generates only when reached, so a beta cutoff on the TT move never
// pays for move generation at all.

type pickerStage uint8

const (
	stageTTMove pickerStage = iota
	stageGenLoud
	stageGoodLoud
	stageKiller1
	stageKiller2
	stageBadLoud
	stageGenQuiet
	stageQuiets
	stageDone
)

// Ordering score bases. Within a stage a selection sort picks the best
// remaining item; the gap between bases keeps stages from interleaving.
const (
	scoreQueenPromotion = 25000
	scoreCapture        = 20000
	scoreBadCapture     = -20000
	scoreUnderPromotion = -28000
)

// MovePicker walks the staged ordering for one node.
type MovePicker struct {
	b    *board.BoardState
	hist *HistoryTables
	ctx  *quietContext

	ttMove  board.Move
	killers [2]board.Move

	loud  board.MoveList
	quiet board.MoveList

	stage      pickerStage
	loudIdx    int
	quietIdx   int
	skipQuiets bool
	loudOnly   bool

	// Backing items for moves that are not part of a generated list.
	ttItem     board.ScoredMove
	killerItem board.ScoredMove
}

// NewMovePicker builds a picker for a main-search node.
func NewMovePicker(b *board.BoardState, hist *HistoryTables, ctx *quietContext, ttMove board.Move, killers [2]board.Move) *MovePicker {
	return &MovePicker{
		b:       b,
		hist:    hist,
		ctx:     ctx,
		ttMove:  ttMove,
		killers: killers,
	}
}

// NewLoudPicker builds a picker that yields only loud moves (quiescence when
// not in check). The TT move is still tried first when it is loud.
func NewLoudPicker(b *board.BoardState, hist *HistoryTables, ctx *quietContext, ttMove board.Move) *MovePicker {
	if ttMove != board.NoMove && !ttMove.IsCapture() && !ttMove.IsPromotion() {
		ttMove = board.NoMove
	}
	return &MovePicker{
		b:        b,
		hist:     hist,
		ctx:      ctx,
		ttMove:   ttMove,
		loudOnly: true,
	}
}

// SkipQuiets makes the remaining quiet stages yield nothing. Used by late
// move pruning and the futility fail-safe.
func (mp *MovePicker) SkipQuiets() {
	mp.skipQuiets = true
}

// Next returns the next candidate, already vetted for legality, or nil when
// the node is exhausted.
func (mp *MovePicker) Next() *board.ScoredMove {
	for {
		switch mp.stage {
		case stageTTMove:
			mp.stage = stageGenLoud
			if mp.ttMove != board.NoMove && mp.b.IsLegal(mp.ttMove) {
				mp.ttItem.Move = mp.ttMove
				mp.ttItem.Score = 0
				return &mp.ttItem
			}

		case stageGenLoud:
			mp.b.GenerateLoudMoves(&mp.loud)
			mp.scoreLoudMoves()
			mp.stage = stageGoodLoud

		case stageGoodLoud:
			item := mp.pickBest(&mp.loud, &mp.loudIdx)
			if item == nil || item.Score < scoreCapture {
				if item != nil {
					mp.loudIdx-- // leave it for the bad stage
				}
				if mp.loudOnly {
					mp.stage = stageBadLoud
				} else {
					mp.stage = stageKiller1
				}
				continue
			}
			if item.Move == mp.ttMove {
				continue
			}
			return item

		case stageKiller1:
			mp.stage = stageKiller2
			if m := mp.killers[0]; mp.killerUsable(m) {
				mp.killerItem.Move = m
				mp.killerItem.Score = 0
				return &mp.killerItem
			}

		case stageKiller2:
			mp.stage = stageBadLoud
			if m := mp.killers[1]; mp.killerUsable(m) {
				mp.killerItem.Move = m
				mp.killerItem.Score = 0
				return &mp.killerItem
			}

		case stageBadLoud:
			item := mp.pickBest(&mp.loud, &mp.loudIdx)
			if item == nil {
				if mp.loudOnly {
					mp.stage = stageDone
				} else {
					mp.stage = stageGenQuiet
				}
				continue
			}
			if item.Move == mp.ttMove {
				continue
			}
			return item

		case stageGenQuiet:
			if mp.skipQuiets {
				mp.stage = stageDone
				continue
			}
			mp.b.GenerateQuietMoves(&mp.quiet)
			mp.scoreQuietMoves()
			mp.stage = stageQuiets

		case stageQuiets:
			if mp.skipQuiets {
				mp.stage = stageDone
				continue
			}
			item := mp.pickBest(&mp.quiet, &mp.quietIdx)
			if item == nil {
				mp.stage = stageDone
				continue
			}
			m := item.Move
			if m == mp.ttMove || m == mp.killers[0] || m == mp.killers[1] {
				continue
			}
			return item

		default:
			return nil
		}
	}
}

func (mp *MovePicker) killerUsable(m board.Move) bool {
	return m != board.NoMove && m != mp.ttMove &&
		!m.IsCapture() && !m.IsPromotion() && mp.b.IsLegal(m)
}

// pickBest selection-sorts one step: the best remaining item is swapped to
// *idx and returned. A partial order is all the search needs because the
// stage gaps dominate any intra-stage imprecision.
func (mp *MovePicker) pickBest(list *board.MoveList, idx *int) *board.ScoredMove {
	if *idx >= list.Len() {
		return nil
	}
	best := *idx
	for j := *idx + 1; j < list.Len(); j++ {
		if list.At(j).Score > list.At(best).Score {
			best = j
		}
	}
	list.Swap(*idx, best)
	item := list.At(*idx)
	*idx++
	return item
}

// scoreLoudMoves prices every loud move: queen promotions first, winning
// captures by SEE, losing captures and under-promotions last. The SEE value
// is cached on the item for reuse by pruning. Capture history breaks ties
// within a SEE band: its contribution stays under a pawn so the material
// outcome of the exchange always dominates.
func (mp *MovePicker) scoreLoudMoves() {
	for i := 0; i < mp.loud.Len(); i++ {
		item := mp.loud.At(i)
		m := item.Move

		see := See(mp.b, m)
		item.SetSEE(see)

		capHist := 0
		if m.IsCapture() {
			capHist = clamp(mp.hist.CaptureScore(mp.ctx.stm, mp.b.PieceAt(m.From()),
				m.To(), victimType(mp.b, m))/256, -64, 64)
		}

		switch {
		case m.IsPromotion() && m.PromotionPiece() == board.Queen:
			item.Score = scoreQueenPromotion
		case m.IsPromotion():
			item.Score = scoreUnderPromotion + int16(m.PromotionPiece())
		case see >= 0:
			// Floor at the band base so a history malus can never demote a
			// winning capture into the bad stage.
			item.Score = scoreCapture + int16(clamp(clamp(see, 0, 2000)+capHist, 0, 2064))
		default:
			item.Score = scoreBadCapture + int16(clamp(see, -2000, 0)+capHist)
		}
	}
}

func (mp *MovePicker) scoreQuietMoves() {
	for i := 0; i < mp.quiet.Len(); i++ {
		item := mp.quiet.At(i)
		piece := mp.b.PieceAt(item.Move.From())
		item.Score = int16(clamp(mp.hist.QuietScore(mp.ctx, piece, item.Move), -32000, 32000))
	}
}
