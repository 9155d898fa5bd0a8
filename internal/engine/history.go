package engine

import "github.com/hailam/lumen/internal/board"

// History tables. Every table uses the same bounded update: the entry moves
// toward its cap in proportion to the bonus and decays in proportion to its
// current magnitude, so values saturate at +-historyMax without explicit
// clamping or periodic rescaling.
const (
	historyMax   = 16384
	pawnHistSize = 512
	corrSize     = 16384
	corrMax      = 8192 // per-entry saturation
	corrScale    = 64   // entry units per centipawn
)

// continuationPlies are the predecessor distances accumulated through the
// continuation table. All four distances share the same physical table, so a
// bonus learned at one distance benefits the same pattern at the others.
var continuationPlies = [4]int{1, 2, 4, 6}

// PieceTo identifies a (moved piece, destination) pair, the index of one
// continuation history slice.
type PieceTo struct {
	Piece board.Piece
	To    board.Square
}

// NoPieceTo is the zero context used at plies before the root.
var NoPieceTo = PieceTo{Piece: board.NoPiece}

// HistoryTables is the full per-thread set of move ordering statistics.
// Large enough that it lives on the heap, owned by the thread local state.
type HistoryTables struct {
	// Butterfly: [side][from][to].
	Butterfly [2][64][64]int16

	// Continuation: [prev piece][prev to][piece][to].
	Continuation [12][64][12][64]int16

	// Capture: [side][moving piece type][to][captured piece type].
	Capture [2][6][64][6]int16

	// Pawn-structure keyed quiets: [side][pawn key bucket][piece type][to].
	Pawn [2][pawnHistSize][6][64]int16

	// Threat: [side][destination attacked by opponent?][from][to].
	Threat [2][2][64][64]int16

	// Evaluation corrections, keyed by the pawn key and by each side's
	// non-pawn key.
	PawnCorr    [2][corrSize]int16
	NonPawnCorr [2][2][corrSize]int16
}

// NewHistoryTables allocates a zeroed set of tables.
func NewHistoryTables() *HistoryTables {
	return &HistoryTables{}
}

// Clear wipes everything, for ucinewgame.
func (h *HistoryTables) Clear() {
	*h = HistoryTables{}
}

// applyBonus is the shared bounded update formula.
func applyBonus(e *int16, bonus int) {
	bonus = clamp(bonus, -historyMax, historyMax)
	*e = int16(int(*e) + bonus - int(*e)*absInt(bonus)/historyMax)
}

// quietContext carries everything needed to score or reward one quiet move.
type quietContext struct {
	stm        board.Color
	pawnKey    uint64
	threatened board.Bitboard // squares attacked by the opponent
	prev       [4]PieceTo     // movers at plies 1, 2, 4, 6 back
}

func threatIndex(ctx *quietContext, to board.Square) int {
	if ctx.threatened.IsSet(to) {
		return 1
	}
	return 0
}

// QuietScore sums the quiet-move orderings: butterfly, the four continuation
// distances, pawn-structure history and threat history.
func (h *HistoryTables) QuietScore(ctx *quietContext, piece board.Piece, m board.Move) int {
	from, to := m.From(), m.To()
	score := int(h.Butterfly[ctx.stm][from][to])
	for i := range continuationPlies {
		if ctx.prev[i].Piece != board.NoPiece {
			score += int(h.Continuation[ctx.prev[i].Piece][ctx.prev[i].To][piece][to])
		}
	}
	score += int(h.Pawn[ctx.stm][ctx.pawnKey%pawnHistSize][piece.Type()][to])
	score += int(h.Threat[ctx.stm][threatIndex(ctx, to)][from][to])
	return score
}

// UpdateQuiet rewards or punishes one quiet move across every quiet table.
func (h *HistoryTables) UpdateQuiet(ctx *quietContext, piece board.Piece, m board.Move, bonus int) {
	from, to := m.From(), m.To()
	applyBonus(&h.Butterfly[ctx.stm][from][to], bonus)
	for i := range continuationPlies {
		if ctx.prev[i].Piece != board.NoPiece {
			applyBonus(&h.Continuation[ctx.prev[i].Piece][ctx.prev[i].To][piece][to], bonus)
		}
	}
	applyBonus(&h.Pawn[ctx.stm][ctx.pawnKey%pawnHistSize][piece.Type()][to], bonus)
	applyBonus(&h.Threat[ctx.stm][threatIndex(ctx, to)][from][to], bonus)
}

// CaptureScore returns the capture-history component for a capture move.
func (h *HistoryTables) CaptureScore(stm board.Color, piece board.Piece, to board.Square, victim board.PieceType) int {
	if victim >= board.King {
		return 0
	}
	return int(h.Capture[stm][piece.Type()][to][victim])
}

// UpdateCapture rewards or punishes a capture.
func (h *HistoryTables) UpdateCapture(stm board.Color, piece board.Piece, to board.Square, victim board.PieceType, bonus int) {
	if victim >= board.King {
		return
	}
	applyBonus(&h.Capture[stm][piece.Type()][to][victim], bonus)
}

// Correction returns the bounded evaluation adjustment learned for positions
// with this pawn and non-pawn structure.
func (h *HistoryTables) Correction(b *board.BoardState) int {
	stm := b.SideToMove
	corr := int(h.PawnCorr[stm][b.PawnKey%corrSize])
	corr += int(h.NonPawnCorr[stm][board.White][b.NonPawnKey[board.White]%corrSize])
	corr += int(h.NonPawnCorr[stm][board.Black][b.NonPawnKey[board.Black]%corrSize])
	return corr / corrScale
}

// UpdateCorrection moves the correction entries toward the observed error
// between the search result and the raw static evaluation.
func (h *HistoryTables) UpdateCorrection(b *board.BoardState, depth, diff int) {
	bonus := clamp(diff*depth*corrScale/32, -corrMax/4, corrMax/4)
	stm := b.SideToMove

	update := func(e *int16) {
		*e = int16(int(*e) + bonus - int(*e)*absInt(bonus)/corrMax)
	}
	update(&h.PawnCorr[stm][b.PawnKey%corrSize])
	update(&h.NonPawnCorr[stm][board.White][b.NonPawnKey[board.White]%corrSize])
	update(&h.NonPawnCorr[stm][board.Black][b.NonPawnKey[board.Black]%corrSize])
}
