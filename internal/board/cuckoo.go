package board

import "fmt"

// Upcoming-repetition detection. Every reversible move by a non-pawn piece
// is hashed as Z(piece,from) ^ Z(piece,to) ^ Z(stm) and stored in a two-way
// cuckoo table. At search time, XORing the current key against a key from
// the move history yields exactly such a move-key whenever a single
// reversible move would recreate an earlier position, so one or two table
// probes detect a pending cycle without applying any moves.

const cuckooSize = 8192

// cuckooEntries is the number of reversible (piece, from, to) moves with
// from < to: the fixed combinatorial count for the standard piece set.
const cuckooEntries = 3668

var (
	cuckooKeys  [cuckooSize]uint64
	cuckooMoves [cuckooSize]Move
)

func cuckooH1(key uint64) int { return int((key >> 32) & (cuckooSize - 1)) }
func cuckooH2(key uint64) int { return int((key >> 48) & (cuckooSize - 1)) }

func initCuckoo() {
	count := 0
	for p := WhiteKnight; p <= BlackKing; p++ {
		if p.Type() == Pawn {
			continue
		}
		for s1 := A1; s1 <= H8; s1++ {
			moves := PieceAttacks(p.Type(), s1, 0)
			for s2 := s1 + 1; s2 <= H8; s2++ {
				if !moves.IsSet(s2) {
					continue
				}

				mv := NewMove(s1, s2, FlagQuiet)
				key := zobristPiece[p][s1] ^ zobristPiece[p][s2] ^ zobristSideToMove

				i := cuckooH1(key)
				for {
					cuckooKeys[i], key = key, cuckooKeys[i]
					cuckooMoves[i], mv = mv, cuckooMoves[i]
					if mv == NoMove {
						break
					}
					if i == cuckooH1(key) {
						i = cuckooH2(key)
					} else {
						i = cuckooH1(key)
					}
				}
				count++
			}
		}
	}
	if count != cuckooEntries {
		panic(fmt.Sprintf("cuckoo table holds %d moves, want %d", count, cuckooEntries))
	}
}

// HasUpcomingRepetition reports whether the side to move can force an
// immediate repetition of a position already on the stack. Detecting the
// cycle one ply early lets the search score the node as a draw before
// wasting effort below it.
func (g *GameState) HasUpcomingRepetition(distanceFromRoot int) bool {
	b := g.Board()
	maxBack := b.HalfMoveClock
	if maxBack > len(g.states)-1 {
		maxBack = len(g.states) - 1
	}
	if maxBack < 3 {
		return false
	}

	occ := b.AllOccupied
	for back := 3; back <= maxBack; back += 2 {
		// An odd ply distance flips the side to move, so the raw key XOR
		// already contains the side key folded into every cuckoo entry.
		prev := g.stateFromTop(back)
		moveKey := b.Key ^ prev.Key

		i := cuckooH1(moveKey)
		if cuckooKeys[i] != moveKey {
			i = cuckooH2(moveKey)
			if cuckooKeys[i] != moveKey {
				continue
			}
		}

		mv := cuckooMoves[i]
		s1, s2 := mv.From(), mv.To()
		if Between(s1, s2)&occ != 0 {
			continue
		}

		// One of the endpoints holds the piece that would retrace its step;
		// it must belong to the side to move.
		if (SquareBB(s1)|SquareBB(s2))&b.Occupied[b.SideToMove] == 0 {
			continue
		}

		if distanceFromRoot > back {
			return true
		}
		// The cycle closes before the root: only score it if the position
		// has already repeated once on the stack.
		if prev.RepetitionDistance != 0 {
			return true
		}
	}
	return false
}
