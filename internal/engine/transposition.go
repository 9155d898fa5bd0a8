package engine

import (
	"sync/atomic"

	"github.com/op/go-logging"

	"github.com/hailam/lumen/internal/board"
)

var log = logging.MustGetLogger("lumen.engine")

// Bound classifies a stored score.
type Bound uint8

const (
	BoundNone Bound = iota
	BoundExact
	BoundLower // fail high: score is at least the stored value
	BoundUpper // fail low: score is at most the stored value
)

// TTData is a decoded transposition table entry.
type TTData struct {
	Move       board.Move
	Score      int
	StaticEval int
	Depth      int
	Bound      Bound
}

// ttEntry packs one slot into two words so every access is a relaxed atomic
// load or store. A torn read across the pair shows up as a signature
// mismatch or a harmlessly wrong depth, never as a crash; the spec of the
// table tolerates a missed hit under extreme contention.
//
//	meta word: sig(16) | move(16) | score(16) | eval(16)
//	data word: depth(8) | bound(2) | generation(6)
type ttEntry struct {
	meta atomic.Uint64
	data atomic.Uint32
}

// ttBucket groups three slots probed together.
type ttBucket struct {
	entries [3]ttEntry
}

const (
	minTableMB     = 1
	maxTableMB     = 1 << 20
	generationMask = 0x3F
)

func packMeta(sig uint16, move board.Move, score int16, eval int16) uint64 {
	return uint64(sig) | uint64(move)<<16 | uint64(uint16(score))<<32 | uint64(uint16(eval))<<48
}

func packData(depth uint8, bound Bound, gen uint8) uint32 {
	return uint32(depth) | uint32(bound)<<8 | uint32(gen&generationMask)<<10
}

func (e *ttEntry) load() (sig uint16, d TTData, gen uint8) {
	meta := e.meta.Load()
	data := e.data.Load()
	sig = uint16(meta)
	d = TTData{
		Move:       board.Move(meta >> 16),
		Score:      int(int16(meta >> 32)),
		StaticEval: int(int16(meta >> 48)),
		Depth:      int(data & 0xFF),
		Bound:      Bound(data >> 8 & 3),
	}
	gen = uint8(data >> 10 & generationMask)
	return sig, d, gen
}

// TranspositionTable is the shared, lock-free replace-by-depth cache of
// search results.
type TranspositionTable struct {
	buckets    []ttBucket
	mask       uint64
	generation uint8
}

// NewTranspositionTable allocates a table of roughly the given size in MB.
// If the allocation fails the table falls back to the minimum size rather
// than aborting.
func NewTranspositionTable(sizeMB int) *TranspositionTable {
	tt := &TranspositionTable{}
	tt.Resize(sizeMB)
	return tt
}

// Resize reallocates the table. Existing entries are discarded.
func (tt *TranspositionTable) Resize(sizeMB int) {
	sizeMB = clamp(sizeMB, minTableMB, maxTableMB)

	alloc := func(mb int) (ok bool) {
		defer func() {
			if recover() != nil {
				ok = false
			}
		}()
		numBuckets := uint64(mb) * 1024 * 1024 / 32
		numBuckets = roundDownPow2(numBuckets)
		tt.buckets = make([]ttBucket, numBuckets)
		tt.mask = numBuckets - 1
		return true
	}

	if !alloc(sizeMB) {
		log.Warningf("hash allocation of %d MB failed, falling back to %d MB", sizeMB, minTableMB)
		if !alloc(minTableMB) {
			panic("cannot allocate minimum transposition table")
		}
	}
	tt.generation = 0
}

func roundDownPow2(n uint64) uint64 {
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return (n + 1) >> 1
}

func ttSignature(key uint64) uint16 {
	return uint16(key >> 48)
}

// NewSearch advances the generation so older entries age out of the
// replacement policy.
func (tt *TranspositionTable) NewSearch() {
	tt.generation = (tt.generation + 1) & generationMask
}

// Clear wipes the table, for ucinewgame.
func (tt *TranspositionTable) Clear() {
	for i := range tt.buckets {
		for j := range tt.buckets[i].entries {
			tt.buckets[i].entries[j].meta.Store(0)
			tt.buckets[i].entries[j].data.Store(0)
		}
	}
	tt.generation = 0
}

// Probe returns the entry for key if the bucket holds a matching signature.
// The stored score has mate distances reversed using the caller's distance
// from root, and the entry's generation is refreshed to keep it alive.
func (tt *TranspositionTable) Probe(key uint64, distanceFromRoot int) (TTData, bool) {
	bucket := &tt.buckets[key&tt.mask]
	sig := ttSignature(key)

	for i := range bucket.entries {
		e := &bucket.entries[i]
		s, d, _ := e.load()
		if s != sig || d.Bound == BoundNone {
			continue
		}
		e.data.Store(packData(uint8(d.Depth), d.Bound, tt.generation))
		d.Score = scoreFromTT(d.Score, distanceFromRoot)
		return d, true
	}
	return TTData{}, false
}

// Store writes an entry. The score is mate-adjusted to be absolute before
// packing. Slot choice prefers a same-key slot, then an empty slot, then the
// slot with the lowest quality, where quality = depth - 4*age.
func (tt *TranspositionTable) Store(key uint64, depth int, score int, bound Bound, move board.Move, staticEval int, distanceFromRoot int) {
	bucket := &tt.buckets[key&tt.mask]
	sig := ttSignature(key)

	victim := &bucket.entries[0]
	victimQuality := 1 << 20
	for i := range bucket.entries {
		e := &bucket.entries[i]
		s, d, gen := e.load()
		if d.Bound == BoundNone || s == sig {
			victim = e
			break
		}
		age := int((tt.generation - gen) & generationMask)
		if q := d.Depth - 4*age; q < victimQuality {
			victimQuality = q
			victim = e
		}
	}

	score = clamp(scoreToTT(score, distanceFromRoot), -Infinity, Infinity)
	staticEval = clamp(staticEval, -Infinity, Infinity)
	victim.meta.Store(packMeta(sig, move, int16(score), int16(staticEval)))
	victim.data.Store(packData(uint8(clamp(depth, 0, 255)), bound, tt.generation))
}

// Hashfull estimates table occupancy in permille for UCI reporting.
func (tt *TranspositionTable) Hashfull() int {
	samples := 0
	used := 0
	for i := 0; i < len(tt.buckets) && samples < 999; i++ {
		for j := range tt.buckets[i].entries {
			samples++
			_, d, gen := tt.buckets[i].entries[j].load()
			if d.Bound != BoundNone && gen == tt.generation {
				used++
			}
		}
	}
	if samples == 0 {
		return 0
	}
	return used * 1000 / samples
}

// scoreToTT converts a root-relative mate score into an absolute one for
// storage.
func scoreToTT(score, distanceFromRoot int) int {
	if score > MateScore-MaxDepth {
		return score + distanceFromRoot
	}
	if score < -MateScore+MaxDepth {
		return score - distanceFromRoot
	}
	return score
}

// scoreFromTT reverses the adjustment at probe time.
func scoreFromTT(score, distanceFromRoot int) int {
	if score > MateScore-MaxDepth {
		return score - distanceFromRoot
	}
	if score < -MateScore+MaxDepth {
		return score + distanceFromRoot
	}
	return score
}
