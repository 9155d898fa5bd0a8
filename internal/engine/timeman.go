package engine

import (
	"time"

	"github.com/hailam/lumen/internal/board"
)

// TimeManager splits the clock into a soft target and a hard ceiling. A
// thread that passes the soft target votes to stop; the hard ceiling is
// enforced unconditionally inside the search.
type TimeManager struct {
	soft      time.Duration
	hard      time.Duration
	startTime time.Time
}

// NewTimeManager allocates an idle manager; Init arms it per search.
func NewTimeManager() *TimeManager {
	return &TimeManager{}
}

// Init computes the budget for this move. gamePly scales the expected number
// of remaining moves down as the game progresses.
func (tm *TimeManager) Init(limits *SearchLimits, us board.Color, gamePly int) {
	tm.startTime = time.Now()

	if limits.MoveTime > 0 {
		tm.soft = limits.MoveTime
		tm.hard = limits.MoveTime
		return
	}

	if limits.Infinite || !limits.HasClock() {
		tm.soft = time.Hour * 24
		tm.hard = time.Hour * 24
		return
	}

	timeLeft := limits.Time[us]
	inc := limits.Inc[us]

	mtg := limits.MovesToGo
	if mtg == 0 {
		mtg = clamp(50-gamePly/4, 10, 50)
	}

	base := timeLeft/time.Duration(mtg) + inc*9/10

	tm.soft = base
	tm.hard = minDuration(base*5, timeLeft*8/10)

	if margin := timeLeft * 95 / 100; tm.hard > margin {
		tm.hard = margin
	}
	if tm.soft < 10*time.Millisecond {
		tm.soft = 10 * time.Millisecond
	}
	if tm.hard < 50*time.Millisecond {
		tm.hard = 50 * time.Millisecond
	}
}

// Elapsed returns the time since Init.
func (tm *TimeManager) Elapsed() time.Duration {
	return time.Since(tm.startTime)
}

// PastSoft reports whether the soft target is spent; a thread then wants to
// stop rather than begin another iteration.
func (tm *TimeManager) PastSoft() bool {
	return tm.Elapsed() >= tm.soft
}

// PastHard reports whether the hard ceiling is spent; the search must stop.
func (tm *TimeManager) PastHard() bool {
	return tm.Elapsed() >= tm.hard
}

// ScaleSoft adjusts the soft target for best-move stability: stable moves
// finish early, flip-flopping buys more thinking time up to the ceiling.
func (tm *TimeManager) ScaleSoft(stability int) {
	switch {
	case stability >= 6:
		tm.soft = tm.soft * 40 / 100
	case stability >= 4:
		tm.soft = tm.soft * 60 / 100
	case stability <= -2:
		tm.soft = minDuration(tm.soft*150/100, tm.hard)
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
