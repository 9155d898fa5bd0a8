package engine

import (
	"testing"
	"time"

	"github.com/hailam/lumen/internal/board"
)

func TestTimeManagerFixedMoveTime(t *testing.T) {
	tm := NewTimeManager()
	limits := SearchLimits{MoveTime: 500 * time.Millisecond}
	tm.Init(&limits, board.White, 0)

	if tm.soft != 500*time.Millisecond || tm.hard != 500*time.Millisecond {
		t.Errorf("movetime: soft %v hard %v", tm.soft, tm.hard)
	}
}

func TestTimeManagerInfinite(t *testing.T) {
	tm := NewTimeManager()
	limits := SearchLimits{Infinite: true}
	tm.Init(&limits, board.White, 0)

	if tm.PastSoft() || tm.PastHard() {
		t.Error("infinite search should never run out of time")
	}
}

func TestTimeManagerClockAllocation(t *testing.T) {
	tm := NewTimeManager()
	limits := SearchLimits{}
	limits.Time[board.Black] = time.Minute
	limits.Inc[board.Black] = time.Second
	tm.Init(&limits, board.Black, 20)

	if tm.soft <= 0 || tm.hard < tm.soft {
		t.Errorf("bad allocation: soft %v hard %v", tm.soft, tm.hard)
	}
	// Never budget more than the clock holds.
	if tm.hard >= time.Minute {
		t.Errorf("hard budget %v exceeds remaining time", tm.hard)
	}
}

func TestTimeManagerMovesToGo(t *testing.T) {
	tm := NewTimeManager()
	limits := SearchLimits{MovesToGo: 1}
	limits.Time[board.White] = 10 * time.Second
	tm.Init(&limits, board.White, 40)

	// With one move to go most of the clock is usable.
	if tm.soft < 5*time.Second {
		t.Errorf("single-move budget too small: %v", tm.soft)
	}
	if tm.hard >= 10*time.Second {
		t.Errorf("hard budget %v exceeds remaining time", tm.hard)
	}
}

func TestTimeManagerMinimums(t *testing.T) {
	tm := NewTimeManager()
	limits := SearchLimits{}
	limits.Time[board.White] = 30 * time.Millisecond
	tm.Init(&limits, board.White, 10)

	if tm.soft < 10*time.Millisecond {
		t.Errorf("soft floor violated: %v", tm.soft)
	}
}
