package world

import "time"

// IntervalTimer is advanced by tick diffs rather than wall time, so a stalled
// tick never fires a timer early and tests can drive it deterministically.
type IntervalTimer struct {
	interval time.Duration
	current  time.Duration
}

func NewIntervalTimer(interval time.Duration) IntervalTimer {
	return IntervalTimer{interval: interval}
}

func (t *IntervalTimer) Update(diff time.Duration) {
	t.current += diff
	if t.current < 0 {
		t.current = 0
	}
}

func (t *IntervalTimer) Passed() bool { return t.current >= t.interval }

// Reset restarts the countdown from zero.
func (t *IntervalTimer) Reset() { t.current = 0 }

// Rewind keeps the overshoot of the last period, used by throttles that
// should not drift.
func (t *IntervalTimer) Rewind() {
	if t.current >= t.interval {
		t.current -= t.interval
	}
}

func (t *IntervalTimer) Elapsed() time.Duration  { return t.current }
func (t *IntervalTimer) Interval() time.Duration { return t.interval }

func (t *IntervalTimer) SetInterval(d time.Duration) { t.interval = d }

// Remaining is how long until Passed becomes true, never negative.
func (t *IntervalTimer) Remaining() time.Duration {
	if r := t.interval - t.current; r > 0 {
		return r
	}
	return 0
}
