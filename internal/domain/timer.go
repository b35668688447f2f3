package domain

import "time"

// ArmedTimer is a single-outstanding timer for one purpose on one match.
// Arm cancels the previous timer and bumps a generation counter; a callback
// that fires late must compare its generation against Gen() under the match
// lock and treat a mismatch as stale.
type ArmedTimer struct {
	timer *time.Timer
	gen   uint64
}

// Arm cancels any pending timer and schedules fn after d. The generation
// passed to fn identifies this arming.
func (t *ArmedTimer) Arm(d time.Duration, fn func(gen uint64)) uint64 {
	if t.timer != nil {
		t.timer.Stop()
	}
	t.gen++
	gen := t.gen
	t.timer = time.AfterFunc(d, func() { fn(gen) })
	return gen
}

// Cancel stops the pending timer, if any, and invalidates its generation.
func (t *ArmedTimer) Cancel() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.gen++
}

// Gen returns the current generation. A fire callback holding an older
// generation lost the race and must be a no-op.
func (t *ArmedTimer) Gen() uint64 {
	return t.gen
}

// Armed reports whether a timer has been armed and not cancelled since.
func (t *ArmedTimer) Armed() bool {
	return t.timer != nil
}
