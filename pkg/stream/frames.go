package stream

import "time"

// DefaultFrameInterval is the render frame used when none is configured,
// roughly one display refresh at 60Hz.
const DefaultFrameInterval = 16 * time.Millisecond

// FrameScheduler runs a callback at the next frame boundary.
//
// Schedule must not run fn synchronously. The returned stop function
// prevents fn from running if it has not started yet and reports whether it
// did so.
type FrameScheduler interface {
	Schedule(fn func()) (stop func() bool)
}

// TimerFrames schedules frames with time.AfterFunc.
type TimerFrames struct {
	Interval time.Duration
}

// Schedule implements FrameScheduler.
func (t TimerFrames) Schedule(fn func()) func() bool {
	interval := t.Interval
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return time.AfterFunc(interval, fn).Stop
}
