package stream

import (
	"strings"
	"sync"

	"github.com/papercomputeco/opsdeck/pkg/markdown"
)

// Scheduler coalesces deltas into frame-paced renders. However many deltas
// arrive before a frame fires, the accumulated text is rendered once.
//
// Sink calls never overlap and always see a longer or equal text than the
// previous call.
type Scheduler struct {
	frames FrameScheduler
	sink   func(html string)

	// renderMu serializes render+sink so frames never deliver out of order.
	renderMu sync.Mutex

	mu       sync.Mutex
	buf      strings.Builder
	pending  bool
	stop     func() bool
	finished bool
}

// NewScheduler returns a Scheduler delivering rendered HTML to sink.
func NewScheduler(frames FrameScheduler, sink func(html string)) *Scheduler {
	if frames == nil {
		frames = TimerFrames{}
	}
	return &Scheduler{frames: frames, sink: sink}
}

// OnDelta appends text to the buffer and schedules a frame if none is
// pending. It is a no-op after Finish or Discard.
func (s *Scheduler) OnDelta(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finished {
		return
	}

	s.buf.WriteString(text)
	if s.pending {
		return
	}

	s.pending = true
	s.stop = s.frames.Schedule(s.flush)
}

// Finish cancels any pending frame, renders the full buffer one last time
// and returns the accumulated text. Later calls only return the text.
func (s *Scheduler) Finish() string {
	s.renderMu.Lock()
	defer s.renderMu.Unlock()

	text, ok := s.end()
	if ok {
		s.deliver(text)
	}
	return text
}

// Discard cancels any pending frame without rendering.
func (s *Scheduler) Discard() {
	s.end()
}

// Text returns the text accumulated so far.
func (s *Scheduler) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

// end marks the scheduler finished. ok is false when it already was.
func (s *Scheduler) end() (text string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	text = s.buf.String()
	if s.finished {
		return text, false
	}

	s.finished = true
	s.pending = false
	if s.stop != nil {
		s.stop()
		s.stop = nil
	}
	return text, true
}

func (s *Scheduler) flush() {
	s.renderMu.Lock()
	defer s.renderMu.Unlock()

	s.mu.Lock()
	if !s.pending || s.finished {
		s.mu.Unlock()
		return
	}
	s.pending = false
	s.stop = nil
	text := s.buf.String()
	s.mu.Unlock()

	s.deliver(text)
}

func (s *Scheduler) deliver(text string) {
	if s.sink != nil {
		s.sink(markdown.Render(text))
	}
}
