// Package stream drives one streamed chat response from the transport to the
// caller's render callbacks.
//
//	transport body → sse.ChunkReader → sse.Decoder → Scheduler → markdown.Render → Handlers
//
// A Controller keeps at most one live stream: starting a stream cancels the
// previous one before anything else happens, and once a Handle has been
// canceled none of its callbacks run again.
package stream

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/opsdeck/pkg/llm"
	"github.com/papercomputeco/opsdeck/pkg/markdown"
	"github.com/papercomputeco/opsdeck/pkg/sse"
)

// Handlers receive a stream's output. Either may be nil.
//
// Handlers run on the stream's goroutine or on a frame timer, never
// concurrently with each other. They must not call Start, Send or Cancel on
// the Controller, or Cancel on their own Handle.
type Handlers struct {
	// OnRender receives the HTML of the full text received so far, once per
	// frame and once more at the end.
	OnRender func(html string)

	// OnComplete receives the final markdown text after a successful stream.
	OnComplete func(text string)
}

// Controller starts streams and enforces a single live stream.
type Controller struct {
	transport  Transport
	frames     FrameScheduler
	transcript io.Writer
	logger     *slog.Logger

	mu      sync.Mutex
	current *Handle
}

// Option configures a Controller.
type Option func(*Controller)

// WithFrames sets the frame scheduler. Defaults to TimerFrames.
func WithFrames(frames FrameScheduler) Option {
	return func(c *Controller) {
		c.frames = frames
	}
}

// WithTranscript tees every raw response byte to w.
func WithTranscript(w io.Writer) Option {
	return func(c *Controller) {
		c.transcript = w
	}
}

// WithLogger sets the logger. Defaults to discarding.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// NewController returns a Controller using transport.
func NewController(transport Transport, opts ...Option) *Controller {
	c := &Controller{
		transport: transport,
		frames:    TimerFrames{},
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start cancels any live stream and starts req in the background.
func (c *Controller) Start(ctx context.Context, req llm.ChatRequest, h Handlers) *Handle {
	return c.start(ctx, req, h, false)
}

// Send streams req and blocks until it ends. When the stream fails before
// any byte arrives, Send falls back to one non-streaming request whose text
// is rendered and delivered through the same handlers.
func (c *Controller) Send(ctx context.Context, req llm.ChatRequest, h Handlers) (string, error) {
	handle := c.start(ctx, req, h, true)
	err := handle.Wait()
	return handle.Text(), err
}

// Cancel cancels the live stream, if any.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		c.current.Cancel()
		c.current = nil
	}
}

// Current returns the live stream's handle, or nil.
func (c *Controller) Current() *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *Controller) start(ctx context.Context, req llm.ChatRequest, h Handlers, fallback bool) *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		c.logger.Debug("superseding stream", "stream_id", c.current.ID())
		c.current.Cancel()
	}

	ctx, cancel := context.WithCancel(ctx)
	handle := &Handle{
		id:        uuid.NewString(),
		cancel:    cancel,
		handlers:  h,
		done:      make(chan struct{}),
		startedAt: time.Now(),
	}
	c.current = handle

	go c.run(ctx, req, handle, fallback)

	return handle
}

func (c *Controller) run(ctx context.Context, req llm.ChatRequest, h *Handle, fallback bool) {
	defer close(h.done)
	defer h.cancel()

	log := c.logger.With("stream_id", h.ID())
	log.Debug("stream started")

	err := c.stream(ctx, req, h)

	var terr *TransportError
	if fallback && errors.As(err, &terr) && terr.BeforeFirstByte() && !h.Canceled() {
		log.Info("stream failed before first byte, falling back", "error", err)
		h.setFallback()
		err = c.complete(ctx, req, h)
	}

	if h.Canceled() || (err != nil && ctx.Err() != nil) {
		err = ErrCanceled
	}

	switch {
	case err == nil:
		log.Debug("stream completed", "chars", len(h.Text()), "duration", time.Since(h.startedAt))
	case errors.Is(err, ErrCanceled):
		log.Debug("stream canceled")
	default:
		log.Warn("stream failed", "error", err)
	}

	h.finish(err)

	c.mu.Lock()
	if c.current == h {
		c.current = nil
	}
	c.mu.Unlock()
}

// stream pumps the response body through the decoder and scheduler.
func (c *Controller) stream(ctx context.Context, req llm.ChatRequest, h *Handle) error {
	body, err := c.transport.Stream(ctx, req)
	if err != nil {
		return err
	}
	defer body.Close()

	sched := NewScheduler(c.frames, func(html string) {
		h.dispatch(func() {
			if h.handlers.OnRender != nil {
				h.handlers.OnRender(html)
			}
		})
	})
	defer func() {
		h.setText(sched.Text())
	}()

	reader := sse.NewChunkReader(body, c.transcript)
	dec := sse.NewDecoder()
	received := false

	for {
		chunk, readErr := reader.Next()
		if h.Canceled() {
			sched.Discard()
			return ErrCanceled
		}

		var events []sse.Event
		if len(chunk) > 0 {
			received = true
			events = dec.Feed(chunk)
		}
		if errors.Is(readErr, io.EOF) {
			events = append(events, dec.Flush()...)
		}

		for _, ev := range events {
			switch ev.Kind {
			case sse.KindDelta:
				sched.OnDelta(ev.Text)
			case sse.KindDone:
				h.complete(sched.Finish())
				return nil
			case sse.KindError:
				// Partial output stays rendered.
				sched.Finish()
				return ev.Err()
			}
		}

		switch {
		case readErr == nil:
		case errors.Is(readErr, io.EOF):
			// A stream that ends without [DONE] still completes.
			h.complete(sched.Finish())
			return nil
		case ctx.Err() != nil:
			sched.Discard()
			return ErrCanceled
		default:
			sched.Finish()
			return &TransportError{Message: "read stream", Err: readErr, partial: received}
		}
	}
}

// complete performs the non-streaming fallback request.
func (c *Controller) complete(ctx context.Context, req llm.ChatRequest, h *Handle) error {
	text, err := c.transport.Complete(ctx, req)
	if err != nil {
		return err
	}

	h.setText(text)
	html := markdown.Render(text)
	h.dispatch(func() {
		if h.handlers.OnRender != nil {
			h.handlers.OnRender(html)
		}
	})
	h.complete(text)
	return nil
}

// Handle is one started stream.
type Handle struct {
	id        string
	cancel    context.CancelFunc
	handlers  Handlers
	startedAt time.Time

	// dispatchMu is held while a handler runs and while canceling.
	dispatchMu sync.Mutex
	canceled   bool

	mu       sync.Mutex
	text     string
	fallback bool

	done chan struct{}
	err  error
}

// ID returns the stream's unique ID.
func (h *Handle) ID() string {
	return h.id
}

// Cancel stops the stream. When Cancel returns no handler of this stream
// will run again. Canceling a stream that has already ended has no effect.
func (h *Handle) Cancel() {
	h.dispatchMu.Lock()
	h.canceled = true
	h.dispatchMu.Unlock()

	h.cancel()
}

// Canceled reports whether Cancel has been called.
func (h *Handle) Canceled() bool {
	h.dispatchMu.Lock()
	defer h.dispatchMu.Unlock()
	return h.canceled
}

// Done is closed when the stream has ended.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the stream ends and returns nil on success, ErrCanceled,
// a *TransportError or a *sse.ProtocolError.
func (h *Handle) Wait() error {
	<-h.done
	return h.err
}

// Text returns the markdown text of the response once the stream has ended.
// After a failure it holds whatever arrived before it.
func (h *Handle) Text() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.text
}

// Fallback reports whether the response came from the non-streaming
// endpoint.
func (h *Handle) Fallback() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fallback
}

// StartedAt returns when the stream was started.
func (h *Handle) StartedAt() time.Time {
	return h.startedAt
}

func (h *Handle) dispatch(fn func()) {
	h.dispatchMu.Lock()
	defer h.dispatchMu.Unlock()

	if h.canceled {
		return
	}
	fn()
}

func (h *Handle) complete(text string) {
	h.setText(text)
	h.dispatch(func() {
		if h.handlers.OnComplete != nil {
			h.handlers.OnComplete(text)
		}
	})
}

func (h *Handle) setText(text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.text = text
}

func (h *Handle) setFallback() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fallback = true
}

func (h *Handle) finish(err error) {
	h.err = err
}
