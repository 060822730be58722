package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/papercomputeco/opsdeck/api/header"
	"github.com/papercomputeco/opsdeck/api/worker"
	"github.com/papercomputeco/opsdeck/pkg/eventstream"
	"github.com/papercomputeco/opsdeck/pkg/llm"
	"github.com/papercomputeco/opsdeck/pkg/storage"
	"github.com/papercomputeco/opsdeck/pkg/stream"
)

// SSE event names written by /stream.
const (
	eventRender = "render"
	eventDone   = "done"
	eventError  = "error"
)

// RenderFrame is the data of an "event: render" frame.
type RenderFrame struct {
	HTML string `json:"html"`
}

// DoneFrame is the data of an "event: done" frame.
type DoneFrame struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Fallback bool   `json:"fallback"`
}

// handleStream starts a chat stream for the calling client and relays its
// renders as server-sent events. A stream superseded by a newer request from
// the same client ends without a terminal event.
func (s *Server) handleStream(c *fiber.Ctx) error {
	var req llm.ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}
	if len(req.Messages) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "messages required"})
	}

	clientID := c.Get(ClientIDHeader)
	if clientID == "" {
		clientID = uuid.NewString()
	}

	box := newRenderBox()

	// The fiber context is recycled once the handler returns, so the stream
	// runs on its own context and ends through Cancel.
	ctx := stream.WithHeaders(context.Background(), header.Forwarded(c))
	ctrl, handle := s.clients.start(ctx, clientID, req, stream.Handlers{
		OnRender: box.put,
	})

	s.logger.Debug("stream opened",
		"client_id", clientID,
		"stream_id", handle.ID(),
	)

	c.Set(ClientIDHeader, clientID)
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	// io.Pipe gives per-frame flushing: each pw.Write blocks until fasthttp
	// has written the chunk to the connection.
	pr, pw := io.Pipe()
	go s.relay(pw, box, ctrl, handle, clientID, req)

	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

// handleCancelStream cancels the calling client's live stream.
func (s *Server) handleCancelStream(c *fiber.Ctx) error {
	clientID := c.Get(ClientIDHeader)
	if clientID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: ClientIDHeader + " header required"})
	}

	s.clients.cancel(clientID)
	return c.SendStatus(fiber.StatusNoContent)
}

// relay writes the stream's frames to pw until the stream ends, then records
// the outcome and drops the client's controller if it has no other live
// stream. A write failure means the client went away and cancels the stream.
func (s *Server) relay(pw *io.PipeWriter, box *renderBox, ctrl *stream.Controller, handle *stream.Handle, clientID string, req llm.ChatRequest) {
	defer pw.Close()

	log := s.logger.With("client_id", clientID, "stream_id", handle.ID())

	gone := false
	for running := true; running && !gone; {
		select {
		case <-box.ready:
		case <-handle.Done():
			running = false
		}

		if html, ok := box.take(); ok {
			if err := writeEvent(pw, eventRender, RenderFrame{HTML: s.sanitize(html)}); err != nil {
				gone = true
			}
		}
	}

	if gone {
		log.Debug("client disconnected, canceling stream")
		handle.Cancel()
	}

	err := handle.Wait()
	s.clients.release(clientID, ctrl)
	s.record(handle, clientID, req, err)

	if gone {
		return
	}

	switch {
	case err == nil:
		_ = writeEvent(pw, eventDone, DoneFrame{
			ID:       handle.ID(),
			Text:     handle.Text(),
			Fallback: handle.Fallback(),
		})
	case errors.Is(err, stream.ErrCanceled):
		log.Debug("stream superseded or canceled")
	default:
		log.Warn("stream failed", "error", err)
		_ = writeEvent(pw, eventError, llm.ErrorResponse{Error: err.Error()})
	}
}

// record hands the finished stream to the worker pool.
func (s *Server) record(handle *stream.Handle, clientID string, req llm.ChatRequest, err error) {
	if s.pool == nil {
		return
	}

	rec := storage.Record{
		ID:          handle.ID(),
		ClientID:    clientID,
		Prompt:      req.Prompt(),
		Text:        handle.Text(),
		Status:      eventstream.StatusDone,
		Fallback:    handle.Fallback(),
		CreatedAt:   handle.StartedAt().UTC(),
		CompletedAt: time.Now().UTC(),
	}

	switch {
	case err == nil:
	case errors.Is(err, stream.ErrCanceled):
		rec.Status = eventstream.StatusCancel
	default:
		rec.Status = eventstream.StatusError
		rec.Error = err.Error()
	}

	s.pool.Enqueue(worker.Job{Record: rec, StartedAt: handle.StartedAt()})
}

func writeEvent(w io.Writer, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}

// renderBox holds the latest rendered HTML. Each render carries the whole
// response so far, so a slow client only ever needs the newest one and
// OnRender never blocks on the network.
type renderBox struct {
	mu     sync.Mutex
	html   string
	filled bool
	ready  chan struct{}
}

func newRenderBox() *renderBox {
	return &renderBox{ready: make(chan struct{}, 1)}
}

func (b *renderBox) put(html string) {
	b.mu.Lock()
	b.html = html
	b.filled = true
	b.mu.Unlock()

	select {
	case b.ready <- struct{}{}:
	default:
	}
}

func (b *renderBox) take() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.filled {
		return "", false
	}
	b.filled = false
	return b.html, true
}

// clientRegistry maps client IDs to the controllers of their live streams.
// A controller is held only while it has a live stream, so the registry
// never outgrows the number of open streams.
type clientRegistry struct {
	mu          sync.Mutex
	controllers map[string]*stream.Controller
	create      func(clientID string) *stream.Controller
}

func newClientRegistry(create func(clientID string) *stream.Controller) *clientRegistry {
	return &clientRegistry{
		controllers: make(map[string]*stream.Controller),
		create:      create,
	}
}

// start starts req on clientID's controller, superseding its live stream.
// Starting under r.mu keeps release from dropping a controller that is
// about to get a new stream.
func (r *clientRegistry) start(ctx context.Context, clientID string, req llm.ChatRequest, h stream.Handlers) (*stream.Controller, *stream.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctrl, ok := r.controllers[clientID]
	if !ok {
		ctrl = r.create(clientID)
		r.controllers[clientID] = ctrl
	}
	return ctrl, ctrl.Start(ctx, req, h)
}

// release removes ctrl once it has no live stream.
func (r *clientRegistry) release(clientID string, ctrl *stream.Controller) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.controllers[clientID] == ctrl && ctrl.Current() == nil {
		delete(r.controllers, clientID)
	}
}

func (r *clientRegistry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.controllers)
}

func (r *clientRegistry) cancel(clientID string) {
	r.mu.Lock()
	ctrl := r.controllers[clientID]
	r.mu.Unlock()

	if ctrl != nil {
		ctrl.Cancel()
	}
}

func (r *clientRegistry) cancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ctrl := range r.controllers {
		ctrl.Cancel()
	}
}
