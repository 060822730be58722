// Package worker provides an asynchronous worker pool for persisting finished
// responses to the provided storage.Driver and publishing a completion event
// for each one.
//
// The pool decouples storage and publishing from the SSE bridge so a slow
// database or broker never holds up a client's stream.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/papercomputeco/opsdeck/pkg/eventstream"
	"github.com/papercomputeco/opsdeck/pkg/storage"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// Job is one finished response waiting to be stored.
type Job struct {
	Record    storage.Record
	StartedAt time.Time
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Driver is the storage backend for persisting records.
	Driver storage.Driver

	// Publisher receives a completion event for every stored record. Optional.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	Logger *slog.Logger
}

// Pool processes storage jobs asynchronously.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger

	// mu guards closed and the send on queue against Close.
	mu     sync.RWMutex
	closed bool
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Driver == nil {
		return nil, fmt.Errorf("worker pool requires a storage driver")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full or the pool is closed,
// resulting in the job being dropped.
func (p *Pool) Enqueue(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.logger.Warn("job not queued, pool closed, job dropped",
			"record_id", job.Record.ID,
			"status", job.Record.Status,
		)
		return false
	}

	select {
	case p.queue <- job:
		p.logger.Debug("job queued",
			"record_id", job.Record.ID,
			"status", job.Record.Status,
		)
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped",
			"record_id", job.Record.ID,
			"status", job.Record.Status,
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after the HTTP server has stopped.
// Jobs enqueued afterwards are dropped. Close is safe to call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("worker stopped", "worker_id", id)
}

// processJob stores the record and, if that succeeded, publishes its
// completion event. Publish failures are logged and otherwise ignored.
func (p *Pool) processJob(job Job) {
	ctx := context.Background()

	rec := job.Record
	if err := p.config.Driver.Put(ctx, &rec); err != nil {
		p.logger.Error("storing response failed",
			"record_id", rec.ID,
			"error", err,
		)
		return
	}

	p.logger.Info("response stored",
		"record_id", rec.ID,
		"status", rec.Status,
		"chars", utf8.RuneCountInString(rec.Text),
	)

	if p.config.Publisher == nil {
		return
	}

	if err := p.config.Publisher.PublishResponse(ctx, completedEvent(rec, job.StartedAt)); err != nil {
		p.logger.Warn("publishing response event failed",
			"record_id", rec.ID,
			"error", err,
		)
	}
}

func completedEvent(rec storage.Record, startedAt time.Time) *eventstream.ResponseCompletedEvent {
	if startedAt.IsZero() {
		startedAt = rec.CreatedAt
	}

	return &eventstream.ResponseCompletedEvent{
		SchemaVersion: eventstream.SchemaVersionV1,
		EventType:     eventstream.EventTypeResponseCompleted,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		RecordID:      rec.ID,
		ClientID:      rec.ClientID,
		Status:        rec.Status,
		Error:         rec.Error,
		Meta: eventstream.ResponseMeta{
			StartedAt:   startedAt,
			CompletedAt: rec.CompletedAt,
			DurationMs:  rec.CompletedAt.Sub(startedAt).Milliseconds(),
			Fallback:    rec.Fallback,
			Chars:       utf8.RuneCountInString(rec.Text),
		},
	}
}
