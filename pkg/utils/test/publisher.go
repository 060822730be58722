package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/papercomputeco/opsdeck/pkg/eventstream"
)

// MockPublisher records published events.
type MockPublisher struct {
	mu     sync.Mutex
	events []*eventstream.ResponseCompletedEvent

	// FailPublish causes PublishResponse to return an error.
	FailPublish bool

	Closed bool
}

// NewMockPublisher creates a new mock publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (p *MockPublisher) PublishResponse(_ context.Context, event *eventstream.ResponseCompletedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.FailPublish {
		return errors.New("mock publish failure")
	}
	p.events = append(p.events, event)
	return nil
}

// Events returns the events published so far.
func (p *MockPublisher) Events() []*eventstream.ResponseCompletedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*eventstream.ResponseCompletedEvent(nil), p.events...)
}

func (p *MockPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = true
	return nil
}
