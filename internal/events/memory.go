package events

import (
	"context"
	"sync"
)

// Memory is an in-process bus. Published events are buffered and delivered
// to the active Receive call.
type Memory struct {
	mu        sync.Mutex
	published []Event
	ch        chan Event
	closeOnce sync.Once
	done      chan struct{}
}

// NewMemory creates an in-process bus with the given buffer size.
func NewMemory(buffer int) *Memory {
	return &Memory{
		ch:   make(chan Event, buffer),
		done: make(chan struct{}),
	}
}

// Publish records e and queues it for delivery.
func (m *Memory) Publish(ctx context.Context, e Event) error {
	m.mu.Lock()
	m.published = append(m.published, e)
	m.mu.Unlock()

	select {
	case m.ch <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-m.done:
		return nil
	}
}

// Published returns a copy of every event published so far.
func (m *Memory) Published() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.published))
	copy(out, m.published)
	return out
}

// Receive delivers queued events to h until ctx is done or the bus is closed.
func (m *Memory) Receive(ctx context.Context, h Handler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-m.done:
			return nil
		case e := <-m.ch:
			_ = h(ctx, e)
		}
	}
}

// Close stops Receive.
func (m *Memory) Close() error {
	m.closeOnce.Do(func() { close(m.done) })
	return nil
}
