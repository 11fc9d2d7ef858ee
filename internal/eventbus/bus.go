// Package eventbus provides an in-memory, asynchronous event bus. Events are
// dispatched through a buffered channel and processed by a worker pool.
package eventbus

import (
	"errors"
	"log/slog"
	"sync"
)

const (
	defaultWorkers    = 3
	defaultBufferSize = 100
)

var (
	// ErrBufferFull is returned by Publish when the event could not be enqueued.
	ErrBufferFull = errors.New("eventbus: buffer full")
	// ErrClosed is returned by Publish after Close.
	ErrClosed = errors.New("eventbus: closed")
)

// EventBus is the interface for publishing events and managing subscribers.
type EventBus interface {
	// Publish enqueues an event with the given name and properties and returns
	// the enqueued event. It never blocks.
	Publish(name string, properties map[string]string) (Event, error)

	// Subscribe registers a listener that will be called for every published
	// event. Subscribe should be called before the first Publish.
	Subscribe(listener Listener)

	// Close stops accepting new events and waits for all pending events to be processed.
	Close()
}

// inMemoryBus is the default EventBus implementation.
type inMemoryBus struct {
	ch        chan Event
	listeners []Listener
	mu        sync.RWMutex
	closed    bool
	wg        sync.WaitGroup
	workers   int
	logger    *slog.Logger
}

// New creates a new in-memory EventBus with the specified number of worker goroutines.
// If workers is <= 0, defaultWorkers (3) is used.
func New(workers int, logger *slog.Logger) EventBus {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	b := &inMemoryBus{
		ch:      make(chan Event, defaultBufferSize),
		workers: workers,
		logger:  logger,
	}
	b.startWorkers()
	return b
}

func (b *inMemoryBus) startWorkers() {
	for i := 0; i < b.workers; i++ {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			for e := range b.ch {
				b.dispatch(e)
			}
		}()
	}
}

// dispatch calls all registered listeners for the given event. Each listener
// is invoked with panic recovery so one bad listener cannot affect the others.
func (b *inMemoryBus) dispatch(e Event) {
	b.mu.RLock()
	listeners := make([]Listener, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.RUnlock()

	for _, l := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("eventbus: listener panicked",
						"event", e.Name, "event_id", e.ID, "panic", r)
				}
			}()
			l(e)
		}()
	}
}

// Publish enqueues an event. If the buffer is full the event is dropped.
func (b *inMemoryBus) Publish(name string, properties map[string]string) (Event, error) {
	e := NewEvent(name, properties)

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return e, ErrClosed
	}

	select {
	case b.ch <- e:
		return e, nil
	default:
		b.logger.Warn("eventbus: buffer full, dropping event", "event", name)
		return e, ErrBufferFull
	}
}

// Subscribe adds a listener to receive all future events.
func (b *inMemoryBus) Subscribe(listener Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, listener)
}

// Close drains and closes the event channel, then waits for all workers to finish.
// Calling Close more than once is a no-op.
func (b *inMemoryBus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.ch)
	b.mu.Unlock()
	b.wg.Wait()
}
