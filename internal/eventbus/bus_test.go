package eventbus_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/newsletter/internal/eventbus"
	"github.com/shaharia-lab/newsletter/internal/logger"
)

func newBus(workers int) eventbus.EventBus {
	return eventbus.New(workers, logger.Discard())
}

func TestPublishAndReceive(t *testing.T) {
	bus := newBus(2)

	var received []eventbus.Event
	var mu sync.Mutex

	bus.Subscribe(func(e eventbus.Event) {
		mu.Lock()
		received = append(received, e)
		mu.Unlock()
	})

	published, err := bus.Publish("newsletter_subscribe", map[string]string{"new_subscriber_email": "a@x.com"})
	require.NoError(t, err)

	bus.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, published.ID, received[0].ID)
	assert.Equal(t, "newsletter_subscribe", received[0].Name)
	assert.Equal(t, "a@x.com", received[0].Property("new_subscriber_email"))
	assert.False(t, received[0].Timestamp.IsZero())

	_, err = uuid.Parse(received[0].ID)
	assert.NoError(t, err)
}

func TestMultipleListeners(t *testing.T) {
	bus := newBus(2)

	var count int32
	for i := 0; i < 3; i++ {
		bus.Subscribe(func(_ eventbus.Event) {
			atomic.AddInt32(&count, 1)
		})
	}

	_, err := bus.Publish("multi", nil)
	require.NoError(t, err)
	bus.Close()

	assert.EqualValues(t, 3, atomic.LoadInt32(&count))
}

func TestListenerPanicDoesNotCrash(t *testing.T) {
	bus := newBus(1)

	var goodCalled int32
	bus.Subscribe(func(_ eventbus.Event) {
		panic("intentional panic in listener")
	})
	bus.Subscribe(func(_ eventbus.Event) {
		atomic.AddInt32(&goodCalled, 1)
	})

	_, err := bus.Publish("panic.event", nil)
	require.NoError(t, err)
	bus.Close()

	// The second listener should still have been called.
	assert.EqualValues(t, 1, atomic.LoadInt32(&goodCalled))
}

func TestListenerCanPublish(t *testing.T) {
	bus := newBus(1)

	var followUps int32
	done := make(chan struct{})
	bus.Subscribe(func(e eventbus.Event) {
		switch e.Name {
		case "trigger":
			_, _ = bus.Publish("follow_up", nil)
		case "follow_up":
			atomic.AddInt32(&followUps, 1)
			close(done)
		}
	})

	_, err := bus.Publish("trigger", nil)
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("follow-up event was not delivered")
	}
	bus.Close()
	assert.EqualValues(t, 1, atomic.LoadInt32(&followUps))
}

func TestClose(t *testing.T) {
	bus := newBus(2)

	var count int32
	bus.Subscribe(func(_ eventbus.Event) {
		atomic.AddInt32(&count, 1)
	})

	for i := 0; i < 5; i++ {
		_, err := bus.Publish("evt", nil)
		require.NoError(t, err)
	}

	// Close waits for all workers to finish processing.
	bus.Close()
	assert.EqualValues(t, 5, atomic.LoadInt32(&count))

	_, err := bus.Publish("late", nil)
	assert.ErrorIs(t, err, eventbus.ErrClosed)

	// A second Close is harmless.
	bus.Close()
}

func TestBufferFull(t *testing.T) {
	bus := newBus(1)

	release := make(chan struct{})
	bus.Subscribe(func(_ eventbus.Event) {
		<-release
	})

	var sawFull bool
	for i := 0; i < 500; i++ {
		if _, err := bus.Publish("flood", nil); err != nil {
			assert.ErrorIs(t, err, eventbus.ErrBufferFull)
			sawFull = true
			break
		}
	}
	close(release)
	bus.Close()

	assert.True(t, sawFull, "expected the buffer to fill up")
}

func TestDefaultWorkers(t *testing.T) {
	// workers <= 0 should use default without panicking.
	bus := eventbus.New(0, nil)
	require.NotNil(t, bus)
	bus.Close()
}

func TestNewEvent(t *testing.T) {
	e := eventbus.NewEvent("send_newsletter", map[string]string{"content": "Hi"})

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "send_newsletter", e.Name)
	assert.Equal(t, time.UTC, e.Timestamp.Location())
	assert.Equal(t, "Hi", e.Property("content"))
	assert.Empty(t, e.Property("missing"))
}
