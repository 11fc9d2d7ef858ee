package newsletter_test

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/newsletter/internal/eventbus"
	"github.com/shaharia-lab/newsletter/internal/logger"
	"github.com/shaharia-lab/newsletter/internal/newsletter"
	"github.com/shaharia-lab/newsletter/internal/storage"
	"github.com/shaharia-lab/newsletter/internal/storage/mocks"
)

const testSecret = "hunter2"

// --- recording publisher ---

type recordingPublisher struct {
	mu     sync.Mutex
	events []eventbus.Event
	err    error
}

func (p *recordingPublisher) Publish(name string, properties map[string]string) (eventbus.Event, error) {
	e := eventbus.Event{ID: "evt", Name: name, Properties: properties}
	if p.err != nil {
		return e, p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return e, nil
}

func (p *recordingPublisher) Events() []eventbus.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]eventbus.Event(nil), p.events...)
}

// --- helpers ---

func newTestRegistry(t *testing.T) (*newsletter.Registry, *storage.MemoryKVStore, *recordingPublisher) {
	t.Helper()
	store := storage.NewMemoryKVStore()
	pub := &recordingPublisher{}
	reg := newsletter.NewRegistry(newsletter.Config{
		Store:     store,
		Publisher: pub,
		Secret:    testSecret,
		Logger:    logger.Discard(),
	})
	return reg, store, pub
}

func storedList(t *testing.T, store storage.KVStore) []string {
	t.Helper()
	raw, err := store.Get(context.Background(), newsletter.SubscribersKey, "[]")
	require.NoError(t, err)
	var list []string
	require.NoError(t, json.Unmarshal([]byte(raw), &list))
	return list
}

func seed(t *testing.T, store storage.KVStore, list ...string) {
	t.Helper()
	raw, err := json.Marshal(list)
	require.NoError(t, err)
	require.NoError(t, store.Set(context.Background(), newsletter.SubscribersKey, string(raw)))
}

// --- tests ---

func TestSubscribers_EmptyStore(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	list, err := reg.Subscribers(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestSubscribers_NullReadsAsEmpty(t *testing.T) {
	reg, store, _ := newTestRegistry(t)
	require.NoError(t, store.Set(context.Background(), newsletter.SubscribersKey, "null"))

	list, err := reg.Subscribers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSubscribers_CorruptJSON(t *testing.T) {
	reg, store, _ := newTestRegistry(t)
	require.NoError(t, store.Set(context.Background(), newsletter.SubscribersKey, "{not json"))

	_, err := reg.Subscribers(context.Background())
	assert.Error(t, err)
}

func TestAdd_PreservesOrderAndDuplicates(t *testing.T) {
	reg, store, _ := newTestRegistry(t)
	ctx := context.Background()

	emails := []string{"a@x.com", "b@x.com", "a@x.com", "c@x.com"}
	for i, e := range emails {
		require.NoError(t, reg.Add(ctx, newsletter.SubscribeCommand{Email: e}))
		list := storedList(t, store)
		require.Len(t, list, i+1)
		assert.Equal(t, e, list[len(list)-1])
	}
	assert.Equal(t, emails, storedList(t, store))
}

func TestAdd_EmptyEmailDoesNotWrite(t *testing.T) {
	store := &mocks.MockKVStore{}
	reg := newsletter.NewRegistry(newsletter.Config{
		Store:     store,
		Publisher: &recordingPublisher{},
		Secret:    testSecret,
		Logger:    logger.Discard(),
	})

	err := reg.Add(context.Background(), newsletter.SubscribeCommand{})

	var verr *newsletter.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, newsletter.PropNewSubscriberEmail, verr.Field)
	store.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "Get", mock.Anything, mock.Anything, mock.Anything)
}

func TestRemove_AllOccurrencesOrderPreserved(t *testing.T) {
	reg, store, _ := newTestRegistry(t)
	seed(t, store, "a@x.com", "b@x.com", "a@x.com", "c@x.com", "a@x.com")

	err := reg.Remove(context.Background(), newsletter.UnsubscribeCommand{Email: "a@x.com", Secret: testSecret})
	require.NoError(t, err)
	assert.Equal(t, []string{"b@x.com", "c@x.com"}, storedList(t, store))
}

func TestRemove_AbsentEmailStillRewrites(t *testing.T) {
	store := &mocks.MockKVStore{}
	store.On("Get", mock.Anything, newsletter.SubscribersKey, "[]").Return(`["b@x.com"]`, nil)
	store.On("Set", mock.Anything, newsletter.SubscribersKey, `["b@x.com"]`).Return(nil)

	reg := newsletter.NewRegistry(newsletter.Config{
		Store:     store,
		Publisher: &recordingPublisher{},
		Secret:    testSecret,
		Logger:    logger.Discard(),
	})

	err := reg.Remove(context.Background(), newsletter.UnsubscribeCommand{Email: "zzz@x.com", Secret: testSecret})
	require.NoError(t, err)
	store.AssertExpectations(t)
}

func TestRemove_EmptiedListWritesEmptyArray(t *testing.T) {
	reg, store, _ := newTestRegistry(t)
	seed(t, store, "a@x.com")

	require.NoError(t, reg.Remove(context.Background(), newsletter.UnsubscribeCommand{Email: "a@x.com", Secret: testSecret}))

	raw, err := store.Get(context.Background(), newsletter.SubscribersKey, "")
	require.NoError(t, err)
	assert.Equal(t, "[]", raw)
}

func TestRemove_WrongSecret(t *testing.T) {
	for _, secret := range []string{"", "wrong", testSecret + " "} {
		t.Run("secret="+secret, func(t *testing.T) {
			reg, store, pub := newTestRegistry(t)
			seed(t, store, "b@x.com")

			err := reg.Remove(context.Background(), newsletter.UnsubscribeCommand{Email: "b@x.com", Secret: secret})

			var aerr *newsletter.AuthorizationError
			require.ErrorAs(t, err, &aerr)
			assert.Equal(t, []string{"b@x.com"}, storedList(t, store))
			assert.Empty(t, pub.Events())
		})
	}
}

func TestRemove_EmptyConfiguredSecretRejectsEverything(t *testing.T) {
	store := storage.NewMemoryKVStore()
	reg := newsletter.NewRegistry(newsletter.Config{
		Store:     store,
		Publisher: &recordingPublisher{},
		Logger:    logger.Discard(),
	})
	seed(t, store, "a@x.com")

	err := reg.Remove(context.Background(), newsletter.UnsubscribeCommand{Email: "a@x.com"})

	var aerr *newsletter.AuthorizationError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, []string{"a@x.com"}, storedList(t, store))
}

func TestTrigger_EmitsExactlyOneEvent(t *testing.T) {
	reg, store, pub := newTestRegistry(t)
	seed(t, store, "a@x.com", "b@x.com")

	err := reg.Trigger(context.Background(), newsletter.TriggerCommand{Content: "Hello", Secret: testSecret})
	require.NoError(t, err)

	events := pub.Events()
	require.Len(t, events, 1)
	assert.Equal(t, newsletter.EventSendNewsletter, events[0].Name)
	assert.Equal(t, "a@x.com,b@x.com", events[0].Properties[newsletter.PropEmailAddresses])
	assert.Equal(t, "Hello", events[0].Properties[newsletter.PropContent])
}

func TestTrigger_EmptyList(t *testing.T) {
	reg, _, pub := newTestRegistry(t)

	require.NoError(t, reg.Trigger(context.Background(), newsletter.TriggerCommand{Content: "Hi", Secret: testSecret}))

	events := pub.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "", events[0].Properties[newsletter.PropEmailAddresses])
}

func TestTrigger_RepeatedTriggersAreNotDeduplicated(t *testing.T) {
	reg, _, pub := newTestRegistry(t)
	cmd := newsletter.TriggerCommand{Content: "Hi", Secret: testSecret}

	require.NoError(t, reg.Trigger(context.Background(), cmd))
	require.NoError(t, reg.Trigger(context.Background(), cmd))

	assert.Len(t, pub.Events(), 2)
}

func TestTrigger_Rejections(t *testing.T) {
	tests := []struct {
		name string
		cmd  newsletter.TriggerCommand
	}{
		{"wrong secret", newsletter.TriggerCommand{Content: "Hi", Secret: "nope"}},
		{"missing secret", newsletter.TriggerCommand{Content: "Hi"}},
		{"missing content", newsletter.TriggerCommand{Secret: testSecret}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, store, pub := newTestRegistry(t)
			seed(t, store, "a@x.com")

			err := reg.Trigger(context.Background(), tt.cmd)
			assert.Error(t, err)
			assert.Empty(t, pub.Events())
			assert.Equal(t, []string{"a@x.com"}, storedList(t, store))
		})
	}
}

func TestTrigger_PublishFailurePropagates(t *testing.T) {
	store := storage.NewMemoryKVStore()
	reg := newsletter.NewRegistry(newsletter.Config{
		Store:     store,
		Publisher: &recordingPublisher{err: eventbus.ErrBufferFull},
		Secret:    testSecret,
		Logger:    logger.Discard(),
	})

	err := reg.Trigger(context.Background(), newsletter.TriggerCommand{Content: "Hi", Secret: testSecret})
	assert.ErrorIs(t, err, eventbus.ErrBufferFull)
}

func TestStorageFaultsPropagate(t *testing.T) {
	boom := errors.New("disk on fire")

	t.Run("read", func(t *testing.T) {
		store := &mocks.MockKVStore{}
		store.On("Get", mock.Anything, newsletter.SubscribersKey, "[]").Return("", boom)
		reg := newsletter.NewRegistry(newsletter.Config{Store: store, Publisher: &recordingPublisher{}, Secret: testSecret, Logger: logger.Discard()})

		err := reg.Add(context.Background(), newsletter.SubscribeCommand{Email: "a@x.com"})
		assert.ErrorIs(t, err, boom)
		store.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("write", func(t *testing.T) {
		store := &mocks.MockKVStore{}
		store.On("Get", mock.Anything, newsletter.SubscribersKey, "[]").Return("[]", nil)
		store.On("Set", mock.Anything, newsletter.SubscribersKey, `["a@x.com"]`).Return(boom)
		reg := newsletter.NewRegistry(newsletter.Config{Store: store, Publisher: &recordingPublisher{}, Secret: testSecret, Logger: logger.Discard()})

		err := reg.Add(context.Background(), newsletter.SubscribeCommand{Email: "a@x.com"})
		assert.ErrorIs(t, err, boom)
		store.AssertExpectations(t)
	})
}

func TestRoundTrip(t *testing.T) {
	reg, store, _ := newTestRegistry(t)
	ctx := context.Background()
	seed(t, store, "a@x.com", "b@x.com", "a@x.com")

	first, err := reg.Subscribers(ctx)
	require.NoError(t, err)
	raw, err := json.Marshal(first)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, newsletter.SubscribersKey, string(raw)))
	second, err := reg.Subscribers(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRemove_RandomLists(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	pool := []string{"a@x.com", "b@x.com", "c@x.com", "d@x.com"}

	for i := 0; i < 50; i++ {
		reg, store, _ := newTestRegistry(t)
		list := make([]string, rng.Intn(10))
		for j := range list {
			list[j] = pool[rng.Intn(len(pool))]
		}
		seed(t, store, list...)
		target := pool[rng.Intn(len(pool))]

		require.NoError(t, reg.Remove(context.Background(), newsletter.UnsubscribeCommand{Email: target, Secret: testSecret}))

		want := []string{}
		for _, e := range list {
			if e != target {
				want = append(want, e)
			}
		}
		assert.Equal(t, want, storedList(t, store), "list=%v target=%s", list, target)
	}
}

func TestAdd_ConcurrentWritersDoNotLoseUpdates(t *testing.T) {
	reg, store, _ := newTestRegistry(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = reg.Add(ctx, newsletter.SubscribeCommand{Email: "a@x.com"})
		}()
	}
	wg.Wait()

	assert.Len(t, storedList(t, store), 20)
}

func TestFormatAddresses(t *testing.T) {
	assert.Equal(t, "", newsletter.FormatAddresses(nil))
	assert.Equal(t, "a@x.com", newsletter.FormatAddresses([]string{"a@x.com"}))
	assert.Equal(t, "a@x.com,b@x.com", newsletter.FormatAddresses([]string{"a@x.com", "b@x.com"}))
}
