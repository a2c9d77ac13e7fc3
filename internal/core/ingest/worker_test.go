package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mqtty/mqtty/internal/core/bus"
	"github.com/mqtty/mqtty/internal/core/feed"
	"github.com/mqtty/mqtty/internal/notify"
	"github.com/mqtty/mqtty/internal/store"
)

// fakeBus implements bus.Client without a broker. Connect outcomes are
// scripted; Inject delivers a message to the subscribed handler.
type fakeBus struct {
	mu          sync.Mutex
	handler     bus.Handler
	lost        func(error)
	connectErrs []error
	connects    int
	disconnects int
}

func (f *fakeBus) Connect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if len(f.connectErrs) > 0 {
		err := f.connectErrs[0]
		f.connectErrs = f.connectErrs[1:]
		return err
	}
	return nil
}

func (f *fakeBus) Subscribe(_ string, handler bus.Handler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = handler
	return nil
}

func (f *fakeBus) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
}

func (f *fakeBus) OnConnectionLost(fn func(error)) {
	f.lost = fn
}

func (f *fakeBus) Inject(topic, payload string) {
	f.mu.Lock()
	handler := f.handler
	f.mu.Unlock()
	handler(bus.InboundMessage{Topic: topic, Payload: []byte(payload), Received: time.Now()})
}

func newTestWorker(t *testing.T) (*Worker, *store.DB, *fakeBus, *notify.Notifier) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "mqtty.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	fb := &fakeBus{}
	notifier := notify.NewNotifier()
	return NewWorker(db, fb, notifier, zerolog.Nop()), db, fb, notifier
}

func TestHandleEventPersistsAndNotifies(t *testing.T) {
	w, db, _, notifier := newTestWorker(t)

	w.HandleEvent(bus.InboundMessage{Topic: "sensors/temp", Payload: []byte("21.5")})
	w.HandleEvent(bus.InboundMessage{Topic: "sensors/temp", Payload: []byte("22.0")})

	require.NoError(t, db.View(context.Background(), func(tx *store.Tx) error {
		topics, err := tx.Topics(store.TopicQuery{})
		require.NoError(t, err)
		require.Len(t, topics, 1, "same topic name never creates two rows")
		assert.Equal(t, "sensors/temp", topics[0].Name)

		msgs, err := tx.MessagesByTopic(topics[0].Key, feed.SortByKey)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, "21.5", msgs[0].Text)
		assert.Equal(t, "22.0", msgs[1].Text)
		return nil
	}))

	events := notifier.Drain()
	require.Len(t, events, 2)
	added, ok := events[0].(feed.MessageAdded)
	require.True(t, ok)
	assert.Equal(t, "sensors/temp", added.TopicName)
}

func TestMalformedEventDropped(t *testing.T) {
	w, db, _, notifier := newTestWorker(t)

	w.HandleEvent(bus.InboundMessage{Topic: "", Payload: []byte("orphan")})
	w.HandleEvent(bus.InboundMessage{Topic: "binary", Payload: []byte{0xff, 0xfe}})

	require.NoError(t, db.View(context.Background(), func(tx *store.Tx) error {
		topics, err := tx.Topics(store.TopicQuery{})
		require.NoError(t, err)
		assert.Empty(t, topics)
		return nil
	}))
	assert.Empty(t, notifier.Drain())

	// The worker is still healthy afterwards.
	w.HandleEvent(bus.InboundMessage{Topic: "ok", Payload: []byte("fine")})
	assert.Len(t, notifier.Drain(), 1)
}

func TestRunReconnectsAfterConnectFailure(t *testing.T) {
	w, _, fb, _ := newTestWorker(t)
	fb.connectErrs = []error{errors.New("refused")}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	// First attempt fails, the retry succeeds after backoff.
	require.Eventually(t, func() bool {
		return w.State() == Subscribed
	}, 5*time.Second, 10*time.Millisecond)
	assert.False(t, w.Offline())

	fb.mu.Lock()
	connects := fb.connects
	fb.mu.Unlock()
	assert.Equal(t, 2, connects)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not exit on cancel")
	}
	assert.True(t, w.Offline())
}

func TestRunRecoversFromConnectionLoss(t *testing.T) {
	w, _, fb, _ := newTestWorker(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.Eventually(t, func() bool { return w.State() == Subscribed }, time.Second, 5*time.Millisecond)

	fb.lost(errors.New("broker went away"))
	require.Eventually(t, func() bool {
		fb.mu.Lock()
		defer fb.mu.Unlock()
		return fb.connects >= 2
	}, 5*time.Second, 10*time.Millisecond)
}

func TestOfflineStartup(t *testing.T) {
	w, db, _, _ := newTestWorker(t)

	// --no-sync: Run is never called. The flag stays set and the store
	// remains fully usable.
	assert.True(t, w.Offline())
	assert.Equal(t, Disconnected, w.State())

	require.NoError(t, db.Update(context.Background(), func(tx *store.Tx) error {
		_, err := tx.CreateTopic("local-only")
		return err
	}))
}
