package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mqtty/mqtty/internal/core/feed"
)

func TestPublishWakesConsumerOnce(t *testing.T) {
	n := NewNotifier()

	for i := int64(1); i <= 5; i++ {
		n.Publish(feed.MessageAdded{TopicKey: i})
	}

	// Coalesced: exactly one wake pending, all five events retained.
	select {
	case <-n.Wake():
	default:
		t.Fatal("expected a pending wake")
	}
	select {
	case <-n.Wake():
		t.Fatal("wakes must coalesce")
	default:
	}

	events := n.Drain()
	assert.Len(t, events, 5)
	assert.Empty(t, n.Drain())
}

// A batch of writes followed by one drain yields at least one event
// matching any interested screen's predicate.
func TestDrainPreservesInterestSignal(t *testing.T) {
	n := NewNotifier()
	n.Publish(feed.MessageAdded{TopicKey: 1, TopicName: "a"})
	n.Publish(feed.MessageAdded{TopicKey: 2, TopicName: "b"})
	n.Publish(feed.TopicChanged{TopicKey: 1})

	interested := func(ev feed.Event) bool { return ev.EventTopicKey() == 1 }

	matched := 0
	for _, ev := range n.Drain() {
		if interested(ev) {
			matched++
		}
	}
	assert.Equal(t, 2, matched)
}

func TestPublishNeverBlocks(t *testing.T) {
	n := NewNotifier()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			n.Publish(feed.HeldChanged{})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked without a consumer")
	}
	assert.Len(t, n.Drain(), 1000)
}

func TestMultiQueueDedup(t *testing.T) {
	q := NewMultiQueue[string](3)

	assert.True(t, q.Put("publish:a", NormalPriority))
	assert.False(t, q.Put("publish:a", NormalPriority))
	assert.True(t, q.Put("publish:a", HighPriority), "dedup is per bucket")
	assert.Equal(t, 2, q.Len())
}

func TestMultiQueuePriorityOrder(t *testing.T) {
	q := NewMultiQueue[string](3)
	q.Put("low", LowPriority)
	q.Put("normal", NormalPriority)
	q.Put("high", HighPriority)

	for _, want := range []string{"high", "normal", "low"} {
		got, ok := q.Get()
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
}

func TestMultiQueueGetBlocksUntilPut(t *testing.T) {
	q := NewMultiQueue[string](1)

	got := make(chan string, 1)
	go func() {
		item, ok := q.Get()
		if ok {
			got <- item
		}
	}()

	time.Sleep(10 * time.Millisecond)
	select {
	case <-got:
		t.Fatal("get returned before put")
	default:
	}

	q.Put("task", 0)
	select {
	case item := <-got:
		assert.Equal(t, "task", item)
	case <-time.After(time.Second):
		t.Fatal("get did not wake after put")
	}
}

func TestMultiQueueInflightAccounting(t *testing.T) {
	q := NewMultiQueue[string](1)
	q.Put("task", 0)

	item, ok := q.Get()
	require.True(t, ok)
	assert.Equal(t, 1, q.Len(), "in-flight items still count")

	q.Complete(item)
	assert.Zero(t, q.Len())
}

func TestMultiQueueCloseWakesWaiters(t *testing.T) {
	q := NewMultiQueue[int](1)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := q.Get()
			assert.False(t, ok)
		}()
	}

	time.Sleep(10 * time.Millisecond)
	q.Close()
	wg.Wait()
}
