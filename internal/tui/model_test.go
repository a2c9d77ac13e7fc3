package tui

import (
	"context"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mqtty/mqtty/internal/control"
	"github.com/mqtty/mqtty/internal/core/config"
	"github.com/mqtty/mqtty/internal/core/feed"
	"github.com/mqtty/mqtty/internal/core/stats"
	"github.com/mqtty/mqtty/internal/notify"
	"github.com/mqtty/mqtty/internal/store"
)

func testConfig() *config.Config {
	return &config.Config{
		Palette:     "default",
		Breadcrumbs: true,
		TopicList:   config.ListOptions{SortBy: "name"},
		MessageList: config.ListOptions{SortBy: "key"},
	}
}

func newTestModel(t *testing.T) (*Model, *store.DB) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "tui.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cache := stats.New()
	db.OnTopicChange(cache.Invalidate)

	m, err := New(Options{
		DB:       db,
		Config:   testConfig(),
		Stats:    cache,
		Notifier: notify.NewNotifier(),
		Log:      zerolog.Nop(),
	})
	require.NoError(t, err)
	return m, db
}

func seedTopic(t *testing.T, db *store.DB, name string, texts ...string) feed.Topic {
	t.Helper()
	var topic feed.Topic
	require.NoError(t, db.Update(context.Background(), func(tx *store.Tx) error {
		var err error
		topic, err = tx.CreateTopic(name)
		if err != nil {
			return err
		}
		for _, text := range texts {
			if _, err := tx.CreateMessage(text, topic); err != nil {
				return err
			}
		}
		return nil
	}))
	return topic
}

func keyPress(m *Model, s string) {
	var msg tea.KeyMsg
	switch s {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
	m.Update(msg)
}

func TestStartsOnTopicList(t *testing.T) {
	m, db := newTestModel(t)
	seedTopic(t, db, "sensors/kitchen", "21.5")

	m.refreshScreen(m.top())
	assert.Len(t, m.stack, 1)
	assert.Equal(t, "Topics: 1", m.top().title())
}

func TestWelcomeDialogWhenNoSubscriptions(t *testing.T) {
	m, _ := newTestModel(t)
	require.IsType(t, &welcomeDialog{}, m.dlg)

	keyPress(m, "enter")
	assert.Nil(t, m.dlg)
}

func TestPushAndPopScreens(t *testing.T) {
	m, db := newTestModel(t)
	seedTopic(t, db, "sensors/kitchen", "21.5", "22.0")
	m.dlg = nil
	m.refreshScreen(m.top())

	keyPress(m, "enter")
	require.Len(t, m.stack, 2)
	assert.Equal(t, "sensors/kitchen: 2 messages", m.top().title())

	keyPress(m, "enter")
	require.Len(t, m.stack, 3)
	assert.Contains(t, m.top().title(), "Message #")

	keyPress(m, "esc")
	assert.Len(t, m.stack, 2)
	keyPress(m, "esc")
	assert.Len(t, m.stack, 1)
}

func TestPopToAncestorScreen(t *testing.T) {
	m, db := newTestModel(t)
	seedTopic(t, db, "sensors/kitchen", "21.5")
	m.dlg = nil
	m.refreshScreen(m.top())

	keyPress(m, "enter")
	keyPress(m, "enter")
	require.Len(t, m.stack, 3)
	target := m.stack[1]

	m.popTo(target)
	assert.Len(t, m.stack, 2)
	assert.Same(t, target, m.top())

	// A target that is no longer on the stack lands on the root.
	m.popTo(target)
	m.push(newDetailScreen(m, 1))
	m.popTo(newMessagesScreen(m, m.stack[0].(*topicsScreen).topics[0]))
	assert.Len(t, m.stack, 1)
}

func TestBackOnRootAsksToQuit(t *testing.T) {
	m, _ := newTestModel(t)
	m.dlg = nil

	keyPress(m, "esc")
	require.IsType(t, &confirmDialog{}, m.dlg)

	// Declining keeps the program alive.
	keyPress(m, "n")
	assert.Nil(t, m.dlg)
	assert.False(t, m.quitting)
}

func TestEventRoutingRefreshesInterestedScreens(t *testing.T) {
	m, db := newTestModel(t)
	kitchen := seedTopic(t, db, "sensors/kitchen", "21.5")
	seedTopic(t, db, "sensors/hall", "19.0")
	m.dlg = nil
	m.refreshScreen(m.top())

	// Open the kitchen feed, then grow it behind the screen's back.
	keyPress(m, "enter") // cursor starts on sensors/hall; sort is by name
	msgs := m.top().(*messagesScreen)
	require.Equal(t, "sensors/hall", msgs.topic.Name)

	require.NoError(t, db.Update(context.Background(), func(tx *store.Tx) error {
		_, err := tx.CreateMessage("20.1", kitchen)
		return err
	}))

	before := len(msgs.messages)
	m.handleEvents([]feed.Event{feed.MessageAdded{TopicKey: kitchen.Key, MessageKey: 99}})

	// The hall feed is not interested in kitchen events.
	assert.Len(t, msgs.messages, before)

	// But the root topic list is, and its count moved.
	root := m.stack[0].(*topicsScreen)
	assert.Equal(t, 2, root.counts[kitchen.Key])
}

func TestHoldQueuesRefreshesUntilReleased(t *testing.T) {
	m, db := newTestModel(t)
	topic := seedTopic(t, db, "sensors/kitchen", "21.5")
	m.dlg = nil
	m.refreshScreen(m.top())
	root := m.stack[0].(*topicsScreen)
	require.Equal(t, 1, root.counts[topic.Key])

	keyPress(m, "H")
	require.True(t, m.held)

	require.NoError(t, db.Update(context.Background(), func(tx *store.Tx) error {
		_, err := tx.CreateMessage("22.0", topic)
		return err
	}))
	m.handleEvents([]feed.Event{feed.MessageAdded{TopicKey: topic.Key}})
	m.handleEvents([]feed.Event{feed.MessageAdded{TopicKey: topic.Key}})

	// Held: nothing applied, one queued entry (deduplicated).
	assert.Equal(t, 1, root.counts[topic.Key])
	assert.Equal(t, 1, m.pending.Len())

	keyPress(m, "H")
	assert.False(t, m.held)
	assert.Equal(t, 0, m.pending.Len())
	assert.Equal(t, 2, root.counts[topic.Key])
}

func TestControlOpenNavigatesToTopic(t *testing.T) {
	m, db := newTestModel(t)
	seedTopic(t, db, "alerts/smoke", "DETECTED")
	m.dlg = nil

	m.handleControl(control.Command{Name: "open", Args: []string{"mqtt://alerts/smoke"}})

	require.Len(t, m.stack, 2)
	msgs := m.top().(*messagesScreen)
	assert.Equal(t, "alerts/smoke", msgs.topic.Name)
	require.Len(t, msgs.messages, 1)
	assert.Equal(t, "DETECTED", msgs.messages[0].Text)
}

func TestControlOpenUnknownTopicWarns(t *testing.T) {
	m, _ := newTestModel(t)
	m.dlg = nil

	m.handleControl(control.Command{Name: "open", Args: []string{"mqtt://nope"}})

	assert.Len(t, m.stack, 1)
	assert.Contains(t, m.status.Current(), `no topic named "nope"`)
}

func TestControlOpenReplacesExistingStack(t *testing.T) {
	m, db := newTestModel(t)
	seedTopic(t, db, "a", "1")
	seedTopic(t, db, "b", "2")
	m.dlg = nil
	m.refreshScreen(m.top())

	keyPress(m, "enter") // descend into "a"
	keyPress(m, "enter") // and into its first message
	require.Len(t, m.stack, 3)

	m.handleControl(control.Command{Name: "open", Args: []string{"mqtt://b"}})
	require.Len(t, m.stack, 2)
	assert.Equal(t, "b", m.top().(*messagesScreen).topic.Name)
}

func TestSearchJumpsToNextMatch(t *testing.T) {
	m, db := newTestModel(t)
	seedTopic(t, db, "alpha")
	seedTopic(t, db, "beta/sensor")
	seedTopic(t, db, "gamma/sensor")
	m.dlg = nil
	m.refreshScreen(m.top())
	root := m.stack[0].(*topicsScreen)

	keyPress(m, "/")
	require.True(t, root.searching())
	for _, r := range "sensor" {
		keyPress(m, string(r))
	}
	keyPress(m, "enter")

	assert.False(t, root.searching())
	assert.Equal(t, "beta/sensor", root.topics[root.list.cursor].Name)

	// Next match advances, then wraps.
	keyPress(m, "n")
	assert.Equal(t, "gamma/sensor", root.topics[root.list.cursor].Name)
	keyPress(m, "n")
	assert.Equal(t, "beta/sensor", root.topics[root.list.cursor].Name)
}

func TestGlobalKeysSuspendedWhileSearching(t *testing.T) {
	m, db := newTestModel(t)
	seedTopic(t, db, "quiet")
	m.dlg = nil
	m.refreshScreen(m.top())
	root := m.stack[0].(*topicsScreen)

	keyPress(m, "/")
	keyPress(m, "q") // must type into the input, not quit
	assert.Nil(t, m.dlg)
	assert.Equal(t, "q", root.search.input.Value())
}

func TestSortCycling(t *testing.T) {
	m, db := newTestModel(t)
	seedTopic(t, db, "a")
	m.dlg = nil
	root := m.stack[0].(*topicsScreen)
	require.Equal(t, feed.SortByName, root.sort)

	keyPress(m, "o")
	assert.Equal(t, feed.SortByUpdated, root.sort)
	keyPress(m, "o")
	assert.Equal(t, feed.SortByKey, root.sort)
	keyPress(m, "o")
	assert.Equal(t, feed.SortByName, root.sort)
}

func TestSubscribeToggle(t *testing.T) {
	m, db := newTestModel(t)
	topic := seedTopic(t, db, "sensors/kitchen")
	m.dlg = nil
	m.refreshScreen(m.top())

	keyPress(m, "s")

	require.NoError(t, db.View(context.Background(), func(tx *store.Tx) error {
		got, err := tx.TopicByKey(topic.Key)
		if err != nil {
			return err
		}
		assert.True(t, got.Subscribed)
		return nil
	}))
}

func TestRenameCollisionShowsErrorDialog(t *testing.T) {
	m, db := newTestModel(t)
	seedTopic(t, db, "first")
	seedTopic(t, db, "second")
	m.dlg = nil
	m.refreshScreen(m.top())
	root := m.stack[0].(*topicsScreen)
	require.Equal(t, "first", root.topics[root.list.cursor].Name)

	keyPress(m, "r")
	prompt, ok := m.dlg.(*promptDialog)
	require.True(t, ok)
	prompt.input.SetValue("second")
	keyPress(m, "enter")

	require.IsType(t, &errorDialog{}, m.dlg)
}

func TestCreateTopicFromList(t *testing.T) {
	m, db := newTestModel(t)
	seedTopic(t, db, "existing")
	m.dlg = nil
	m.refreshScreen(m.top())
	root := m.stack[0].(*topicsScreen)

	keyPress(m, "a")
	prompt, ok := m.dlg.(*promptDialog)
	require.True(t, ok)
	prompt.input.SetValue("alerts/new")
	keyPress(m, "enter")

	assert.Nil(t, m.dlg)
	require.NoError(t, db.View(context.Background(), func(tx *store.Tx) error {
		_, err := tx.TopicByName("alerts/new")
		return err
	}))
	assert.Len(t, root.topics, 2)
}

func TestCreateTopicCollisionShowsErrorDialog(t *testing.T) {
	m, db := newTestModel(t)
	seedTopic(t, db, "taken")
	m.dlg = nil
	m.refreshScreen(m.top())

	keyPress(m, "a")
	prompt, ok := m.dlg.(*promptDialog)
	require.True(t, ok)
	prompt.input.SetValue("taken")
	keyPress(m, "enter")

	require.IsType(t, &errorDialog{}, m.dlg)
}

func TestCopyMessageToAnotherTopic(t *testing.T) {
	m, db := newTestModel(t)
	src := seedTopic(t, db, "src", "payload")
	m.dlg = nil
	m.refreshScreen(m.top())

	keyPress(m, "enter")
	msgs := m.top().(*messagesScreen)
	require.Len(t, msgs.messages, 1)
	messageKey := msgs.messages[0].Key

	// The target does not exist yet; it is created on the fly.
	keyPress(m, "c")
	prompt, ok := m.dlg.(*promptDialog)
	require.True(t, ok)
	prompt.input.SetValue("dst")
	keyPress(m, "enter")
	assert.Nil(t, m.dlg)

	require.NoError(t, db.View(context.Background(), func(tx *store.Tx) error {
		dst, err := tx.TopicByName("dst")
		if err != nil {
			return err
		}
		links, err := tx.LinksByMessage(messageKey)
		if err != nil {
			return err
		}
		require.Len(t, links, 2)
		sequences := []int{links[0].Sequence, links[1].Sequence}
		assert.ElementsMatch(t, []int{1, 2}, sequences)

		for _, topicKey := range []int64{src.Key, dst.Key} {
			filed, err := tx.MessagesByTopic(topicKey)
			if err != nil {
				return err
			}
			require.Len(t, filed, 1)
			assert.Equal(t, messageKey, filed[0].Key)
		}
		return nil
	}))
	assert.Len(t, msgs.messages, 1)
}

func TestCopyToSameTopicAgainShowsErrorDialog(t *testing.T) {
	m, db := newTestModel(t)
	seedTopic(t, db, "src", "payload")
	seedTopic(t, db, "dst")
	m.dlg = nil
	m.refreshScreen(m.top())

	keyPress(m, "enter") // cursor on "dst"; it is empty, descend into "src"
	if m.top().(*messagesScreen).topic.Name != "src" {
		keyPress(m, "esc")
		keyPress(m, "j")
		keyPress(m, "enter")
	}
	msgs := m.top().(*messagesScreen)
	require.Equal(t, "src", msgs.topic.Name)

	for i := 0; i < 2; i++ {
		keyPress(m, "c")
		prompt, ok := m.dlg.(*promptDialog)
		require.True(t, ok)
		prompt.input.SetValue("dst")
		keyPress(m, "enter")
	}

	require.IsType(t, &errorDialog{}, m.dlg)
}

func TestMoveMessageToAnotherTopic(t *testing.T) {
	m, db := newTestModel(t)
	seedTopic(t, db, "src", "payload")
	m.dlg = nil
	m.refreshScreen(m.top())

	keyPress(m, "enter")
	msgs := m.top().(*messagesScreen)
	require.Len(t, msgs.messages, 1)
	messageKey := msgs.messages[0].Key

	keyPress(m, "m")
	prompt, ok := m.dlg.(*promptDialog)
	require.True(t, ok)
	prompt.input.SetValue("dst")
	keyPress(m, "enter")

	// Gone from the source, filed once under the target.
	assert.Empty(t, msgs.messages)
	require.NoError(t, db.View(context.Background(), func(tx *store.Tx) error {
		dst, err := tx.TopicByName("dst")
		if err != nil {
			return err
		}
		filed, err := tx.MessagesByTopic(dst.Key)
		if err != nil {
			return err
		}
		require.Len(t, filed, 1)
		assert.Equal(t, messageKey, filed[0].Key)

		links, err := tx.LinksByMessage(messageKey)
		if err != nil {
			return err
		}
		assert.Len(t, links, 1)
		return nil
	}))
}

func TestRemoveMessageFromTopic(t *testing.T) {
	m, db := newTestModel(t)
	seedTopic(t, db, "src", "payload")
	m.dlg = nil
	m.refreshScreen(m.top())

	keyPress(m, "enter")
	msgs := m.top().(*messagesScreen)
	require.Len(t, msgs.messages, 1)
	messageKey := msgs.messages[0].Key

	// File it under a second topic first so the unlink leaves one home.
	require.NoError(t, db.Update(context.Background(), func(tx *store.Tx) error {
		other, err := tx.CreateTopic("other")
		if err != nil {
			return err
		}
		return tx.AddTopicLink(msgs.messages[0], other)
	}))

	keyPress(m, "u")
	require.IsType(t, &confirmDialog{}, m.dlg)
	keyPress(m, "y")

	assert.Empty(t, msgs.messages)
	require.NoError(t, db.View(context.Background(), func(tx *store.Tx) error {
		links, err := tx.LinksByMessage(messageKey)
		if err != nil {
			return err
		}
		require.Len(t, links, 1)

		other, err := tx.TopicByName("other")
		if err != nil {
			return err
		}
		assert.Equal(t, other.Key, links[0].TopicKey)
		return nil
	}))
}

func TestDetailRefreshesOnLinkedTopicEvent(t *testing.T) {
	m, db := newTestModel(t)
	src := seedTopic(t, db, "src", "payload")
	dst := seedTopic(t, db, "dst")
	m.dlg = nil
	m.refreshScreen(m.top())

	require.NoError(t, db.Update(context.Background(), func(tx *store.Tx) error {
		filed, err := tx.MessagesByTopic(src.Key)
		if err != nil {
			return err
		}
		return tx.AddTopicLink(filed[0], dst)
	}))

	// Descend into the message via "src" (topic list sorts by name).
	keyPress(m, "enter")
	if m.top().(*messagesScreen).topic.Name != "src" {
		keyPress(m, "esc")
		keyPress(m, "j")
		keyPress(m, "enter")
	}
	keyPress(m, "enter")
	detail := m.top().(*detailScreen)
	require.ElementsMatch(t, []string{"src", "dst"}, detail.topics)

	// A rename of the secondary topic must show up on the topics line.
	require.NoError(t, db.Update(context.Background(), func(tx *store.Tx) error {
		return tx.RenameTopic(dst.Key, "renamed")
	}))
	m.handleEvents([]feed.Event{feed.TopicChanged{TopicKey: dst.Key}})

	assert.ElementsMatch(t, []string{"src", "renamed"}, detail.topics)
}

func TestEscClearsConfirmedSearch(t *testing.T) {
	m, db := newTestModel(t)
	seedTopic(t, db, "alpha/sensor")
	seedTopic(t, db, "beta")
	m.dlg = nil
	m.refreshScreen(m.top())
	root := m.stack[0].(*topicsScreen)

	keyPress(m, "/")
	for _, r := range "sensor" {
		keyPress(m, string(r))
	}
	keyPress(m, "enter")
	require.Equal(t, "sensor", root.search.query)

	keyPress(m, "/")
	keyPress(m, "esc")

	assert.False(t, root.searching())
	assert.Empty(t, root.search.query)
	assert.Empty(t, root.search.input.Value())
}

func TestDeletedTopicPopsMessageScreen(t *testing.T) {
	m, db := newTestModel(t)
	topic := seedTopic(t, db, "doomed", "bye")
	m.dlg = nil
	m.refreshScreen(m.top())

	keyPress(m, "enter")
	require.Len(t, m.stack, 2)

	require.NoError(t, db.Update(context.Background(), func(tx *store.Tx) error {
		return tx.DeleteTopic(topic.Key)
	}))
	m.handleEvents([]feed.Event{feed.TopicChanged{TopicKey: topic.Key}})

	assert.Len(t, m.stack, 1)
}
