package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mqtty/mqtty/internal/core/feed"
	"github.com/mqtty/mqtty/internal/store"
)

// messagesScreen lists every message filed under one topic.
type messagesScreen struct {
	m      *Model
	topic  feed.Topic
	list   listState
	search searchState

	messages []feed.Message

	sort    feed.SortKey
	reverse bool
}

func newMessagesScreen(m *Model, topic feed.Topic) *messagesScreen {
	return &messagesScreen{
		m:       m,
		topic:   topic,
		search:  newSearchState(),
		sort:    sortFromConfig(m.cfg.MessageList.SortBy),
		reverse: m.cfg.MessageList.Reverse,
	}
}

func (s *messagesScreen) title() string {
	return fmt.Sprintf("%s: %d messages", s.topic.Name, len(s.messages))
}

func (s *messagesScreen) crumb() string { return s.topic.Name }

func (s *messagesScreen) interested(ev feed.Event) bool {
	if _, held := ev.(feed.HeldChanged); held {
		return true
	}
	return ev.EventTopicKey() == s.topic.Key
}

func (s *messagesScreen) refresh() error {
	var topic feed.Topic
	var messages []feed.Message

	err := s.m.db.View(context.Background(), func(tx *store.Tx) error {
		var err error
		topic, err = tx.TopicByKey(s.topic.Key)
		if err != nil {
			return err
		}
		messages, err = tx.MessagesByTopic(s.topic.Key, s.sort)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		// Topic deleted underneath us, likely over the control socket
		// or a rename collision. Fall back to the root list.
		s.m.popToRoot()
		return nil
	}
	if err != nil {
		return err
	}

	if s.reverse {
		for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
			messages[i], messages[j] = messages[j], messages[i]
		}
	}
	s.topic = topic
	s.messages = messages
	s.list.clamp(len(messages))
	return nil
}

func (s *messagesScreen) selected() *feed.Message {
	if len(s.messages) == 0 {
		return nil
	}
	return &s.messages[s.list.cursor]
}

func (s *messagesScreen) labels() []string {
	labels := make([]string, len(s.messages))
	for i, msg := range s.messages {
		labels[i] = msg.Text
	}
	return labels
}

func (s *messagesScreen) cycleSort() {
	if s.sort == feed.SortByKey {
		s.sort = feed.SortByUpdated
	} else {
		s.sort = feed.SortByKey
	}
}

func (s *messagesScreen) handleKey(msg tea.KeyMsg) tea.Cmd {
	if s.search.active {
		switch msg.String() {
		case "enter":
			s.search.confirm()
			if idx, ok := nextMatch(s.labels(), s.list.cursor-1, s.search.query); ok {
				s.list.cursor = idx
			}
		case "esc":
			s.search.clear()
		default:
			var cmd tea.Cmd
			s.search.input, cmd = s.search.input.Update(msg)
			return cmd
		}
		return nil
	}

	keys := s.m.keys
	n := len(s.messages)
	switch {
	case key.Matches(msg, keys.Up):
		s.list.moveUp(n)
	case key.Matches(msg, keys.Down):
		s.list.moveDown(n)
	case key.Matches(msg, keys.PageUp):
		s.list.pageUp(n, s.m.pageSize())
	case key.Matches(msg, keys.PageDown):
		s.list.pageDown(n, s.m.pageSize())
	case key.Matches(msg, keys.Top):
		s.list.top()
	case key.Matches(msg, keys.Bottom):
		s.list.bottom(n)
	case key.Matches(msg, keys.Select):
		if message := s.selected(); message != nil {
			s.m.push(newDetailScreen(s.m, message.Key))
		}
	case key.Matches(msg, keys.Search):
		s.search.start()
	case key.Matches(msg, keys.NextMatch):
		if idx, ok := nextMatch(s.labels(), s.list.cursor, s.search.query); ok {
			s.list.cursor = idx
		}
	case key.Matches(msg, keys.CycleSort):
		s.cycleSort()
		s.m.refreshScreen(s)
	case key.Matches(msg, keys.Reverse):
		s.reverse = !s.reverse
		s.m.refreshScreen(s)
	case key.Matches(msg, keys.Move):
		s.promptRefile(true)
	case key.Matches(msg, keys.Copy):
		s.promptRefile(false)
	case key.Matches(msg, keys.Unlink):
		s.confirmUnlink()
	case key.Matches(msg, keys.Delete):
		s.confirmDelete()
	}
	return nil
}

// promptRefile files the selected message under another topic, creating
// the topic on demand. A move also drops the filing under the current
// topic.
func (s *messagesScreen) promptRefile(move bool) {
	message := s.selected()
	if message == nil {
		return
	}
	selected := *message
	title := "Copy to topic"
	if move {
		title = "Move to topic"
	}
	s.m.openDialog(newPromptDialog(title, "", func(m *Model, value string) tea.Cmd {
		if value == "" || value == s.topic.Name {
			return nil
		}
		err := m.db.Update(context.Background(), func(tx *store.Tx) error {
			target, err := tx.TopicByName(value)
			if errors.Is(err, store.ErrNotFound) {
				target, err = tx.CreateTopic(value)
			}
			if err != nil {
				return err
			}
			if err := tx.AddTopicLink(selected, target); err != nil {
				return err
			}
			if move {
				return tx.RemoveTopicLink(selected, s.topic)
			}
			return nil
		})
		switch {
		case errors.Is(err, store.ErrConstraint):
			m.openDialog(&errorDialog{title: title + " failed", text: fmt.Sprintf("message #%d is already filed under %q", selected.Key, value)})
		case err != nil:
			m.openDialog(&errorDialog{title: title + " failed", text: err.Error()})
		default:
			m.refreshScreen(s)
		}
		return nil
	}))
}

func (s *messagesScreen) confirmUnlink() {
	message := s.selected()
	if message == nil {
		return
	}
	selected := *message
	text := fmt.Sprintf("Remove message #%d from %q? It stays filed under its other topics.", selected.Key, s.topic.Name)
	s.m.openDialog(&confirmDialog{title: "Remove from topic", text: text, accept: func(m *Model) tea.Cmd {
		err := m.db.Update(context.Background(), func(tx *store.Tx) error {
			return tx.RemoveTopicLink(selected, s.topic)
		})
		if err != nil {
			m.openDialog(&errorDialog{title: "Remove failed", text: err.Error()})
			return nil
		}
		m.refreshScreen(s)
		return nil
	}})
}

func (s *messagesScreen) confirmDelete() {
	message := s.selected()
	if message == nil {
		return
	}
	messageKey := message.Key
	text := fmt.Sprintf("Delete message #%d? It is removed from every topic it is filed under.", messageKey)
	s.m.openDialog(&confirmDialog{title: "Delete message", text: text, accept: func(m *Model) tea.Cmd {
		err := m.db.Update(context.Background(), func(tx *store.Tx) error {
			return tx.DeleteMessage(messageKey)
		})
		if err != nil {
			m.openDialog(&errorDialog{title: "Delete failed", text: err.Error()})
			return nil
		}
		m.refreshScreen(s)
		return nil
	}})
}

func (s *messagesScreen) view(width, height int) string {
	theme := s.m.theme

	rows := height
	if s.search.active {
		rows--
	}

	var b strings.Builder
	if len(s.messages) == 0 {
		b.WriteString(theme.Dim.Render(" no messages in this topic"))
	}

	start, end := s.list.window(len(s.messages), rows)
	for i := start; i < end; i++ {
		message := s.messages[i]

		preview := firstLine(message.Text)
		line := fmt.Sprintf(" #%-6d %-50s %s", message.Key, truncate(preview, 50), message.Updated.Format("2006-01-02 15:04"))

		style := theme.Normal
		switch {
		case i == s.list.cursor:
			style = theme.Selected
		case s.search.match(message.Text):
			style = theme.Match
		}
		b.WriteString(style.MaxWidth(width).Render(line))
		b.WriteByte('\n')
	}

	body := strings.TrimRight(b.String(), "\n")
	if s.search.active {
		body = lipgloss.JoinVertical(lipgloss.Left, body, s.search.input.View())
	}
	return body
}

func (s *messagesScreen) searching() bool { return s.search.active }

func (s *messagesScreen) helpKeys() []key.Binding {
	k := s.m.keys
	return []key.Binding{k.Select, k.Search, k.Move, k.Copy, k.Unlink, k.CycleSort, k.Delete, k.Back, k.Help}
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
