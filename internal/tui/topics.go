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
	"github.com/mqtty/mqtty/internal/core/stats"
	"github.com/mqtty/mqtty/internal/store"
)

// topicsScreen is the root screen: every known topic with its message
// count, filterable to subscriptions only.
type topicsScreen struct {
	m      *Model
	list   listState
	search searchState

	topics []feed.Topic
	counts map[int64]int

	sort           feed.SortKey
	reverse        bool
	subscribedOnly bool
}

func newTopicsScreen(m *Model) *topicsScreen {
	return &topicsScreen{
		m:       m,
		search:  newSearchState(),
		counts:  map[int64]int{},
		sort:    sortFromConfig(m.cfg.TopicList.SortBy),
		reverse: m.cfg.TopicList.Reverse,
	}
}

func (s *topicsScreen) title() string {
	title := fmt.Sprintf("Topics: %d", len(s.topics))
	if s.subscribedOnly {
		title += " (subscribed)"
	}
	return title
}

func (s *topicsScreen) crumb() string { return "Topics" }

// The topic list shows every topic, so any store event is relevant.
func (s *topicsScreen) interested(feed.Event) bool { return true }

func (s *topicsScreen) refresh() error {
	var topics []feed.Topic
	counts := map[int64]int{}

	err := s.m.db.View(context.Background(), func(tx *store.Tx) error {
		var err error
		topics, err = tx.Topics(store.TopicQuery{
			SubscribedOnly: s.subscribedOnly,
			Sort:           []feed.SortKey{s.sort},
		})
		if err != nil {
			return err
		}
		for _, topic := range topics {
			key := topic.Key
			count, err := s.m.stats.Get(key, func() (stats.TopicStats, error) {
				n, err := tx.MessageCount(key)
				return stats.TopicStats{MessageCount: n}, err
			})
			if err != nil {
				return err
			}
			counts[key] = count.MessageCount
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.reverse {
		for i, j := 0, len(topics)-1; i < j; i, j = i+1, j-1 {
			topics[i], topics[j] = topics[j], topics[i]
		}
	}
	s.topics = topics
	s.counts = counts
	s.list.clamp(len(topics))
	return nil
}

func (s *topicsScreen) selected() *feed.Topic {
	if len(s.topics) == 0 {
		return nil
	}
	return &s.topics[s.list.cursor]
}

func (s *topicsScreen) names() []string {
	names := make([]string, len(s.topics))
	for i, t := range s.topics {
		names[i] = t.Name
	}
	return names
}

func (s *topicsScreen) cycleSort() {
	switch s.sort {
	case feed.SortByName:
		s.sort = feed.SortByUpdated
	case feed.SortByUpdated:
		s.sort = feed.SortByKey
	default:
		s.sort = feed.SortByName
	}
}

func (s *topicsScreen) handleKey(msg tea.KeyMsg) tea.Cmd {
	if s.search.active {
		switch msg.String() {
		case "enter":
			s.search.confirm()
			if idx, ok := nextMatch(s.names(), s.list.cursor-1, s.search.query); ok {
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
	n := len(s.topics)
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
		if topic := s.selected(); topic != nil {
			s.m.push(newMessagesScreen(s.m, *topic))
		}
	case key.Matches(msg, keys.Search):
		s.search.start()
	case key.Matches(msg, keys.NextMatch):
		if idx, ok := nextMatch(s.names(), s.list.cursor, s.search.query); ok {
			s.list.cursor = idx
		}
	case key.Matches(msg, keys.CycleSort):
		s.cycleSort()
		s.m.refreshScreen(s)
	case key.Matches(msg, keys.Reverse):
		s.reverse = !s.reverse
		s.m.refreshScreen(s)
	case key.Matches(msg, keys.Subscribed):
		s.subscribedOnly = !s.subscribedOnly
		s.list.top()
		s.m.refreshScreen(s)
	case key.Matches(msg, keys.Subscribe):
		s.toggleSubscribe()
	case key.Matches(msg, keys.Create):
		s.promptCreate()
	case key.Matches(msg, keys.Rename):
		s.promptRename()
	case key.Matches(msg, keys.EditDesc):
		s.promptDescribe()
	case key.Matches(msg, keys.Delete):
		s.confirmDelete()
	}
	return nil
}

func (s *topicsScreen) toggleSubscribe() {
	topic := s.selected()
	if topic == nil {
		return
	}
	err := s.m.db.Update(context.Background(), func(tx *store.Tx) error {
		return tx.SetSubscribed(topic.Key, !topic.Subscribed)
	})
	if err != nil {
		s.m.openDialog(&errorDialog{title: "Subscribe failed", text: err.Error()})
		return
	}
	s.m.refreshScreen(s)
}

func (s *topicsScreen) promptCreate() {
	s.m.openDialog(newPromptDialog("New topic", "", func(m *Model, value string) tea.Cmd {
		if value == "" {
			return nil
		}
		err := m.db.Update(context.Background(), func(tx *store.Tx) error {
			_, err := tx.CreateTopic(value)
			return err
		})
		switch {
		case errors.Is(err, store.ErrConstraint):
			m.openDialog(&errorDialog{title: "Create failed", text: fmt.Sprintf("a topic named %q already exists", value)})
		case err != nil:
			m.openDialog(&errorDialog{title: "Create failed", text: err.Error()})
		default:
			m.refreshScreen(s)
		}
		return nil
	}))
}

func (s *topicsScreen) promptRename() {
	topic := s.selected()
	if topic == nil {
		return
	}
	topicKey := topic.Key
	s.m.openDialog(newPromptDialog("Rename topic", topic.Name, func(m *Model, value string) tea.Cmd {
		if value == "" {
			return nil
		}
		err := m.db.Update(context.Background(), func(tx *store.Tx) error {
			return tx.RenameTopic(topicKey, value)
		})
		switch {
		case errors.Is(err, store.ErrConstraint):
			m.openDialog(&errorDialog{title: "Rename failed", text: fmt.Sprintf("a topic named %q already exists", value)})
		case err != nil:
			m.openDialog(&errorDialog{title: "Rename failed", text: err.Error()})
		default:
			m.refreshScreen(s)
		}
		return nil
	}))
}

func (s *topicsScreen) promptDescribe() {
	topic := s.selected()
	if topic == nil {
		return
	}
	topicKey := topic.Key
	s.m.openDialog(newPromptDialog("Describe topic", topic.Description, func(m *Model, value string) tea.Cmd {
		err := m.db.Update(context.Background(), func(tx *store.Tx) error {
			return tx.SetDescription(topicKey, value)
		})
		if err != nil {
			m.openDialog(&errorDialog{title: "Describe failed", text: err.Error()})
			return nil
		}
		m.refreshScreen(s)
		return nil
	}))
}

func (s *topicsScreen) confirmDelete() {
	topic := s.selected()
	if topic == nil {
		return
	}
	topicKey := topic.Key
	text := fmt.Sprintf("Delete topic %q? Its messages stay filed under their other topics.", topic.Name)
	s.m.openDialog(&confirmDialog{title: "Delete topic", text: text, accept: func(m *Model) tea.Cmd {
		err := m.db.Update(context.Background(), func(tx *store.Tx) error {
			return tx.DeleteTopic(topicKey)
		})
		if err != nil {
			m.openDialog(&errorDialog{title: "Delete failed", text: err.Error()})
			return nil
		}
		m.refreshScreen(s)
		return nil
	}})
}

func (s *topicsScreen) view(width, height int) string {
	theme := s.m.theme

	rows := height
	if s.search.active {
		rows--
	}

	var b strings.Builder
	if len(s.topics) == 0 {
		b.WriteString(theme.Dim.Render(" no topics yet"))
	}

	start, end := s.list.window(len(s.topics), rows)
	for i := start; i < end; i++ {
		topic := s.topics[i]

		marker := " "
		if topic.Subscribed {
			marker = "●"
		}
		name := topic.Name
		line := fmt.Sprintf(" %s %-40s %5d  %s", marker, truncate(name, 40), s.counts[topic.Key], topic.Updated.Format("2006-01-02 15:04"))

		style := theme.Normal
		switch {
		case i == s.list.cursor:
			style = theme.Selected
		case s.search.match(name):
			style = theme.Match
		case !topic.Subscribed:
			style = theme.Dim
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

func (s *topicsScreen) searching() bool { return s.search.active }

func (s *topicsScreen) helpKeys() []key.Binding {
	k := s.m.keys
	return []key.Binding{k.Select, k.Subscribe, k.Create, k.Search, k.CycleSort, k.Subscribed, k.Delete, k.Help}
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
