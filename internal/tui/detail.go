package tui

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mqtty/mqtty/internal/core/feed"
	"github.com/mqtty/mqtty/internal/store"
)

// detailScreen shows one message's full payload plus the topics it is
// filed under. JSON payloads are pretty printed.
type detailScreen struct {
	m          *Model
	messageKey int64

	message  feed.Message
	topics   []string
	linkKeys map[int64]bool
	lines    []string
	scroll   int
}

func newDetailScreen(m *Model, messageKey int64) *detailScreen {
	return &detailScreen{m: m, messageKey: messageKey}
}

func (s *detailScreen) title() string {
	return fmt.Sprintf("Message #%d", s.messageKey)
}

func (s *detailScreen) crumb() string {
	return fmt.Sprintf("#%d", s.messageKey)
}

// Payloads are immutable, but the filing can change when the message
// is linked into another topic, so any topic it is filed under counts.
func (s *detailScreen) interested(ev feed.Event) bool {
	key := ev.EventTopicKey()
	return key == s.message.TopicKey || s.linkKeys[key]
}

func (s *detailScreen) refresh() error {
	var message feed.Message
	var topics []string
	linkKeys := map[int64]bool{}

	err := s.m.db.View(context.Background(), func(tx *store.Tx) error {
		var err error
		message, err = tx.MessageByKey(s.messageKey)
		if err != nil {
			return err
		}
		links, err := tx.LinksByMessage(s.messageKey)
		if err != nil {
			return err
		}
		for _, link := range links {
			linkKeys[link.TopicKey] = true
			topic, err := tx.TopicByKey(link.TopicKey)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					continue
				}
				return err
			}
			topics = append(topics, topic.Name)
		}
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		s.m.pop()
		return nil
	}
	if err != nil {
		return err
	}

	s.message = message
	s.topics = topics
	s.linkKeys = linkKeys
	s.lines = renderPayload(message.Text)
	return nil
}

// renderPayload indents JSON payloads and splits everything into
// display lines.
func renderPayload(text string) []string {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		var buf bytes.Buffer
		if err := json.Indent(&buf, []byte(trimmed), "", "  "); err == nil {
			text = buf.String()
		}
	}
	return strings.Split(text, "\n")
}

func (s *detailScreen) handleKey(msg tea.KeyMsg) tea.Cmd {
	keys := s.m.keys
	page := s.m.pageSize()
	switch {
	case key.Matches(msg, keys.Up):
		s.scrollBy(-1)
	case key.Matches(msg, keys.Down):
		s.scrollBy(1)
	case key.Matches(msg, keys.PageUp):
		s.scrollBy(-page)
	case key.Matches(msg, keys.PageDown):
		s.scrollBy(page)
	case key.Matches(msg, keys.Top):
		s.scroll = 0
	case key.Matches(msg, keys.Bottom):
		s.scroll = len(s.lines)
		s.scrollBy(0)
	}
	return nil
}

func (s *detailScreen) scrollBy(delta int) {
	s.scroll += delta
	if s.scroll > len(s.lines)-1 {
		s.scroll = len(s.lines) - 1
	}
	if s.scroll < 0 {
		s.scroll = 0
	}
}

func (s *detailScreen) view(width, height int) string {
	theme := s.m.theme

	header := []string{
		theme.Dim.Render(fmt.Sprintf(" received %s", s.message.Updated.Format("2006-01-02 15:04:05"))),
		theme.Dim.Render(fmt.Sprintf(" topics   %s", strings.Join(s.topics, ", "))),
		"",
	}

	rows := height - len(header)
	if rows < 1 {
		rows = 1
	}

	end := s.scroll + rows
	if end > len(s.lines) {
		end = len(s.lines)
	}
	start := s.scroll
	if start > end {
		start = end
	}

	var b strings.Builder
	for _, line := range header {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	for _, line := range s.lines[start:end] {
		b.WriteString(theme.Normal.MaxWidth(width).Render(" " + line))
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func (s *detailScreen) searching() bool { return false }

func (s *detailScreen) helpKeys() []key.Binding {
	k := s.m.keys
	return []key.Binding{k.Up, k.Down, k.PageDown, k.Back, k.Help}
}
