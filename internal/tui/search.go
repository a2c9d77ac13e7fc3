package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
)

// searchState composes onto a list screen: while active, keystrokes go
// to the input; once confirmed, the query highlights matches and
// next-match jumps between them.
type searchState struct {
	input  textinput.Model
	active bool
	query  string
}

func newSearchState() searchState {
	input := textinput.New()
	input.Prompt = "/"
	input.CharLimit = 128
	return searchState{input: input}
}

func (s *searchState) start() {
	s.active = true
	s.input.SetValue(s.query)
	s.input.Focus()
}

func (s *searchState) cancel() {
	s.active = false
	s.input.Blur()
}

func (s *searchState) confirm() {
	s.query = s.input.Value()
	s.active = false
	s.input.Blur()
}

func (s *searchState) clear() {
	s.query = ""
	s.input.SetValue("")
	s.cancel()
}

// match reports whether the confirmed query matches the label,
// case-insensitively. An empty query matches nothing.
func (s *searchState) match(label string) bool {
	if s.query == "" {
		return false
	}
	return strings.Contains(strings.ToLower(label), strings.ToLower(s.query))
}

// nextMatch finds the first matching label after from, wrapping around
// to the start of the list. Returns false when nothing matches.
func nextMatch(labels []string, from int, query string) (int, bool) {
	if query == "" || len(labels) == 0 {
		return 0, false
	}
	query = strings.ToLower(query)
	for i := 1; i <= len(labels); i++ {
		idx := (from + i) % len(labels)
		if strings.Contains(strings.ToLower(labels[idx]), query) {
			return idx, true
		}
	}
	return 0, false
}
