package tui

// statusBar collects warnings for the header line. Repeats of a
// warning already on display are dropped so a flapping connection does
// not stack the same text.
type statusBar struct {
	warnings []string
	seen     map[string]bool
}

func newStatusBar() *statusBar {
	return &statusBar{seen: map[string]bool{}}
}

// Warn records a warning unless it is already showing.
func (s *statusBar) Warn(text string) {
	if s.seen[text] {
		return
	}
	s.seen[text] = true
	s.warnings = append(s.warnings, text)
}

// Current returns the most recent warning, empty when clear.
func (s *statusBar) Current() string {
	if len(s.warnings) == 0 {
		return ""
	}
	return s.warnings[len(s.warnings)-1]
}

// Clear drops all warnings, typically on user acknowledgement.
func (s *statusBar) Clear() {
	s.warnings = nil
	s.seen = map[string]bool{}
}
