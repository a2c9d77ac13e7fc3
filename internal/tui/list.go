package tui

// listState tracks the cursor and scroll window for a flat list.
type listState struct {
	cursor int
	offset int
}

func (l *listState) clamp(n int) {
	if l.cursor >= n {
		l.cursor = n - 1
	}
	if l.cursor < 0 {
		l.cursor = 0
	}
	if l.offset > l.cursor {
		l.offset = l.cursor
	}
	if l.offset < 0 {
		l.offset = 0
	}
}

func (l *listState) moveUp(n int) {
	l.cursor--
	l.clamp(n)
}

func (l *listState) moveDown(n int) {
	l.cursor++
	l.clamp(n)
}

func (l *listState) pageUp(n, page int) {
	l.cursor -= page
	l.clamp(n)
}

func (l *listState) pageDown(n, page int) {
	l.cursor += page
	l.clamp(n)
}

func (l *listState) top() {
	l.cursor = 0
	l.offset = 0
}

func (l *listState) bottom(n int) {
	l.cursor = n - 1
	l.clamp(n)
}

// window returns the half-open row range to render so that the cursor
// stays in view.
func (l *listState) window(n, height int) (int, int) {
	if height < 1 {
		height = 1
	}
	if l.cursor < l.offset {
		l.offset = l.cursor
	}
	if l.cursor >= l.offset+height {
		l.offset = l.cursor - height + 1
	}
	end := l.offset + height
	if end > n {
		end = n
	}
	return l.offset, end
}
