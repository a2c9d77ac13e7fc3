package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mqtty/mqtty/internal/core/feed"
)

// screen is one layer of the navigation stack. The model routes keys
// to the top screen and refresh events to every screen that declares
// interest, so a list two layers down is current the moment the user
// pops back to it.
type screen interface {
	// title is the header line text.
	title() string
	// crumb is the short name shown in the breadcrumb trail.
	crumb() string
	// interested reports whether a store event affects this screen.
	interested(ev feed.Event) bool
	// refresh reloads the screen's snapshot from the store.
	refresh() error
	// handleKey processes a key press while this screen is on top.
	handleKey(msg tea.KeyMsg) tea.Cmd
	// searching reports whether a search input owns key presses, which
	// suspends the global bindings.
	searching() bool
	// view renders the screen body at the given size.
	view(width, height int) string
	// helpKeys lists the bindings shown in the footer.
	helpKeys() []key.Binding
}

func sortFromConfig(name string) feed.SortKey {
	switch name {
	case "updated":
		return feed.SortByUpdated
	case "name":
		return feed.SortByName
	default:
		return feed.SortByKey
	}
}
