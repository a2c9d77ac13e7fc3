package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
)

// KeyMap holds every binding the interface responds to. Defaults can
// be overridden per command from the config file.
type KeyMap struct {
	Up         key.Binding
	Down       key.Binding
	PageUp     key.Binding
	PageDown   key.Binding
	Top        key.Binding
	Bottom     key.Binding
	Select     key.Binding
	Back       key.Binding
	Quit       key.Binding
	Search     key.Binding
	NextMatch  key.Binding
	CycleSort  key.Binding
	Reverse    key.Binding
	Subscribed key.Binding
	Subscribe  key.Binding
	Create     key.Binding
	Rename     key.Binding
	EditDesc   key.Binding
	Move       key.Binding
	Copy       key.Binding
	Unlink     key.Binding
	Delete     key.Binding
	Hold       key.Binding
	Help       key.Binding
}

// DefaultKeyMap returns the stock bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up:         key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:       key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		PageUp:     key.NewBinding(key.WithKeys("pgup", "ctrl+b"), key.WithHelp("pgup", "page up")),
		PageDown:   key.NewBinding(key.WithKeys("pgdown", "ctrl+f"), key.WithHelp("pgdn", "page down")),
		Top:        key.NewBinding(key.WithKeys("home", "g"), key.WithHelp("g", "top")),
		Bottom:     key.NewBinding(key.WithKeys("end", "G"), key.WithHelp("G", "bottom")),
		Select:     key.NewBinding(key.WithKeys("enter", "l"), key.WithHelp("enter", "open")),
		Back:       key.NewBinding(key.WithKeys("esc", "h"), key.WithHelp("esc", "back")),
		Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Search:     key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		NextMatch:  key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next match")),
		CycleSort:  key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "cycle sort")),
		Reverse:    key.NewBinding(key.WithKeys("O"), key.WithHelp("O", "reverse sort")),
		Subscribed: key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "subscribed only")),
		Subscribe:  key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "toggle subscribe")),
		Create:     key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "new topic")),
		Rename:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rename")),
		EditDesc:   key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit description")),
		Move:       key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "move to topic")),
		Copy:       key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "copy to topic")),
		Unlink:     key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "remove from topic")),
		Delete:     key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		Hold:       key.NewBinding(key.WithKeys("H"), key.WithHelp("H", "hold updates")),
		Help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	}
}

// commands maps config command names onto keymap fields.
func (k *KeyMap) commands() map[string]*key.Binding {
	return map[string]*key.Binding{
		"up":              &k.Up,
		"down":            &k.Down,
		"page-up":         &k.PageUp,
		"page-down":       &k.PageDown,
		"top":             &k.Top,
		"bottom":          &k.Bottom,
		"select":          &k.Select,
		"back":            &k.Back,
		"quit":            &k.Quit,
		"search":          &k.Search,
		"next-match":      &k.NextMatch,
		"cycle-sort":      &k.CycleSort,
		"reverse-sort":    &k.Reverse,
		"subscribed-only": &k.Subscribed,
		"subscribe":       &k.Subscribe,
		"create":          &k.Create,
		"rename":          &k.Rename,
		"describe":        &k.EditDesc,
		"move":            &k.Move,
		"copy":            &k.Copy,
		"unlink":          &k.Unlink,
		"delete":          &k.Delete,
		"hold":            &k.Hold,
		"help":            &k.Help,
	}
}

// Apply overrides bindings from config entries of the form
// command: "key1,key2". Unknown command names are an error so typos in
// the config surface at startup instead of silently binding nothing.
func (k *KeyMap) Apply(overrides map[string]string) error {
	commands := k.commands()
	for command, keys := range overrides {
		binding, ok := commands[command]
		if !ok {
			return fmt.Errorf("unknown keymap command %q", command)
		}
		parts := strings.Split(keys, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		binding.SetKeys(parts...)
		binding.SetHelp(parts[0], binding.Help().Desc)
	}
	return nil
}

// Describe renders the active bindings for the --print-keymap flag.
func (k *KeyMap) Describe() string {
	var b strings.Builder
	for _, entry := range []struct {
		command string
		binding key.Binding
	}{
		{"up", k.Up},
		{"down", k.Down},
		{"page-up", k.PageUp},
		{"page-down", k.PageDown},
		{"top", k.Top},
		{"bottom", k.Bottom},
		{"select", k.Select},
		{"back", k.Back},
		{"quit", k.Quit},
		{"search", k.Search},
		{"next-match", k.NextMatch},
		{"cycle-sort", k.CycleSort},
		{"reverse-sort", k.Reverse},
		{"subscribed-only", k.Subscribed},
		{"subscribe", k.Subscribe},
		{"create", k.Create},
		{"rename", k.Rename},
		{"describe", k.EditDesc},
		{"move", k.Move},
		{"copy", k.Copy},
		{"unlink", k.Unlink},
		{"delete", k.Delete},
		{"hold", k.Hold},
		{"help", k.Help},
	} {
		fmt.Fprintf(&b, "%-16s %s\n", entry.command, strings.Join(entry.binding.Keys(), ", "))
	}
	return b.String()
}
