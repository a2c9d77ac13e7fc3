package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/mqtty/mqtty/internal/control"
	"github.com/mqtty/mqtty/internal/core/config"
	"github.com/mqtty/mqtty/internal/core/feed"
	"github.com/mqtty/mqtty/internal/core/ingest"
	"github.com/mqtty/mqtty/internal/core/stats"
	"github.com/mqtty/mqtty/internal/notify"
	"github.com/mqtty/mqtty/internal/store"
)

// headerLines is the title plus breadcrumb rows; footerLines the help row.
const (
	headerLines = 2
	footerLines = 1
)

// Options wires the model to the rest of the application.
type Options struct {
	DB       *store.DB
	Config   *config.Config
	Stats    *stats.Cache
	Notifier *notify.Notifier
	Worker   *ingest.Worker         // nil when running with --no-sync
	Commands <-chan control.Command // nil when the control socket is disabled
	Log      zerolog.Logger
	OpenURL  string // jump straight to this topic's feed on startup
}

// eventsMsg delivers a drained batch of store events.
type eventsMsg struct {
	events []feed.Event
}

// controlMsg delivers one command read from the control socket.
type controlMsg struct {
	cmd control.Command
}

// tickMsg redraws the header so connection state stays current.
type tickMsg time.Time

// Model is the root Bubble Tea model: a stack of screens, an optional
// modal dialog on top, and the status header.
type Model struct {
	db       *store.DB
	cfg      *config.Config
	stats    *stats.Cache
	notifier *notify.Notifier
	worker   *ingest.Worker
	commands <-chan control.Command
	log      zerolog.Logger

	keys  KeyMap
	theme Theme

	stack  []screen
	dlg    dialog
	status *statusBar

	// While held, refreshes queue up instead of being applied.
	held    bool
	pending *notify.MultiQueue[int64]

	width    int
	height   int
	quitting bool
}

// New builds the model with the root topic list on the stack.
func New(opts Options) (*Model, error) {
	keys := DefaultKeyMap()
	if err := keys.Apply(opts.Config.Keybindings); err != nil {
		return nil, err
	}

	palette, ok := PaletteByName(opts.Config.Palette)
	if !ok {
		return nil, fmt.Errorf("unknown palette %q", opts.Config.Palette)
	}

	m := &Model{
		db:       opts.DB,
		cfg:      opts.Config,
		stats:    opts.Stats,
		notifier: opts.Notifier,
		worker:   opts.Worker,
		commands: opts.Commands,
		log:      opts.Log,
		keys:     keys,
		theme:    NewTheme(palette),
		status:   newStatusBar(),
		pending:  notify.NewMultiQueue[int64](3),
	}

	root := newTopicsScreen(m)
	if err := root.refresh(); err != nil {
		return nil, err
	}
	m.stack = []screen{root}

	if m.subscribedCount() == 0 {
		m.dlg = &welcomeDialog{}
	}
	if opts.OpenURL != "" {
		m.openTopic(opts.OpenURL)
	}
	return m, nil
}

func (m *Model) subscribedCount() int {
	count := 0
	err := m.db.View(context.Background(), func(tx *store.Tx) error {
		topics, err := tx.Topics(store.TopicQuery{SubscribedOnly: true})
		count = len(topics)
		return err
	})
	if err != nil {
		return 0
	}
	return count
}

func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{listenForEvents(m.notifier), tickCmd()}
	if m.commands != nil {
		cmds = append(cmds, listenForCommands(m.commands))
	}
	return tea.Batch(cmds...)
}

// listenForEvents blocks on the notifier's coalesced wakeup and drains
// everything published since the last drain.
func listenForEvents(n *notify.Notifier) tea.Cmd {
	return func() tea.Msg {
		<-n.Wake()
		return eventsMsg{events: n.Drain()}
	}
}

func listenForCommands(ch <-chan control.Command) tea.Cmd {
	return func() tea.Msg {
		cmd, ok := <-ch
		if !ok {
			return nil
		}
		return controlMsg{cmd: cmd}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		return m, tickCmd()

	case eventsMsg:
		m.handleEvents(msg.events)
		return m, listenForEvents(m.notifier)

	case controlMsg:
		m.handleControl(msg.cmd)
		return m, listenForCommands(m.commands)

	case tea.KeyMsg:
		return m, m.handleKey(msg)
	}
	return m, nil
}

// handleEvents applies a drained batch: queue while held, refresh
// interested screens otherwise.
func (m *Model) handleEvents(events []feed.Event) {
	if m.held {
		for _, ev := range events {
			priority := notify.NormalPriority
			if ev.EventTopicKey() == 0 {
				priority = notify.HighPriority
			}
			m.pending.Put(ev.EventTopicKey(), priority)
		}
		return
	}
	m.route(events)
}

func (m *Model) route(events []feed.Event) {
	for _, s := range m.stack {
		for _, ev := range events {
			if s.interested(ev) {
				m.refreshScreen(s)
				break
			}
		}
	}
}

// toggleHold flips the held flag. Releasing a hold replays the queued
// topic refreshes in priority order, deduplicated per topic.
func (m *Model) toggleHold() {
	m.held = !m.held
	if m.held {
		return
	}
	var events []feed.Event
	for m.pending.Len() > 0 {
		topicKey, ok := m.pending.Get()
		if !ok {
			break
		}
		events = append(events, feed.TopicChanged{TopicKey: topicKey})
		m.pending.Complete(topicKey)
	}
	if len(events) > 0 {
		m.route(events)
	}
}

// handleControl runs a command received over the control socket.
func (m *Model) handleControl(cmd control.Command) {
	switch cmd.Name {
	case "open":
		if len(cmd.Args) != 1 {
			m.warn("open: expected exactly one url")
			return
		}
		m.openTopic(cmd.Args[0])
	default:
		m.warn(fmt.Sprintf("unknown control command %q", cmd.Name))
	}
}

// openTopic navigates to the named topic's message list, replacing
// whatever the stack currently shows.
func (m *Model) openTopic(url string) {
	name, err := control.ResolveOpenTarget(url)
	if err != nil {
		m.warn(fmt.Sprintf("open %s: %v", url, err))
		return
	}

	var topic feed.Topic
	err = m.db.View(context.Background(), func(tx *store.Tx) error {
		var err error
		topic, err = tx.TopicByName(name)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		m.warn(fmt.Sprintf("open: no topic named %q", name))
		return
	}
	if err != nil {
		m.warn(fmt.Sprintf("open %s: %v", url, err))
		return
	}

	m.popToRoot()
	m.dlg = nil
	m.push(newMessagesScreen(m, topic))
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if m.dlg != nil {
		return m.dlg.handleKey(m, msg)
	}

	top := m.top()
	if top.searching() {
		return top.handleKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.confirmQuit()
		return nil
	case key.Matches(msg, m.keys.Help):
		m.openDialog(&helpDialog{keymap: &m.keys})
		return nil
	case key.Matches(msg, m.keys.Hold):
		m.toggleHold()
		return nil
	case key.Matches(msg, m.keys.Back):
		if len(m.stack) > 1 {
			m.pop()
		} else {
			m.confirmQuit()
		}
		return nil
	}
	return top.handleKey(msg)
}

func (m *Model) confirmQuit() {
	m.openDialog(&confirmDialog{
		title:    "Quit",
		text:     "Exit mqtty?",
		selected: true,
		accept: func(m *Model) tea.Cmd {
			m.quitting = true
			return tea.Quit
		},
	})
}

// Stack operations.

func (m *Model) top() screen {
	return m.stack[len(m.stack)-1]
}

func (m *Model) push(s screen) {
	m.refreshScreen(s)
	m.stack = append(m.stack, s)
}

func (m *Model) pop() {
	if len(m.stack) <= 1 {
		return
	}
	m.stack = m.stack[:len(m.stack)-1]
	m.refreshScreen(m.top())
}

// popTo pops screens until target is on top. A target not on the
// stack leaves just the root.
func (m *Model) popTo(target screen) {
	for len(m.stack) > 1 && m.top() != target {
		m.stack = m.stack[:len(m.stack)-1]
	}
	m.refreshScreen(m.top())
}

func (m *Model) popToRoot() {
	m.popTo(m.stack[0])
}

// refreshScreen reloads one screen, downgrading failures to a header
// warning so a read error never kills the interface.
func (m *Model) refreshScreen(s screen) {
	if err := s.refresh(); err != nil {
		m.log.Error().Err(err).Msg("screen refresh failed")
		m.warn(fmt.Sprintf("refresh failed: %v", err))
	}
}

func (m *Model) warn(text string) {
	m.status.Warn(text)
}

func (m *Model) openDialog(d dialog) {
	m.dlg = d
}

func (m *Model) closeDialog() {
	m.dlg = nil
}

// pageSize is the row count of one list page at the current height.
func (m *Model) pageSize() int {
	size := m.contentHeight()
	if size < 1 {
		size = 1
	}
	return size
}

func (m *Model) contentHeight() int {
	h := m.height - headerLines - footerLines
	if h < 1 {
		h = 1
	}
	return h
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	width, height := m.width, m.height
	if width == 0 {
		width = 80
	}
	if height == 0 {
		height = 24
	}

	header := m.renderHeader(width)
	contentHeight := height - headerLines - footerLines
	if contentHeight < 1 {
		contentHeight = 1
	}

	var content string
	if m.dlg != nil {
		content = lipgloss.Place(width, contentHeight, lipgloss.Center, lipgloss.Center, m.dlg.render(m.theme))
	} else {
		content = lipgloss.NewStyle().Height(contentHeight).MaxHeight(contentHeight).Render(m.top().view(width, contentHeight))
	}

	footer := m.renderFooter(width)
	return lipgloss.JoinVertical(lipgloss.Left, header, content, footer)
}

func (m *Model) renderHeader(width int) string {
	title := m.theme.Title.Render(m.top().title())

	flags := m.statusFlags()
	gap := width - lipgloss.Width(title) - lipgloss.Width(flags) - 1
	if gap < 1 {
		gap = 1
	}
	line := title + strings.Repeat(" ", gap) + flags

	crumbs := ""
	if m.cfg.Breadcrumbs {
		parts := make([]string, len(m.stack))
		for i, s := range m.stack {
			parts[i] = s.crumb()
		}
		crumbs = m.theme.Crumb.MaxWidth(width).Render(strings.Join(parts, " › "))
	}
	return lipgloss.JoinVertical(lipgloss.Left, line, crumbs)
}

// statusFlags renders the right side of the header: connection state,
// hold state, queued refreshes, and the latest warning.
func (m *Model) statusFlags() string {
	var parts []string

	if warning := m.status.Current(); warning != "" {
		parts = append(parts, m.theme.Warning.Render(truncate(warning, 48)))
	}
	if m.held {
		parts = append(parts, m.theme.Offline.Render("Held"))
	}
	if n := m.pending.Len(); n > 0 {
		parts = append(parts, m.theme.Status.Render(fmt.Sprintf("Sync: %d", n)))
	}

	switch {
	case m.worker == nil || m.worker.Offline():
		parts = append(parts, m.theme.Offline.Render("Offline"))
	case m.worker.State() != ingest.Subscribed:
		parts = append(parts, m.theme.Offline.Render("Connecting"))
	default:
		parts = append(parts, m.theme.Status.Render(m.cfg.Server().Name))
	}

	return strings.Join(parts, "  ") + " "
}

func (m *Model) renderFooter(width int) string {
	var parts []string
	for _, binding := range m.top().helpKeys() {
		help := binding.Help()
		parts = append(parts, fmt.Sprintf("%s %s", help.Key, help.Desc))
	}
	return m.theme.Help.MaxWidth(width).Render(strings.Join(parts, " • "))
}
