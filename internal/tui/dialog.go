package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// dialog is a modal layer drawn over the active screen. While one is
// open it owns all key input.
type dialog interface {
	handleKey(m *Model, msg tea.KeyMsg) tea.Cmd
	render(theme Theme) string
}

// errorDialog shows a message until dismissed.
type errorDialog struct {
	title string
	text  string
}

func (d *errorDialog) handleKey(m *Model, msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "enter", "esc", "q":
		m.status.Clear()
		m.closeDialog()
	}
	return nil
}

func (d *errorDialog) render(theme Theme) string {
	body := lipgloss.JoinVertical(lipgloss.Left,
		theme.DlgTitle.Render(d.title),
		"",
		theme.Normal.Render(d.text),
		theme.Help.Render("enter to dismiss"),
	)
	return theme.Dialog.Render(body)
}

// confirmDialog asks a yes/no question and runs accept on yes.
type confirmDialog struct {
	title    string
	text     string
	selected bool // true when "Yes" is highlighted
	accept   func(m *Model) tea.Cmd
}

func (d *confirmDialog) handleKey(m *Model, msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "left", "right", "h", "l", "tab":
		d.selected = !d.selected
	case "y":
		m.closeDialog()
		return d.accept(m)
	case "enter":
		m.closeDialog()
		if d.selected {
			return d.accept(m)
		}
	case "esc", "n", "q":
		m.closeDialog()
	}
	return nil
}

func (d *confirmDialog) render(theme Theme) string {
	yes, no := theme.Button, theme.ButtonOn
	if d.selected {
		yes, no = theme.ButtonOn, theme.Button
	}
	buttons := lipgloss.JoinHorizontal(lipgloss.Left, yes.Render("Yes"), "  ", no.Render("No"))
	body := lipgloss.JoinVertical(lipgloss.Left,
		theme.DlgTitle.Render(d.title),
		"",
		theme.Normal.Render(d.text),
		"",
		buttons,
	)
	return theme.Dialog.Render(body)
}

// promptDialog collects one line of text and runs submit on enter.
type promptDialog struct {
	title  string
	input  textinput.Model
	submit func(m *Model, value string) tea.Cmd
}

func newPromptDialog(title, initial string, submit func(m *Model, value string) tea.Cmd) *promptDialog {
	input := textinput.New()
	input.CharLimit = 256
	input.SetValue(initial)
	input.CursorEnd()
	input.Focus()
	return &promptDialog{title: title, input: input, submit: submit}
}

func (d *promptDialog) handleKey(m *Model, msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "enter":
		value := strings.TrimSpace(d.input.Value())
		m.closeDialog()
		return d.submit(m, value)
	case "esc":
		m.closeDialog()
		return nil
	}
	var cmd tea.Cmd
	d.input, cmd = d.input.Update(msg)
	return cmd
}

func (d *promptDialog) render(theme Theme) string {
	body := lipgloss.JoinVertical(lipgloss.Left,
		theme.DlgTitle.Render(d.title),
		"",
		d.input.View(),
		theme.Help.Render("enter to accept, esc to cancel"),
	)
	return theme.Dialog.Render(body)
}

// helpDialog lists the active keymap.
type helpDialog struct {
	keymap *KeyMap
}

func (d *helpDialog) handleKey(m *Model, msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "enter", "esc", "q", "?":
		m.closeDialog()
	}
	return nil
}

func (d *helpDialog) render(theme Theme) string {
	body := lipgloss.JoinVertical(lipgloss.Left,
		theme.DlgTitle.Render("Keys"),
		"",
		theme.Normal.Render(strings.TrimRight(d.keymap.Describe(), "\n")),
	)
	return theme.Dialog.Render(body)
}

// welcomeDialog greets a fresh database with no subscriptions yet.
type welcomeDialog struct{}

func (d *welcomeDialog) handleKey(m *Model, msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "enter", "esc", "q":
		m.closeDialog()
	}
	return nil
}

func (d *welcomeDialog) render(theme Theme) string {
	body := lipgloss.JoinVertical(lipgloss.Left,
		theme.DlgTitle.Render("Welcome to mqtty"),
		"",
		theme.Normal.Render("No subscribed topics yet. Topics appear as the"),
		theme.Normal.Render("broker publishes; press 's' on one to subscribe,"),
		theme.Normal.Render("or list subscribed-topics in your config file."),
		theme.Help.Render("enter to continue"),
	)
	return theme.Dialog.Render(body)
}
