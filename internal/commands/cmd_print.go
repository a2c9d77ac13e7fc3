package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/urfave/cli/v3"

	"github.com/mqtty/mqtty/internal/tui"
)

// PrintCmd implements the --print-keymap and --print-palette one-shot
// flags: dump the effective setting and exit.
type PrintCmd struct {
	flags *Flags
	out   io.Writer
}

func NewPrintCmd(flags *Flags, out io.Writer) *PrintCmd {
	return &PrintCmd{flags: flags, out: out}
}

// Keymap prints the active bindings, config overrides applied.
func (cmd *PrintCmd) Keymap(_ context.Context, _ *cli.Command) error {
	keys := tui.DefaultKeyMap()
	if err := keys.Apply(cmd.flags.Config.Keybindings); err != nil {
		return err
	}
	_, err := fmt.Fprint(cmd.out, keys.Describe())
	return err
}

// Palette prints the configured palette's entries.
func (cmd *PrintCmd) Palette(_ context.Context, _ *cli.Command) error {
	palette, ok := tui.PaletteByName(cmd.flags.Config.Palette)
	if !ok {
		return fmt.Errorf("unknown palette %q (have: %v)", cmd.flags.Config.Palette, tui.PaletteNames())
	}
	_, err := fmt.Fprint(cmd.out, palette.Describe())
	return err
}
