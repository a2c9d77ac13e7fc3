// Package commands wires the CLI surface onto the application.
package commands

import (
	"github.com/mqtty/mqtty/internal/core/config"
)

// Flags holds global flag values plus state the Before hook loads for
// the commands.
type Flags struct {
	ConfigPath   string
	Server       string
	Verbose      bool
	Debug        bool
	NoSync       bool
	OpenURL      string
	PrintKeymap  bool
	PrintPalette bool

	// Config is loaded in the Before hook.
	Config *config.Config
}

// LogLevel maps the verbosity flags onto a zerolog level name. Errors
// always log; -v adds info, -d everything.
func (f *Flags) LogLevel() string {
	switch {
	case f.Debug:
		return "debug"
	case f.Verbose:
		return "info"
	default:
		return "warn"
	}
}
