package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/mqtty/mqtty/internal/commands"
	"github.com/mqtty/mqtty/internal/core/config"
	"github.com/mqtty/mqtty/pkg/logbuf"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

func build() string {
	short := commit
	if len(commit) > 7 {
		short = commit[:7]
	}

	return fmt.Sprintf("%s (%s) %s", version, short, date)
}

func main() {
	flags := &commands.Flags{}

	var deferredLogs *logbuf.Writer

	app := &cli.Command{
		Name:      "mqtty",
		Usage:     "Terminal client for browsing MQTT topics",
		UsageText: "mqtty [options] [server]",
		Description: `mqtty subscribes to an MQTT broker, files every message it sees into
a local database, and lets you browse the topics and their history in
a terminal interface. The optional server argument picks one of the
servers from the config file; the first one is used otherwise.`,
		Version: build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("MQTTY_CONFIG"),
				Value:       config.DefaultConfigPath(),
				Destination: &flags.ConfigPath,
			},
			&cli.BoolFlag{
				Name:        "verbose",
				Aliases:     []string{"v"},
				Usage:       "log at info level",
				Destination: &flags.Verbose,
			},
			&cli.BoolFlag{
				Name:        "debug",
				Aliases:     []string{"d"},
				Usage:       "log at debug level",
				Destination: &flags.Debug,
			},
			&cli.BoolFlag{
				Name:        "no-sync",
				Usage:       "start without connecting to the broker",
				Destination: &flags.NoSync,
			},
			&cli.StringFlag{
				Name:        "open",
				Usage:       "open a topic url (mqtt://name), in the running instance if one exists",
				Destination: &flags.OpenURL,
			},
			&cli.BoolFlag{
				Name:        "print-keymap",
				Usage:       "print the effective keybindings and exit",
				Destination: &flags.PrintKeymap,
			},
			&cli.BoolFlag{
				Name:        "print-palette",
				Usage:       "print the configured color palette and exit",
				Destination: &flags.PrintPalette,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			if c.Args().Len() > 1 {
				return ctx, fmt.Errorf("expected at most one server argument, got %d", c.Args().Len())
			}
			flags.Server = c.Args().First()

			cfg, err := config.Load(flags.ConfigPath, flags.Server)
			if err != nil {
				return ctx, err
			}
			flags.Config = cfg

			// One-shot flags print to stdout and never own the
			// terminal, so they log straight to stderr.
			isTUI := !flags.PrintKeymap && !flags.PrintPalette
			var deferred io.Writer
			if isTUI {
				deferredLogs = &logbuf.Writer{}
				deferred = deferredLogs
			}
			return ctx, setupLogger(flags.LogLevel(), cfg.LogPath(), deferred)
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			printCmd := commands.NewPrintCmd(flags, os.Stdout)
			switch {
			case flags.PrintKeymap:
				return printCmd.Keymap(ctx, c)
			case flags.PrintPalette:
				return printCmd.Palette(ctx, c)
			}
			return commands.NewTuiCmd(flags).Run(ctx, c)
		},
	}

	exitCode := 0
	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		exitCode = 1
	}

	// Flush buffered logs to the console after the TUI releases the
	// terminal.
	if deferredLogs != nil && deferredLogs.Len() > 0 {
		if err := deferredLogs.Flush(zerolog.ConsoleWriter{Out: os.Stderr}); err != nil {
			fmt.Fprintf(os.Stderr, "failed to flush logs: %v\n", err)
		}
	}

	os.Exit(exitCode)
}

func setupLogger(level string, logFile string, deferred io.Writer) error {
	parsedLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %w", err)
	}

	var output io.Writer = zerolog.ConsoleWriter{Out: os.Stderr}

	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}

		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}

		if deferred != nil {
			output = io.MultiWriter(file, deferred)
		} else {
			output = io.MultiWriter(zerolog.ConsoleWriter{Out: os.Stderr}, file)
		}
	} else if deferred != nil {
		output = deferred
	}

	log.Logger = log.Output(output).Level(parsedLevel)

	return nil
}
