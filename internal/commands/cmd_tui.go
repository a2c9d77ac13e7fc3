package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/mqtty/mqtty/internal/control"
	"github.com/mqtty/mqtty/internal/core/bus"
	"github.com/mqtty/mqtty/internal/core/ingest"
	"github.com/mqtty/mqtty/internal/core/stats"
	"github.com/mqtty/mqtty/internal/lockfile"
	"github.com/mqtty/mqtty/internal/notify"
	"github.com/mqtty/mqtty/internal/store"
	"github.com/mqtty/mqtty/internal/tui"
)

type TuiCmd struct {
	flags *Flags
}

// NewTuiCmd creates the default command that runs the full client.
func NewTuiCmd(flags *Flags) *TuiCmd {
	return &TuiCmd{flags: flags}
}

// Run executes the TUI. Used as the root command's default action.
func (cmd *TuiCmd) Run(ctx context.Context, _ *cli.Command) error {
	cfg := cmd.flags.Config
	logger := log.With().Str("server", cfg.Server().Name).Logger()

	// Single instance per server. When another instance already holds
	// the lock, --open is forwarded to it over the control socket.
	lock := lockfile.New(cfg.LockPath())
	if err := lock.TryAcquire(); err != nil {
		if errors.Is(err, lockfile.ErrHeld) {
			if cmd.flags.OpenURL != "" {
				return control.Send(cfg.SocketPath(), "open "+cmd.flags.OpenURL)
			}
			return fmt.Errorf("mqtty is already running for server %s", cfg.Server().Name)
		}
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn().Err(err).Msg("release lock file")
		}
	}()

	db, err := store.Open(cfg.DatabasePath(), store.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	cache := stats.New()
	db.OnTopicChange(cache.Invalidate)

	if err := seedSubscriptions(ctx, db, cfg.SubscribedTopics); err != nil {
		return fmt.Errorf("seed subscribed topics: %w", err)
	}

	ctrl, err := control.NewServer(cfg.SocketPath(), logger)
	if err != nil {
		return fmt.Errorf("start control socket: %w", err)
	}
	defer func() {
		if err := ctrl.Close(); err != nil {
			logger.Warn().Err(err).Msg("close control socket")
		}
	}()

	notifier := notify.NewNotifier()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var worker *ingest.Worker
	if !cmd.flags.NoSync {
		client := bus.NewMQTTClient(cfg.Server().Host, clientID(), logger)
		worker = ingest.NewWorker(db, client, notifier, logger)
		go worker.Run(runCtx)
	}

	m, err := tui.New(tui.Options{
		DB:       db,
		Config:   cfg,
		Stats:    cache,
		Notifier: notifier,
		Worker:   worker,
		Commands: ctrl.Commands(),
		Log:      logger,
		OpenURL:  cmd.flags.OpenURL,
	})
	if err != nil {
		return err
	}

	progOpts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.HandleMouse {
		progOpts = append(progOpts, tea.WithMouseCellMotion())
	}
	if _, err := tea.NewProgram(m, progOpts...).Run(); err != nil {
		return fmt.Errorf("run tui: %w", err)
	}

	// Stop ingestion before compacting so the vacuum doesn't contend
	// with event writes.
	cancel()
	if err := db.Vacuum(context.Background()); err != nil {
		logger.Warn().Err(err).Msg("vacuum on exit")
	}
	return nil
}

// seedSubscriptions ensures every topic named in the config exists and
// is marked subscribed. Already-present topics keep their messages.
func seedSubscriptions(ctx context.Context, db *store.DB, names []string) error {
	if len(names) == 0 {
		return nil
	}
	return db.Update(ctx, func(tx *store.Tx) error {
		for _, name := range names {
			topic, err := tx.TopicByName(name)
			if errors.Is(err, store.ErrNotFound) {
				topic, err = tx.CreateTopic(name)
			}
			if err != nil {
				return err
			}
			if !topic.Subscribed {
				if err := tx.SetSubscribed(topic.Key, true); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func clientID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("mqtty-%s-%d", host, os.Getpid())
}
