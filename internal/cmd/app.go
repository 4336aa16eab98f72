package cmd

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/biobot-lab/biobot/internal/config"
	"github.com/biobot-lab/biobot/internal/errors"
	"github.com/biobot-lab/biobot/internal/event"
	"github.com/biobot-lab/biobot/internal/idgen"
	"github.com/biobot-lab/biobot/internal/logging"
	"github.com/biobot-lab/biobot/internal/mailbox"
	"github.com/biobot-lab/biobot/internal/metrics"
	"github.com/biobot-lab/biobot/internal/registry"
	"github.com/biobot-lab/biobot/internal/round"
	"github.com/biobot-lab/biobot/internal/tui/spinner"
)

// clock drives identifier generation; tests replace it.
var clock idgen.Clock = idgen.SystemClock{}

// app is the wiring shared by every command for one invocation.
type app struct {
	cfg      *config.Config
	logger   *logging.Logger
	bus      *event.Bus
	metrics  *metrics.Recorder
	registry registry.Registry
	mailbox  *mailbox.Mailbox
	ctrl     *round.Controller
	spinner  bool
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, errors.NewValidationError("invalid configuration").WithCause(err)
	}

	a := &app{
		cfg:    cfg,
		logger: logging.NopLogger(),
		bus:    event.NewBus(),
	}

	if cfg.Logging.Enabled {
		logger, err := logging.NewLogger(cfg.StateDir(), logging.Options{
			Level: logging.ParseLevel(cfg.Logging.Level),
			Rotation: logging.RotationConfig{
				MaxSizeMB:  cfg.Logging.MaxSizeMB,
				MaxBackups: cfg.Logging.MaxBackups,
				Compress:   cfg.Logging.Compress,
			},
		})
		if err != nil {
			return nil, err
		}
		a.logger = logger
	}
	a.logger = a.logger.WithCommand(cmd.Name())
	a.bus.SetPanicHandler(func(eventType string, r any, stack []byte) {
		a.logger.Error("event handler panicked",
			"event_type", eventType, "panic", r, "stack", string(stack))
	})

	if cfg.Metrics.Enabled {
		a.metrics = metrics.New()
		textfile := cfg.Resolve(cfg.Metrics.Textfile)
		if err := a.metrics.LoadTextfile(textfile); err != nil {
			a.logger.Warn("previous metrics unreadable; counters restart from zero",
				"path", textfile, "error", err)
		}
		a.metrics.Start(a.bus)
	}

	path := cfg.Registry.File
	if cfg.Registry.Backend == registry.BackendSQLite {
		path = cfg.Registry.SQLiteFile
	}
	a.registry, err = registry.Open(cfg.Registry.Backend, cfg.RootDir(), path)
	if err != nil {
		a.close(cmd.Context())
		return nil, err
	}

	a.mailbox = mailbox.New(openStore(cfg),
		mailbox.WithBus(a.bus),
		mailbox.WithLogger(a.logger),
		mailbox.WithPollInterval(cfg.Wait.PollInterval),
	)

	genOpts := []idgen.Option{idgen.WithClock(clock)}
	if cfg.IDs.UTC {
		genOpts = append(genOpts, idgen.WithLocation(time.UTC))
	}
	a.ctrl = round.New(a.registry, a.mailbox,
		round.WithGenerator(idgen.New(genOpts...)),
		round.WithCollisionPolicy(idgen.Policy(cfg.IDs.CollisionPolicy), cfg.IDs.MaxAttempts),
		round.WithBus(a.bus),
		round.WithLogger(a.logger),
	)

	noSpinner, _ := cmd.Flags().GetBool("no-spinner")
	a.spinner = spinner.Enabled(cmd.ErrOrStderr(), cfg.UI.Spinner && !noSpinner)

	a.logger.Debug("configuration loaded",
		"root", cfg.RootDir(),
		"registry", a.registry.Location(),
		"mailbox", a.mailbox.Store().Location())
	return a, nil
}

func openStore(cfg *config.Config) mailbox.Store {
	if cfg.Mailbox.Backend == "afs" {
		return mailbox.NewAFSStore(nil, cfg.Mailbox.AFSURL)
	}
	return mailbox.NewFileStore(cfg.Resolve(cfg.Mailbox.Dir))
}

// run executes fn behind the spinner when one is enabled.
func (a *app) run(ctx context.Context, cmd *cobra.Command, label string, fn func(context.Context) error) error {
	return spinner.Run(ctx, cmd.ErrOrStderr(), a.spinner, label, fn)
}

// close flushes metrics and releases resources. Failures here are logged
// and never change the command's outcome.
func (a *app) close(ctx context.Context) {
	if a.metrics != nil {
		a.metrics.Stop()
		if a.registry != nil {
			a.writeMetrics(ctx)
		}
	}
	if a.registry != nil {
		if err := a.registry.Close(); err != nil {
			a.logger.Warn("failed to close registry", "error", err)
		}
	}
	_ = a.logger.Close()
}

func (a *app) writeMetrics(ctx context.Context) {
	if n, err := a.registry.Len(ctx); err == nil {
		a.metrics.SetExperiments(n)
	}
	if a.mailbox != nil {
		for _, ch := range mailbox.Channels() {
			if names, err := a.mailbox.Store().List(ctx, ch); err == nil {
				a.metrics.SetMailboxMessages(string(ch), len(names))
			}
		}
	}
	path := a.cfg.Resolve(a.cfg.Metrics.Textfile)
	if err := a.metrics.WriteTextfile(path); err != nil {
		a.logger.Warn("failed to write metrics", "path", path, "error", err)
	}
}

// readPayload returns the contents of the --payload file, or stdin for "-".
// An unset flag yields nil.
func readPayload(cmd *cobra.Command) ([]byte, error) {
	path, _ := cmd.Flags().GetString("payload")
	if path == "" {
		return nil, nil
	}
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, errors.NewValidationError("cannot read payload").WithField("payload").WithValue(path).WithCause(err)
	}
	return data, nil
}
