package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/avierx/tabdeck/internal/app/bridge"
	"github.com/avierx/tabdeck/internal/app/host"
	"github.com/avierx/tabdeck/internal/app/messaging"
	"github.com/avierx/tabdeck/internal/app/nativemsg"
	"github.com/avierx/tabdeck/internal/application/usecase"
	"github.com/avierx/tabdeck/internal/config"
	"github.com/avierx/tabdeck/internal/infrastructure/persistence/sqlite"
	"github.com/avierx/tabdeck/internal/logging"
)

var hostCmd = &cobra.Command{
	Use:   "host",
	Short: "Run the native messaging host",
	Long: `Serve the extension over native messaging on stdin/stdout.

The browser launches this command itself when the extension connects;
running it from a terminal is only useful for debugging with hand-framed
messages. All logs go to stderr because stdout carries the wire protocol.`,
	RunE: runHost,
}

func init() {
	rootCmd.AddCommand(hostCmd)
}

func runHost(_ *cobra.Command, _ []string) error {
	cfg := config.Get()
	ctx := baseCtx
	log := logging.FromContext(ctx)

	log.Info().
		Str("version", buildInfo.Version).
		Str("database", cfg.Database.Path).
		Msg("starting tabdeck host")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The database opens lazily: most host launches never receive a
	// message that touches state.
	lazyDB := sqlite.NewLazyDB(cfg.Database.Path)
	defer func() {
		if closeErr := lazyDB.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close database")
		}
	}()
	repo := sqlite.NewLazySnapshotRepository(lazyDB)

	codec := nativemsg.NewCodec(os.Stdin, os.Stdout, cfg.Host.MaxMessageBytes)
	b := bridge.New(codec, cfg.Host.BrowserCallTimeout)

	engine := usecase.NewCoordinator(repo, b, b, b.Notify)
	engine.Tune(cfg.Engine.ReopenLoadTimeout, cfg.Engine.UndoWindow)

	// Engine tunables follow config edits without a restart.
	if err := config.Watch(); err != nil {
		log.Warn().Err(err).Msg("config watching unavailable")
	} else {
		config.OnConfigChange(func(updated *config.Config) {
			engine.Tune(updated.Engine.ReopenLoadTimeout, updated.Engine.UndoWindow)
			log.Info().Msg("configuration reloaded")
		})
	}

	h := host.New(codec, b, messaging.NewHandler(engine))

	errCh := make(chan error, 1)
	go func() { errCh <- h.Run(ctx) }()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("host: %w", err)
		}
		return nil
	case <-ctx.Done():
		// The read loop is blocked on stdin; exiting the process is the
		// only way to release it.
		log.Info().Msg("signal received, shutting down")
		return nil
	}
}
