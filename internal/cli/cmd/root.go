// Package cmd provides Cobra CLI commands for tabdeck.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/avierx/tabdeck/internal/config"
	"github.com/avierx/tabdeck/internal/domain/build"
	"github.com/avierx/tabdeck/internal/logging"
)

var (
	buildInfo build.Info

	// baseCtx carries the logger built from the loaded config. Commands
	// that skip initialization fall back to a bare background context.
	baseCtx = context.Background()

	rootCmd = &cobra.Command{
		Use:   "tabdeck",
		Short: "Native messaging host for the tabdeck browser extension",
		Long: `Tabdeck - pinned tab slots, frecency ranking, and named sessions.

The extension delegates all state to this host over native messaging:
  - Slot list: up to 4 pinned tabs, addressable by slot number
  - Frecency: visit-ranked view of the open tabs
  - Sessions: up to 4 named snapshots of the slot list

The browser launches 'tabdeck host' itself; the other subcommands inspect
the same state database from the terminal.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			switch cmd.Name() {
			case "help", "completion", "version", "schema":
				return nil
			}

			if err := config.Init(); err != nil {
				return fmt.Errorf("initialize config: %w", err)
			}
			cfg := config.Get()
			logger := logging.NewFromConfigValues(cfg.Logging.Level, cfg.Logging.Format)
			baseCtx = logging.WithContext(context.Background(), logger)
			return nil
		},
	}
)

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// SetBuildInfo sets the build information (called from main.go before Execute).
func SetBuildInfo(info build.Info) {
	buildInfo = info
}

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("tabdeck %s\n", buildInfo.Version)
			fmt.Printf("commit: %s\n", buildInfo.Commit)
			fmt.Printf("built: %s\n", buildInfo.BuildDate)
			fmt.Printf("go: %s\n", buildInfo.GoVersion)
		},
	})
}
