package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/avierx/tabdeck/internal/application/usecase"
	"github.com/avierx/tabdeck/internal/config"
	"github.com/avierx/tabdeck/internal/domain/entity"
	"github.com/avierx/tabdeck/internal/infrastructure/persistence/sqlite"
)

var stateJSON bool

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect the persisted engine state",
	Long: `Dump the slot list, sessions, and frecency table from the state
database.

The snapshot is read through the same migration path the host uses, so a
store written by an older version displays in the current schema. Nothing
is written back.`,
	RunE: runState,
}

func init() {
	rootCmd.AddCommand(stateCmd)
	stateCmd.Flags().BoolVar(&stateJSON, "json", false, "output as JSON")
}

// loadStoredSnapshot reads and migrates the persisted state without touching
// the browser. The returned cleanup closes the database.
func loadStoredSnapshot(ctx context.Context) (*entity.StorageSnapshot, func(), error) {
	lazyDB := sqlite.NewLazyDB(config.Get().Database.Path)
	cleanup := func() { _ = lazyDB.Close() }

	repo := sqlite.NewLazySnapshotRepository(lazyDB)
	raw, err := repo.Load(ctx)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("load state: %w", err)
	}

	result := usecase.NewMigrationEngine().Migrate(raw)
	return entity.SnapshotFromRaw(result.Snapshot), cleanup, nil
}

func runState(_ *cobra.Command, _ []string) error {
	snap, cleanup, err := loadStoredSnapshot(baseCtx)
	if err != nil {
		return err
	}
	defer cleanup()

	if stateJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}

	fmt.Printf("Schema version: %d\n\n", snap.SchemaVersion)

	if len(snap.Slots) == 0 {
		fmt.Println("No pinned tabs.")
	} else {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "SLOT\tTAB\tSTATE\tURL\tTITLE")
		for _, entry := range snap.Slots {
			state := "open"
			if entry.Closed {
				state = "closed"
			}
			_, _ = fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\n",
				entry.Slot, entry.TabID, state, entry.URL, entry.Title)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	fmt.Printf("\nSessions: %d  Frecency entries: %d\n", len(snap.Sessions), len(snap.Frecency))
	return nil
}
