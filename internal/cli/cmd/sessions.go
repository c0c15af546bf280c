package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/avierx/tabdeck/internal/domain/entity"
)

var sessionsJSON bool

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect saved sessions",
	Long: `View the named sessions saved from the extension.

Sessions are snapshots of the slot list; the extension saves, loads, and
deletes them. These commands only read.`,
	RunE: runSessionsList,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved sessions",
	RunE:  runSessionsList,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show the tabs in a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.PersistentFlags().BoolVar(&sessionsJSON, "json", false, "output as JSON")
}

func runSessionsList(_ *cobra.Command, _ []string) error {
	snap, cleanup, err := loadStoredSnapshot(baseCtx)
	if err != nil {
		return err
	}
	defer cleanup()

	if sessionsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap.Sessions)
	}

	if len(snap.Sessions) == 0 {
		fmt.Println("No saved sessions.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tTABS\tSAVED")
	for _, session := range snap.Sessions {
		saved := time.UnixMilli(session.SavedAt).Format("2006-01-02 15:04")
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\n", session.Name, len(session.Entries), saved)
	}
	return w.Flush()
}

func runSessionsShow(_ *cobra.Command, args []string) error {
	snap, cleanup, err := loadStoredSnapshot(baseCtx)
	if err != nil {
		return err
	}
	defer cleanup()

	session := findSessionByName(snap, args[0])
	if session == nil {
		return fmt.Errorf("no session named %q", args[0])
	}

	if sessionsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(session)
	}

	fmt.Printf("Session %q, saved %s\n\n", session.Name,
		time.UnixMilli(session.SavedAt).Format("2006-01-02 15:04"))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "#\tURL\tTITLE")
	for i, entry := range session.Entries {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\n", i+1, entry.URL, entry.Title)
	}
	return w.Flush()
}

// findSessionByName matches case-insensitively, the same identity rule the
// engine applies on save.
func findSessionByName(snap *entity.StorageSnapshot, name string) *entity.TabManagerSession {
	for _, session := range snap.Sessions {
		if strings.EqualFold(session.Name, name) {
			return session
		}
	}
	return nil
}
