package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	"github.com/avierx/tabdeck/internal/app/bridge"
	"github.com/avierx/tabdeck/internal/app/messaging"
	"github.com/avierx/tabdeck/internal/domain/build"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the wire message JSON schemas",
	Long: `Generate JSON schemas for the native messaging contract.

Covers the four frame shapes on the channel: extension requests, host
responses, outbound browser calls, and their results. Intended for
validating the extension side against the host it talks to.`,
	RunE: runSchema,
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}

func runSchema(_ *cobra.Command, _ []string) error {
	reflector := new(jsonschema.Reflector)

	schemas := map[string]*jsonschema.Schema{
		"request":       reflector.Reflect(&messaging.Request{}),
		"response":      reflector.Reflect(&messaging.Response{}),
		"browserCall":   reflector.Reflect(&bridge.Call{}),
		"browserResult": reflector.Reflect(&bridge.Result{}),
	}
	for name, schema := range schemas {
		schema.ID = jsonschema.ID(fmt.Sprintf("%s/%s.schema.json", build.RepoURL(), name))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(schemas)
}
