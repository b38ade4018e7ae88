package commands

import (
	"github.com/spf13/cobra"

	"github.com/woxQAQ/memory-registry/internal/artifact"
)

func newSchemaCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema for artifact manifest.yaml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := artifact.ManifestSchema()
			if err != nil {
				return e.printer.Error("Failed to generate schema", err.Error())
			}
			e.printer.Info("%s", data)
			return nil
		},
	}
}
