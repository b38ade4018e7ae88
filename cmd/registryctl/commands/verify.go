package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/woxQAQ/memory-registry/internal/artifact"
)

func newVerifyCommand(e *env) *cobra.Command {
	var dirs []string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify every artifact under the artifact paths",
		Long: `Discover artifact directories (each holding a manifest.yaml), compile
their wasm modules and check each one: required exports, the ping value,
the interface version and a submit/read round trip for registries, and
add(2, 3) for adders.

--dir replaces the configured artifact_paths.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if len(dirs) > 0 {
				e.cfg.ArtifactPaths = dirs
			}

			rt, err := e.runtime(ctx)
			if err != nil {
				return err
			}

			manager := artifact.NewManager(e.cfg, rt, e.logger)
			defer manager.Shutdown(ctx)

			if err := manager.LoadAll(ctx); err != nil {
				return e.printer.Error("Failed to load artifacts", err.Error())
			}
			if manager.Registry().Count() == 0 {
				return e.printer.Error("No artifacts found",
					fmt.Sprintf("Searched: %v", e.cfg.ArtifactPaths),
					"Pass --dir pointing at a directory of artifact folders",
					"Set artifact_paths in the configuration file")
			}

			reports, err := manager.VerifyAll(ctx)
			if err != nil {
				return e.printer.Error("Verification aborted", err.Error())
			}

			failed := 0
			for _, report := range reports {
				e.printer.Step("%s (%s)", report.Artifact, report.Kind)
				for _, check := range report.Checks {
					e.printer.Check(check.OK, check.Name, check.Detail)
				}
				if !report.OK() {
					failed++
				}
			}

			if failed > 0 {
				return e.printer.Error("Verification failed",
					fmt.Sprintf("%d of %d artifacts failed", failed, len(reports)))
			}
			e.printer.Success("%d artifacts verified", len(reports))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&dirs, "dir", nil, "Artifact directory to scan (repeatable)")
	return cmd
}
