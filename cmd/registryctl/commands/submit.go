package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/woxQAQ/memory-registry/internal/client"
)

func newSubmitCommand(e *env) *cobra.Command {
	var (
		wasmPath string
		cidFile  string
		fallback bool
	)

	cmd := &cobra.Command{
		Use:   "submit [CID...]",
		Short: "Submit CIDs to a fresh registry and list its contents",
		Long: `Instantiate the memory-registry artifact, submit each CID in order and
print the resulting entries by index.

CIDs come from arguments and, with --file, one per line from a file
(blank lines and lines starting with # are skipped). With --fallback, or
client.fallback in the configuration, an unusable artifact is replaced by
the in-process registry.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cids := append([]string(nil), args...)
			if cidFile != "" {
				fromFile, err := readCIDFile(cidFile)
				if err != nil {
					return e.printer.Error("Failed to read CID file", err.Error())
				}
				cids = append(cids, fromFile...)
			}
			if len(cids) == 0 {
				return e.printer.Error("Nothing to submit", "No CIDs were given",
					"Pass CIDs as arguments", "Use --file with one CID per line")
			}

			rt, err := e.runtime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			opts := e.cfg.ClientOptions()
			opts.Fallback = opts.Fallback || fallback

			var session *client.Session
			if wasmPath == "" {
				if !opts.Fallback {
					return e.printer.Error("No artifact given", "--wasm is required without --fallback")
				}
				session = client.OpenLocal(e.logger, opts)
			} else {
				session, err = client.Open(ctx, rt, e.logger, wasmPath, opts)
				if err != nil {
					return e.printer.Error("Registry artifact unusable", err.Error(),
						"Rebuild it with: make wasm",
						"Retry with --fallback to use the in-process registry")
				}
			}
			defer session.Close(ctx)

			if session.Fallback {
				e.printer.Warning("using in-process registry")
			}

			rejected := 0
			for _, cid := range cids {
				index, err := session.Submit(ctx, cid)
				if err != nil {
					e.printer.Warning("rejected %q: %v", cid, err)
					rejected++
					continue
				}
				e.printer.Success("stored at index %d", index)
			}

			entries, err := session.List(ctx)
			if err != nil {
				return e.printer.Error("Failed to read registry", err.Error())
			}
			for i, cid := range entries {
				e.printer.Info("%d\t%s", i, cid)
			}

			if rejected > 0 {
				return e.printer.Error("Some CIDs were rejected",
					fmt.Sprintf("%d of %d submissions failed", rejected, len(cids)))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&wasmPath, "wasm", "", "Path to the memory-registry artifact")
	cmd.Flags().StringVarP(&cidFile, "file", "f", "", "File with one CID per line")
	cmd.Flags().BoolVar(&fallback, "fallback", false, "Use the in-process registry if the artifact is unusable")
	return cmd
}

// readCIDFile returns the non-blank, non-comment lines of path.
func readCIDFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		cids = append(cids, line)
	}
	return cids, scanner.Err()
}
