package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/woxQAQ/memory-registry/internal/client"
)

func newAddCommand(e *env) *cobra.Command {
	var (
		wasmPath string
		fallback bool
	)

	cmd := &cobra.Command{
		Use:   "add A B",
		Short: "Call the stateless add export",
		Long: `Instantiate the add artifact and print add(A, B). Arguments are signed
32-bit integers and the sum wraps on overflow.

A negative first argument looks like a flag; put the operands after --.`,
		Example: `  registryctl add --wasm build/artifacts/stylus-add/stylus-add.wasm 40 2
  registryctl add --wasm build/artifacts/stylus-add/stylus-add.wasm -- -5 3`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := parseInt32(args[0])
			if err != nil {
				return e.printer.Error("Invalid argument", err.Error())
			}
			b, err := parseInt32(args[1])
			if err != nil {
				return e.printer.Error("Invalid argument", err.Error())
			}

			rt, err := e.runtime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			session, err := client.OpenAdder(ctx, rt, e.logger, wasmPath, fallback || e.cfg.Client.Fallback)
			if err != nil {
				return e.printer.Error("Add artifact unusable", err.Error(),
					"Check the path passed to --wasm",
					"Retry with --fallback to use the in-process add")
			}
			defer session.Close(ctx)

			if session.Fallback {
				e.printer.Warning("using in-process add")
			}

			sum, err := session.Add(ctx, a, b)
			if err != nil {
				return e.printer.Error("add failed", err.Error())
			}
			e.printer.Info("%d", sum)
			return nil
		},
	}

	cmd.Flags().StringVar(&wasmPath, "wasm", "", "Path to the add artifact")
	cmd.Flags().BoolVar(&fallback, "fallback", false, "Use the in-process add if the artifact is unusable")
	return cmd
}

func parseInt32(s string) (int32, error) {
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%q is not a 32-bit integer", s)
	}
	return int32(v), nil
}

func formatHex(v uint32) string {
	return fmt.Sprintf("0x%X", v)
}
