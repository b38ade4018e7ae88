package commands

import (
	"github.com/spf13/cobra"

	"github.com/woxQAQ/memory-registry/internal/client"
	"github.com/woxQAQ/memory-registry/internal/wasm"
	"github.com/woxQAQ/memory-registry/pkg/protocol"
)

func newPingCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "ping WASM",
		Short: "Call wasm_test_ping on an artifact",
		Long: `Load a wasm artifact, call its wasm_test_ping export and check the
result against the expected magic value 0xF00DBABE.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := args[0]

			rt, err := e.runtime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			compiled, err := wasm.NewModuleLoader(rt, e.logger).LoadModuleFromFile(ctx, path)
			if err != nil {
				return e.printer.Error("Failed to load artifact", err.Error(),
					"Build it with: make wasm")
			}
			instance, err := wasm.NewInstanceManager(rt, e.logger).Instantiate(ctx,
				&wasm.InstanceConfig{ModuleName: compiled.Name})
			if err != nil {
				return e.printer.Error("Failed to instantiate artifact", err.Error())
			}
			defer instance.Close(ctx)

			got, err := client.NewRegistry(instance, e.logger, e.cfg.ClientOptions()).Ping(ctx)
			if err != nil {
				return e.printer.Error("Ping failed", err.Error())
			}
			if got != protocol.PingMagic {
				return e.printer.Error("Unexpected ping value",
					formatHex(got)+" returned, expected "+formatHex(protocol.PingMagic))
			}

			e.printer.Success("%s answered %s", path, formatHex(got))
			return nil
		},
	}
}
