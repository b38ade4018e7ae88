// Package commands implements the registryctl command tree.
package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/woxQAQ/memory-registry/internal/config"
	"github.com/woxQAQ/memory-registry/internal/printer"
	"github.com/woxQAQ/memory-registry/internal/wasm"
)

// env is the state shared by every subcommand, built before it runs.
type env struct {
	cfg     *config.Config
	logger  *zap.Logger
	printer *printer.Printer
}

type rootOptions struct {
	configPath string
	logLevel   string
	env        env
}

// NewRootCommand builds the registryctl command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "registryctl",
		Short: "Host tool for the memory-registry wasm artifacts",
		Long: `registryctl loads the memory-registry and add wasm artifacts into a
wazero runtime, checks their export surface and drives them from the host.

Every invocation starts a fresh instance, so registry contents last only
for the duration of one command.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.env.logger != nil {
				_ = opts.env.logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to configuration file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides log_level")

	root.AddCommand(
		newPingCommand(&opts.env),
		newVerifyCommand(&opts.env),
		newSubmitCommand(&opts.env),
		newAddCommand(&opts.env),
		newSchemaCommand(&opts.env),
	)

	return root
}

// Execute runs root. Errors the commands already reported are returned as
// is; anything else, such as a cobra flag or argument error, is printed
// first with a pointer to the command's help.
func Execute(root *cobra.Command) error {
	cmd, err := root.ExecuteC()
	if err == nil {
		return nil
	}

	var reported *printer.ReportedError
	if errors.As(err, &reported) {
		return err
	}
	if cmd == nil {
		cmd = root
	}
	return printer.New(cmd.OutOrStdout(), cmd.ErrOrStderr()).Error("Invalid usage", err.Error(),
		fmt.Sprintf("Run '%s --help' for usage", cmd.CommandPath()))
}

// SetVersionInfo sets the version information for the CLI.
func SetVersionInfo(root *cobra.Command, version, commit, date string) {
	root.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
}

func (o *rootOptions) setup(cmd *cobra.Command) error {
	o.env.printer = printer.New(cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return o.env.printer.Error("Failed to load configuration", err.Error(),
			"Check the file passed to --config")
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return o.env.printer.Error("Invalid log level", err.Error(),
			"Use one of: debug, info, warn, error")
	}

	o.env.cfg = cfg
	o.env.logger = logger
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	zcfg := zap.NewProductionConfig()
	if lvl == zapcore.DebugLevel {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

// runtime creates a wazero runtime from the wasm config section. The caller
// closes it.
func (e *env) runtime(ctx context.Context) (*wasm.Runtime, error) {
	rt, err := wasm.NewRuntime(ctx, e.logger, e.cfg.RuntimeConfig())
	if err != nil {
		return nil, e.printer.Error("Failed to start wasm runtime", err.Error())
	}
	return rt, nil
}
