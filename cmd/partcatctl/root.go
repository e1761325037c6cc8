package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/partcat/internal/app"
	"github.com/kailas-cloud/partcat/internal/config"
	logpkg "github.com/kailas-cloud/partcat/internal/logger"
	"github.com/kailas-cloud/partcat/internal/version"
)

type rootOptions struct {
	env      string
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "partcatctl",
		Short:         "Categorize automotive parts against a three-level taxonomy",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.env, "env", config.GetEnv(), "config environment (config/<env>.yaml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "debug, info, warn or error")

	cmd.AddCommand(newClassifyCmd(opts), newSuggestCmd(opts), newTaxonomyCmd(opts))
	return cmd
}

// loadConfig reads config/<env>.yaml; a missing file falls back to defaults.
func (o *rootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.env)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return config.Config{}, err
	}
	cfg = config.Config{}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid default config: %w", err)
	}
	return cfg, nil
}

// build wires the engine and attaches the logger to the command context, so
// classification runs log through it. Logs go to stderr; stdout stays machine-readable.
func (o *rootOptions) build(cmd *cobra.Command) (*app.App, error) {
	env := logpkg.EnvCLI
	if o.env == logpkg.EnvProd {
		env = logpkg.EnvProd
	}
	logger, err := logpkg.NewLogger(env, o.logLevel)
	if err != nil {
		return nil, err
	}
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	ctx := logpkg.ContextWithLogger(cmd.Context(), logger.With(zap.String("command", cmd.Name())))
	cmd.SetContext(ctx)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}
	return a, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
