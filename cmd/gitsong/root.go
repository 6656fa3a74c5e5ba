package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/phrazzld/gitsong/internal/app"
	"github.com/phrazzld/gitsong/internal/config"
	"github.com/phrazzld/gitsong/internal/platform/logger"
)

type globalOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           "gitsong",
		Short:         "Turn a repository's commit history into a song",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a YAML config file")

	root.AddCommand(
		newGenerateCmd(opts),
		newTaskCmd(opts),
		newRateLimitCmd(opts),
		newMigrateCmd(opts),
	)
	return root
}

// loadConfig reads configuration and installs the configured logger. CLI
// logs go to stderr so stdout carries only command output.
func loadConfig(opts *globalOptions, stderr io.Writer) (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadFromFile(opts.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	log, err := logger.SetupWithWriter(cfg.Server, stderr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}
	return cfg, log, nil
}

// withApp builds the application, runs fn and releases it.
func withApp(ctx context.Context, cmd *cobra.Command, opts *globalOptions, fn func(*app.App) error) (err error) {
	cfg, log, err := loadConfig(opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
