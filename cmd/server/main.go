// Package main runs the gitsong HTTP server: song requests, the music
// service webhook and the background task poller.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/phrazzld/gitsong/internal/app"
	"github.com/phrazzld/gitsong/internal/config"
	"github.com/phrazzld/gitsong/internal/platform/logger"
	"github.com/phrazzld/gitsong/internal/platform/postgres"
)

type options struct {
	configPath string
	migrate    string
}

func parseFlags(args []string, output io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&opts.configPath, "config", "", "path to a YAML config file")
	fs.StringVar(&opts.migrate, "migrate", "",
		fmt.Sprintf("run a migration command and exit (%v)", postgres.MigrationCommands))
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.migrate != "" && !slices.Contains(postgres.MigrationCommands, opts.migrate) {
		return opts, fmt.Errorf("unknown migration command %q", opts.migrate)
	}
	return opts, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	cfg, err := config.LoadFromFile(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}
	log.Info("server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"public_base_url", cfg.Server.PublicBaseURL)

	if opts.migrate != "" {
		return runMigration(ctx, cfg, opts.migrate, log)
	}

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer func() {
		if cerr := application.Close(); cerr != nil {
			log.Error("failed to release resources", "error", cerr)
		}
	}()

	if cfg.Poller.Enabled {
		application.Poller.Start()
	}
	return serve(ctx, cfg.Server.Port, application.Router(), log)
}

func runMigration(ctx context.Context, cfg *config.Config, command string, log *slog.Logger) error {
	db, err := postgres.Open(ctx, cfg.Database.URL, postgres.PoolConfig{}, log)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			log.Error("failed to close database", "error", cerr)
		}
	}()
	return postgres.Migrate(ctx, db, command, log)
}
