package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phrazzld/gitsong/internal/platform/postgres"
)

func newMigrateCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate COMMAND",
		Short:     "Run database migrations",
		Long:      "Run database migrations. COMMAND is one of: " + strings.Join(postgres.MigrationCommands, ", "),
		ValidArgs: postgres.MigrationCommands,
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			cfg, log, err := loadConfig(global, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			db, err := postgres.Open(cmd.Context(), cfg.Database.URL, postgres.PoolConfig{}, log)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := db.Close(); cerr != nil && err == nil {
					err = fmt.Errorf("failed to close database: %w", cerr)
				}
			}()
			return postgres.Migrate(cmd.Context(), db, args[0], log)
		},
	}
}
