package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/obras/internal/bootstrap"
	"github.com/GoSim-25-26J-441/obras/internal/gateway/pgdocs"
	"github.com/GoSim-25-26J-441/obras/internal/logging"
)

func newMigrateCmd(loadCfg loadFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the document tables for BACKEND=postgres",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load(loadCfg)
			if err != nil {
				return err
			}
			if cfg.Backend.Kind != "postgres" {
				return fmt.Errorf("migrate needs BACKEND=postgres (got %q)", cfg.Backend.Kind)
			}

			pool, err := bootstrap.OpenDB(cmd.Context(), bootstrap.DBOptions{DSN: cfg.Database.DSN, MaxConns: 2, MinConns: 1})
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := pgdocs.New(pool, cfg.App.AppID).Migrate(cmd.Context()); err != nil {
				return err
			}
			logging.New("migrate").LogInfo("migrate", "schema is up to date")
			return nil
		},
	}
}
