// Package cli holds the obras commands.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/obras/config"
	"github.com/GoSim-25-26J-441/obras/internal/logging"
)

// NewRootCmd creates the top-level "obras" command.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "obras",
		Short:         "Construction project and receipt tracker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newServeCmd(config.Load),
		newMigrateCmd(config.Load),
	)

	return root
}

type loadFunc func() (*config.Config, error)

func load(fn loadFunc) (*config.Config, error) {
	cfg, err := fn()
	if err != nil {
		return nil, err
	}
	logging.SetLevel(logging.ParseLevel(cfg.App.LogLevel))
	return cfg, nil
}
