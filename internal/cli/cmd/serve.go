package cmd

import (
	"github.com/spf13/cobra"

	"github.com/bnema/stevedore/internal/cli/handler"
	"github.com/bnema/stevedore/internal/common"
)

func NewServeCommand(cfg *common.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the backup daemon and the metrics server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return handler.RunDaemon(cfg)
		},
	}
}
