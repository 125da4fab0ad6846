package cmd

import (
	"github.com/spf13/cobra"

	"github.com/bnema/stevedore/internal/cli/handler"
	"github.com/bnema/stevedore/internal/common"
)

func NewRunCommand(cfg *common.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "run <target>",
		Short: "Run a backup immediately for one target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handler.TriggerBackup(cfg, args[0])
		},
	}
}
