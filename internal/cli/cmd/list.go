package cmd

import (
	"github.com/spf13/cobra"

	"github.com/bnema/stevedore/internal/cli/handler"
	"github.com/bnema/stevedore/internal/common"
)

func NewListCommand(cfg *common.Config) *cobra.Command {
	var format string
	c := &cobra.Command{
		Use:   "list",
		Short: "List containers configured for backups",
		RunE: func(cmd *cobra.Command, args []string) error {
			return handler.ListPolicies(cfg, format)
		},
	}
	c.Flags().StringVarP(&format, "format", "o", "json", "output format, json or yaml")
	return c
}
