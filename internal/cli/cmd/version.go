package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/bnema/stevedore/internal/common"
)

func NewVersionCommand(cfg *common.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display the version of Stevedore",
		Run: func(cmd *cobra.Command, args []string) {
			color.Green("Stevedore %s", cfg.GetVersion())
			if cfg.Build.BuildCommit != "" {
				fmt.Printf("commit: %s\n", cfg.Build.BuildCommit)
			}
			if cfg.Build.BuildDate != "" {
				fmt.Printf("built:  %s\n", cfg.Build.BuildDate)
			}
		},
	}
}
