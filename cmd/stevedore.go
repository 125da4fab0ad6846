package cmd

import (
	"github.com/spf13/cobra"

	clicmd "github.com/bnema/stevedore/internal/cli/cmd"
	"github.com/bnema/stevedore/internal/cli/handler"
	"github.com/bnema/stevedore/internal/common"
	"github.com/bnema/stevedore/pkg/logger"

	_ "github.com/joho/godotenv/autoload"
)

var (
	rootCmd = &cobra.Command{
		Use:           "stevedore",
		Short:         "Database backup manager for labeled containers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	configFile string
	cfg        = &common.Config{}
)

// initConfig runs after flag parsing so --config is honored. The Build
// block set in ExecuteCLI survives the reload.
func initConfig() {
	loaded, err := common.Load(configFile)
	if err != nil {
		logger.Fatal("failed to load configuration", "error", err)
	}
	loaded.Build = cfg.Build
	*cfg = *loaded
	logger.GetLogger().SetLogLevel(cfg.General.LogLevel)
}

func InitializeCommands(cfg *common.Config) {
	// Running stevedore without a subcommand starts the daemon.
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return handler.RunDaemon(cfg)
	}
	rootCmd.AddCommand(clicmd.NewServeCommand(cfg))
	rootCmd.AddCommand(clicmd.NewListCommand(cfg))
	rootCmd.AddCommand(clicmd.NewRunCommand(cfg))
	rootCmd.AddCommand(clicmd.NewVersionCommand(cfg))
}

func Execute(cfg *common.Config) {
	InitializeCommands(cfg)
	cobra.CheckErr(rootCmd.Execute())
}

func ExecuteCLI(build, commit, date string) {
	cfg.Build = common.BuildConfig{
		BuildVersion: build,
		BuildCommit:  commit,
		BuildDate:    date,
	}

	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to a stevedore.yml configuration file")

	Execute(cfg)
}
