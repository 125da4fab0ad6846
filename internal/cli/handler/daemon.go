package handler

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/fatih/color"

	"github.com/bnema/stevedore/internal/app"
	"github.com/bnema/stevedore/internal/common"
	"github.com/bnema/stevedore/pkg/logger"
)

// RunDaemon builds the application and runs the scan loop and the metrics
// server until SIGINT or SIGTERM arrives.
func RunDaemon(cfg *common.Config) error {
	color.Green("Stevedore %s", cfg.GetVersion())

	a, err := app.New(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize application", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return a.Run(ctx)
}
