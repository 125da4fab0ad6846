package handler

import (
	"context"

	"github.com/fatih/color"

	"github.com/bnema/stevedore/internal/app"
	"github.com/bnema/stevedore/internal/common"
)

// TriggerBackup scans the container engine once and runs an immediate backup
// for the named target, outside its schedule.
func TriggerBackup(cfg *common.Config, target string) error {
	a, err := app.New(cfg)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if err := a.Manager.Reconcile(ctx); err != nil {
		return err
	}
	if err := a.Manager.RunNow(ctx, target); err != nil {
		return err
	}

	color.Green("Backup completed for %s", target)
	return nil
}
