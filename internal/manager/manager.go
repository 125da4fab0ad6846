// Package manager reconciles discovered containers into backup policies
// and drives the scheduling loop.
package manager

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/bnema/stevedore/internal/backup"
	"github.com/bnema/stevedore/internal/common"
	"github.com/bnema/stevedore/internal/metrics"
	"github.com/bnema/stevedore/internal/policy"
	"github.com/bnema/stevedore/internal/registry"
	"github.com/bnema/stevedore/pkg/logger"
)

// Executor runs one backup for a policy. *backup.Pipeline is the production
// implementation.
type Executor interface {
	Execute(ctx context.Context, pol *policy.Policy) (backup.Outcome, error)
}

// Manager owns the policy set. It is not safe for concurrent use; the
// daemon loop is its only writer.
type Manager struct {
	cfg      *common.Config
	registry registry.Registry
	store    *metrics.Store
	executor Executor

	policies map[string]*policy.Policy // keyed by target ID
	warned   map[string]string         // target ID -> last reported label problem
	nowFn    func() time.Time
}

// New wires a manager over its collaborators.
func New(cfg *common.Config, reg registry.Registry, store *metrics.Store, executor Executor) *Manager {
	return &Manager{
		cfg:      cfg,
		registry: reg,
		store:    store,
		executor: executor,
		policies: make(map[string]*policy.Policy),
		warned:   make(map[string]string),
		nowFn:    time.Now,
	}
}

// Reconcile scans the registry and rebuilds the policy set. A target with
// invalid labels is reported once and skipped; one with only a bad
// schedule is kept visible but inert. Last run times survive rescans, and
// a registry error leaves the previous set untouched.
func (m *Manager) Reconcile(ctx context.Context) error {
	targets, err := m.registry.ListTargets(ctx)
	if err != nil {
		return fmt.Errorf("failed to scan containers: %w", err)
	}

	now := m.nowFn()
	next := make(map[string]*policy.Policy, len(targets))
	seen := make(map[string]bool, len(targets))

	for _, target := range targets {
		if !policy.Enabled(target.Labels, m.cfg.Backups.LabelPrefix) {
			continue
		}
		seen[target.ID] = true

		pol, err := policy.FromLabels(target.ID, target.Name, target.Labels, m.cfg.Backups.LabelPrefix, now)
		if err != nil {
			m.warnOnce(target.ID, err)
			if pol == nil {
				continue
			}
		} else {
			delete(m.warned, target.ID)
		}

		if prev, ok := m.policies[target.ID]; ok {
			pol.LastRun = prev.LastRun
		}

		next[target.ID] = pol
		m.store.Init(pol.TargetName, pol.Kind.String(), pol.Database, pol.NextRun)
		logger.Debug("found backup policy",
			"target", pol.TargetName, "kind", pol.Kind, "schedule", pol.Schedule)
	}

	// Forget warnings for targets that disappeared so a recreated
	// container reports its problem again.
	for id := range m.warned {
		if !seen[id] {
			delete(m.warned, id)
		}
	}

	m.policies = next
	m.store.SetMonitored(len(next))
	logger.Info("container scan complete", "targets", len(next))
	return nil
}

// warnOnce reports a label problem only when it differs from the last
// report for the same target, keeping the scan loop from repeating itself
// every interval.
func (m *Manager) warnOnce(targetID string, err error) {
	msg := err.Error()
	if m.warned[targetID] == msg {
		return
	}
	m.warned[targetID] = msg
	logger.Warn("invalid backup configuration", "error", err)
}

// RunDue executes every policy whose next run instant has elapsed,
// sequentially in target name order.
func (m *Manager) RunDue(ctx context.Context) {
	now := m.nowFn()
	for _, pol := range m.sortedPolicies() {
		if !pol.Due(now) {
			continue
		}
		logger.Info("running scheduled backup", "target", pol.TargetName)
		m.execute(ctx, pol, now)
	}
}

// RunNow triggers one backup for the named target immediately. The
// schedule state is left untouched, so the next scheduled run still
// happens at its regular time.
func (m *Manager) RunNow(ctx context.Context, targetName string) error {
	for _, pol := range m.sortedPolicies() {
		if pol.TargetName != targetName {
			continue
		}
		if !m.execute(ctx, pol, time.Time{}) {
			return fmt.Errorf("backup failed for %s", targetName)
		}
		return nil
	}
	return fmt.Errorf("container not found or backup not enabled: %s", targetName)
}

// execute runs one backup and records its outcome. A non-zero scheduledAt
// marks a scheduled run: the policy's last run is set to it and the next
// run advanced past it.
func (m *Manager) execute(ctx context.Context, pol *policy.Policy, scheduledAt time.Time) bool {
	out, err := m.executor.Execute(ctx, pol)
	success := err == nil
	if err != nil {
		logger.Error("backup failed",
			"run_id", out.RunID, "target", pol.TargetName, "error", err)
	}

	if !scheduledAt.IsZero() {
		pol.LastRun = scheduledAt
		if err := pol.RecomputeNextRun(scheduledAt); err != nil {
			logger.Warn("failed to advance schedule", "target", pol.TargetName, "error", err)
		}
	}

	m.store.Record(pol.TargetName, pol.Kind.String(), pol.Database,
		success, out.Duration, out.SizeBytes, pol.NextRun)
	return success
}

// Listing is one row of the policy listing.
type Listing struct {
	Target        string  `json:"target" yaml:"target"`
	Kind          string  `json:"kind" yaml:"kind"`
	Database      string  `json:"database" yaml:"database"`
	Schedule      string  `json:"schedule" yaml:"schedule"`
	RetentionDays int     `json:"retention_days" yaml:"retention_days"`
	Compression   string  `json:"compression" yaml:"compression"`
	NextRun       *string `json:"next_run" yaml:"next_run"`
	LastRun       *string `json:"last_run" yaml:"last_run"`
}

// Listings returns the current policy set sorted by target name.
func (m *Manager) Listings() []Listing {
	policies := m.sortedPolicies()
	out := make([]Listing, 0, len(policies))
	for _, pol := range policies {
		out = append(out, Listing{
			Target:        pol.TargetName,
			Kind:          pol.Kind.String(),
			Database:      pol.Database,
			Schedule:      pol.Schedule,
			RetentionDays: pol.RetentionDays,
			Compression:   pol.Compression.String(),
			NextRun:       rfc3339OrNil(pol.NextRun),
			LastRun:       rfc3339OrNil(pol.LastRun),
		})
	}
	return out
}

// Run reconciles and executes due backups every check interval until the
// context is cancelled. Loop errors are logged and the loop keeps going.
func (m *Manager) Run(ctx context.Context) error {
	logger.Info("backup manager starting",
		"backup_dir", m.cfg.Backups.Dir,
		"check_interval", m.cfg.CheckInterval(),
		"label_prefix", m.cfg.Backups.LabelPrefix,
		"metrics_port", m.cfg.Http.Port)

	ticker := time.NewTicker(m.cfg.CheckInterval())
	defer ticker.Stop()

	for {
		if err := m.tick(ctx); err != nil {
			logger.Error("backup loop error", "error", err)
		}
		select {
		case <-ctx.Done():
			// Cancellation is a normal shutdown, not a failure.
			return nil
		case <-ticker.C:
		}
	}
}

func (m *Manager) tick(ctx context.Context) error {
	if err := m.Reconcile(ctx); err != nil {
		return err
	}
	m.RunDue(ctx)
	return nil
}

func (m *Manager) sortedPolicies() []*policy.Policy {
	out := make([]*policy.Policy, 0, len(m.policies))
	for _, pol := range m.policies {
		out = append(out, pol)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TargetName < out[j].TargetName })
	return out
}

func rfc3339OrNil(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
