package manager

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/stevedore/internal/backup"
	"github.com/bnema/stevedore/internal/common"
	"github.com/bnema/stevedore/internal/metrics"
	"github.com/bnema/stevedore/internal/policy"
	"github.com/bnema/stevedore/internal/registry"
)

type fakeRegistry struct {
	targets []registry.Target
	err     error
}

func (f *fakeRegistry) ListTargets(context.Context) ([]registry.Target, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.targets, nil
}

type fakeExecutor struct {
	calls []string
	fail  map[string]error
}

func (f *fakeExecutor) Execute(_ context.Context, pol *policy.Policy) (backup.Outcome, error) {
	f.calls = append(f.calls, pol.TargetName)
	if err := f.fail[pol.TargetName]; err != nil {
		return backup.Outcome{RunID: "run", Duration: time.Second}, err
	}
	return backup.Outcome{
		RunID:        "run",
		ArtifactPath: "/backups/a",
		SizeBytes:    1024,
		Duration:     2 * time.Second,
	}, nil
}

func enabledTarget(id, name string, extra map[string]string) registry.Target {
	labels := map[string]string{
		"db-backup.enable": "true",
		"db-backup.type":   "postgres",
	}
	for k, v := range extra {
		labels["db-backup."+k] = v
	}
	return registry.Target{ID: id, Name: name, Labels: labels}
}

// newTestManager builds a manager over fakes with a controllable clock.
func newTestManager(reg registry.Registry, now time.Time) (*Manager, *fakeExecutor, *metrics.Store, *time.Time) {
	cfg := &common.Config{
		Backups: common.BackupsConfig{Dir: "/backups", CheckInterval: 1, LabelPrefix: "db-backup"},
		Http:    common.HttpConfig{Port: 9090},
	}
	exec := &fakeExecutor{fail: map[string]error{}}
	store := metrics.NewStore()
	m := New(cfg, reg, store, exec)

	current := now
	m.nowFn = func() time.Time { return current }
	return m, exec, store, &current
}

func TestReconcileBuildsPolicies(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	reg := &fakeRegistry{targets: []registry.Target{
		enabledTarget("c1", "orders-db", nil),
		{ID: "c2", Name: "plain-app", Labels: map[string]string{}},
	}}
	m, _, store, _ := newTestManager(reg, now)

	require.NoError(t, m.Reconcile(context.Background()))

	listings := m.Listings()
	require.Len(t, listings, 1)
	l := listings[0]
	assert.Equal(t, "orders-db", l.Target)
	assert.Equal(t, "postgres", l.Kind)
	assert.Equal(t, "all", l.Database)
	assert.Equal(t, "0 2 * * *", l.Schedule)
	assert.Equal(t, 7, l.RetentionDays)
	assert.Equal(t, "gzip", l.Compression)
	require.NotNil(t, l.NextRun)
	assert.Equal(t, "2024-01-02T02:00:00Z", *l.NextRun)
	assert.Nil(t, l.LastRun)

	v := store.Snapshot()
	assert.Equal(t, 1, v.Monitored)
	require.Len(t, v.Records, 1)
	assert.Equal(t, metrics.SuccessNever, v.Records[0].LastSuccess)
	assert.Equal(t, time.Date(2024, 1, 2, 2, 0, 0, 0, time.UTC), v.Records[0].NextScheduled)
}

func TestRunDueExecutesAndReschedules(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	reg := &fakeRegistry{targets: []registry.Target{enabledTarget("c1", "orders-db", nil)}}
	m, exec, store, clock := newTestManager(reg, now)
	require.NoError(t, m.Reconcile(context.Background()))

	// Not due yet.
	m.RunDue(context.Background())
	assert.Empty(t, exec.calls)

	// Cross the 02:00 schedule.
	*clock = time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC)
	m.RunDue(context.Background())
	assert.Equal(t, []string{"orders-db"}, exec.calls)

	l := m.Listings()[0]
	require.NotNil(t, l.LastRun)
	assert.Equal(t, "2024-01-02T03:00:00Z", *l.LastRun)
	require.NotNil(t, l.NextRun)
	assert.Equal(t, "2024-01-03T02:00:00Z", *l.NextRun)

	r := store.Snapshot().Records[0]
	assert.Equal(t, metrics.SuccessTrue, r.LastSuccess)
	assert.Equal(t, int64(1), r.TotalBackups)
	assert.Zero(t, r.TotalFailures)
	assert.Equal(t, 2*time.Second, r.LastDuration)
	assert.Equal(t, int64(1024), r.LastSizeBytes)
	assert.Equal(t, time.Date(2024, 1, 3, 2, 0, 0, 0, time.UTC), r.NextScheduled)

	// Already rescheduled past now, so nothing more to do.
	m.RunDue(context.Background())
	assert.Len(t, exec.calls, 1)
}

func TestRunDueRecordsFailureAndStillAdvances(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	reg := &fakeRegistry{targets: []registry.Target{enabledTarget("c1", "orders-db", nil)}}
	m, exec, store, clock := newTestManager(reg, now)
	exec.fail["orders-db"] = errors.New("dump exploded")
	require.NoError(t, m.Reconcile(context.Background()))

	*clock = time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC)
	m.RunDue(context.Background())

	r := store.Snapshot().Records[0]
	assert.Equal(t, metrics.SuccessFalse, r.LastSuccess)
	assert.Equal(t, int64(1), r.TotalBackups)
	assert.Equal(t, int64(1), r.TotalFailures)
	// The schedule advances even after a failure, so the target is not
	// retried every interval.
	assert.Equal(t, time.Date(2024, 1, 3, 2, 0, 0, 0, time.UTC), r.NextScheduled)

	m.RunDue(context.Background())
	assert.Len(t, exec.calls, 1)
}

func TestReconcilePreservesLastRunAcrossRescan(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	reg := &fakeRegistry{targets: []registry.Target{enabledTarget("c1", "orders-db", nil)}}
	m, _, _, clock := newTestManager(reg, now)
	require.NoError(t, m.Reconcile(context.Background()))

	*clock = time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC)
	m.RunDue(context.Background())

	*clock = time.Date(2024, 1, 2, 4, 0, 0, 0, time.UTC)
	require.NoError(t, m.Reconcile(context.Background()))

	l := m.Listings()[0]
	require.NotNil(t, l.LastRun)
	assert.Equal(t, "2024-01-02T03:00:00Z", *l.LastRun)
	require.NotNil(t, l.NextRun)
	assert.Equal(t, "2024-01-03T02:00:00Z", *l.NextRun)
}

func TestReconcileSkipsTargetWithBadLabels(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	reg := &fakeRegistry{targets: []registry.Target{
		enabledTarget("c1", "orders-db", nil),
		enabledTarget("c2", "bad-db", map[string]string{"port": "not-a-port"}),
	}}
	m, _, store, _ := newTestManager(reg, now)

	require.NoError(t, m.Reconcile(context.Background()))
	require.Len(t, m.Listings(), 1)
	assert.Equal(t, "orders-db", m.Listings()[0].Target)
	assert.Equal(t, 1, store.Snapshot().Monitored)

	// The problem is remembered so it is not re-reported every scan.
	first, ok := m.warned["c2"]
	require.True(t, ok)
	require.NoError(t, m.Reconcile(context.Background()))
	assert.Equal(t, first, m.warned["c2"])

	// A different bad value is a new problem and gets reported again.
	reg.targets[1].Labels["db-backup.port"] = "99999"
	require.NoError(t, m.Reconcile(context.Background()))
	assert.NotEqual(t, first, m.warned["c2"])

	// Once the container is gone the warning state is dropped.
	reg.targets = reg.targets[:1]
	require.NoError(t, m.Reconcile(context.Background()))
	assert.NotContains(t, m.warned, "c2")
}

func TestReconcileKeepsInertPolicyOnBadSchedule(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	reg := &fakeRegistry{targets: []registry.Target{
		enabledTarget("c1", "orders-db", map[string]string{"schedule": "every day at noon"}),
	}}
	m, exec, store, _ := newTestManager(reg, now)

	require.NoError(t, m.Reconcile(context.Background()))

	// Visible in listings and metrics, but never due.
	listings := m.Listings()
	require.Len(t, listings, 1)
	assert.Nil(t, listings[0].NextRun)
	assert.Equal(t, 1, store.Snapshot().Monitored)
	assert.True(t, store.Snapshot().Records[0].NextScheduled.IsZero())

	m.RunDue(context.Background())
	assert.Empty(t, exec.calls)
}

func TestReconcileRegistryErrorKeepsPolicies(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	reg := &fakeRegistry{targets: []registry.Target{enabledTarget("c1", "orders-db", nil)}}
	m, _, _, _ := newTestManager(reg, now)
	require.NoError(t, m.Reconcile(context.Background()))

	reg.err = errors.New("socket gone")
	err := m.Reconcile(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to scan containers")
	assert.Len(t, m.Listings(), 1)
}

func TestRunNowLeavesScheduleUntouched(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	reg := &fakeRegistry{targets: []registry.Target{enabledTarget("c1", "orders-db", nil)}}
	m, exec, store, _ := newTestManager(reg, now)
	require.NoError(t, m.Reconcile(context.Background()))

	require.NoError(t, m.RunNow(context.Background(), "orders-db"))
	assert.Equal(t, []string{"orders-db"}, exec.calls)

	l := m.Listings()[0]
	assert.Nil(t, l.LastRun)
	require.NotNil(t, l.NextRun)
	assert.Equal(t, "2024-01-02T02:00:00Z", *l.NextRun)

	r := store.Snapshot().Records[0]
	assert.Equal(t, metrics.SuccessTrue, r.LastSuccess)
	assert.Equal(t, int64(1), r.TotalBackups)
	assert.Equal(t, time.Date(2024, 1, 2, 2, 0, 0, 0, time.UTC), r.NextScheduled)
}

func TestRunNowUnknownTarget(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	m, exec, _, _ := newTestManager(&fakeRegistry{}, now)
	require.NoError(t, m.Reconcile(context.Background()))

	err := m.RunNow(context.Background(), "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.Empty(t, exec.calls)
}

func TestRunNowReportsFailure(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	reg := &fakeRegistry{targets: []registry.Target{enabledTarget("c1", "orders-db", nil)}}
	m, exec, store, _ := newTestManager(reg, now)
	exec.fail["orders-db"] = errors.New("dump exploded")
	require.NoError(t, m.Reconcile(context.Background()))

	err := m.RunNow(context.Background(), "orders-db")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backup failed for orders-db")

	r := store.Snapshot().Records[0]
	assert.Equal(t, metrics.SuccessFalse, r.LastSuccess)
	assert.Equal(t, int64(1), r.TotalFailures)
}

func TestListingsSortedByTarget(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	reg := &fakeRegistry{targets: []registry.Target{
		enabledTarget("c1", "zeta-db", nil),
		enabledTarget("c2", "alpha-db", map[string]string{"type": "redis"}),
	}}
	m, _, _, _ := newTestManager(reg, now)
	require.NoError(t, m.Reconcile(context.Background()))

	listings := m.Listings()
	require.Len(t, listings, 2)
	assert.Equal(t, "alpha-db", listings[0].Target)
	assert.Equal(t, "redis", listings[0].Kind)
	assert.Equal(t, "zeta-db", listings[1].Target)
}

func TestRunStopsWhenContextCancelled(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	reg := &fakeRegistry{targets: []registry.Target{enabledTarget("c1", "orders-db", nil)}}
	m, _, _, _ := newTestManager(reg, now)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, m.Run(ctx))
	// The first tick still ran before shutdown.
	assert.Len(t, m.Listings(), 1)
}
