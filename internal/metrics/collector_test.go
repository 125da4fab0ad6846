package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatherFixture builds a store with one never-run, one succeeded and one
// failed target, then scrapes it 45 seconds later.
func gatherFixture(t *testing.T) ([]*dto.MetricFamily, time.Time) {
	t.Helper()

	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	current := now
	s := NewStore()
	s.startTime = now.Add(-90 * time.Second)
	s.nowFn = func() time.Time { return current }
	s.SetMonitored(2)

	s.Init("orders-db", "postgres", "all", now.Add(time.Hour))
	s.Record("cache", "redis", "all", true, 2*time.Second, 4096, now.Add(30*time.Second))
	s.Record("legacy", "mysql", "shop", false, time.Second, 0, time.Time{})

	current = now.Add(45 * time.Second)

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(NewCollector(s)))
	families, err := reg.Gather()
	require.NoError(t, err)
	return families, now
}

func findFamily(families []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func findMetric(mf *dto.MetricFamily, target, database string) *dto.Metric {
	if mf == nil {
		return nil
	}
	for _, m := range mf.GetMetric() {
		var gotTarget, gotDatabase string
		for _, lp := range m.GetLabel() {
			switch lp.GetName() {
			case "target":
				gotTarget = lp.GetValue()
			case "database":
				gotDatabase = lp.GetValue()
			}
		}
		if gotTarget == target && gotDatabase == database {
			return m
		}
	}
	return nil
}

func metricValue(m *dto.Metric) float64 {
	if m.GetGauge() != nil {
		return m.GetGauge().GetValue()
	}
	return m.GetCounter().GetValue()
}

func TestCollectorManagerSeries(t *testing.T) {
	families, _ := gatherFixture(t)

	up := findFamily(families, "db_backup_manager_up")
	require.NotNil(t, up)
	require.Len(t, up.GetMetric(), 1)
	assert.Equal(t, 1.0, metricValue(up.GetMetric()[0]))

	uptime := findFamily(families, "db_backup_manager_uptime_seconds")
	require.NotNil(t, uptime)
	assert.Equal(t, 135.0, metricValue(uptime.GetMetric()[0]))

	monitored := findFamily(families, "db_backup_containers_monitored")
	require.NotNil(t, monitored)
	assert.Equal(t, 2.0, metricValue(monitored.GetMetric()[0]))
}

func TestCollectorRecordSeries(t *testing.T) {
	families, now := gatherFixture(t)

	lastSuccess := findFamily(families, "db_backup_last_success")
	assert.Equal(t, -1.0, metricValue(findMetric(lastSuccess, "orders-db", "all")))
	assert.Equal(t, 1.0, metricValue(findMetric(lastSuccess, "cache", "all")))
	assert.Equal(t, 0.0, metricValue(findMetric(lastSuccess, "legacy", "shop")))

	lastTimestamp := findFamily(families, "db_backup_last_timestamp_seconds")
	assert.Equal(t, 0.0, metricValue(findMetric(lastTimestamp, "orders-db", "all")))
	assert.Equal(t, float64(now.Unix()), metricValue(findMetric(lastTimestamp, "cache", "all")))

	nextScheduled := findFamily(families, "db_backup_next_scheduled_timestamp_seconds")
	assert.Equal(t, float64(now.Add(time.Hour).Unix()), metricValue(findMetric(nextScheduled, "orders-db", "all")))
	assert.Equal(t, 0.0, metricValue(findMetric(nextScheduled, "legacy", "shop")))

	duration := findFamily(families, "db_backup_last_duration_seconds")
	assert.Equal(t, 2.0, metricValue(findMetric(duration, "cache", "all")))

	size := findFamily(families, "db_backup_last_size_bytes")
	assert.Equal(t, 4096.0, metricValue(findMetric(size, "cache", "all")))

	total := findFamily(families, "db_backup_total")
	assert.Equal(t, 0.0, metricValue(findMetric(total, "orders-db", "all")))
	assert.Equal(t, 1.0, metricValue(findMetric(total, "cache", "all")))

	failures := findFamily(families, "db_backup_failures_total")
	assert.Equal(t, 0.0, metricValue(findMetric(failures, "cache", "all")))
	assert.Equal(t, 1.0, metricValue(findMetric(failures, "legacy", "shop")))
}

func TestCollectorDerivedGauges(t *testing.T) {
	families, _ := gatherFixture(t)

	until := findFamily(families, "db_backup_seconds_until_next")
	require.NotNil(t, until)
	// Scheduled an hour out, scraped 45s in.
	assert.Equal(t, 3555.0, metricValue(findMetric(until, "orders-db", "all")))
	// Already past due: clamped to zero, not negative.
	assert.Equal(t, 0.0, metricValue(findMetric(until, "cache", "all")))
	// No schedule at all: series omitted.
	assert.Nil(t, findMetric(until, "legacy", "shop"))

	since := findFamily(families, "db_backup_seconds_since_last")
	require.NotNil(t, since)
	assert.Equal(t, 45.0, metricValue(findMetric(since, "cache", "all")))
	assert.Equal(t, 45.0, metricValue(findMetric(since, "legacy", "shop")))
	// Never run: series omitted.
	assert.Nil(t, findMetric(since, "orders-db", "all"))
}

func TestCollectorKindLabel(t *testing.T) {
	families, _ := gatherFixture(t)

	m := findMetric(findFamily(families, "db_backup_last_success"), "cache", "all")
	require.NotNil(t, m)
	var kind string
	for _, lp := range m.GetLabel() {
		if lp.GetName() == "kind" {
			kind = lp.GetValue()
		}
	}
	assert.Equal(t, "redis", kind)
}

func TestCollectorExposesAllFamilies(t *testing.T) {
	families, _ := gatherFixture(t)
	assert.Len(t, families, 12)
}
