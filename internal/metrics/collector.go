package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "db_backup"

var recordLabels = []string{"target", "kind", "database"}

// Collector renders a Store as Prometheus metrics at scrape time. All
// values are read from one snapshot, so a scrape never interleaves with a
// half-applied backup result.
type Collector struct {
	store *Store

	up               *prometheus.Desc
	uptimeSeconds    *prometheus.Desc
	monitored        *prometheus.Desc
	lastSuccess      *prometheus.Desc
	lastTimestamp    *prometheus.Desc
	lastDuration     *prometheus.Desc
	lastSize         *prometheus.Desc
	nextScheduled    *prometheus.Desc
	secondsUntilNext *prometheus.Desc
	secondsSinceLast *prometheus.Desc
	total            *prometheus.Desc
	failuresTotal    *prometheus.Desc
}

// NewCollector builds a collector over the given store.
func NewCollector(store *Store) *Collector {
	return &Collector{
		store: store,
		up: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "manager", "up"),
			"Whether the backup manager is running.",
			nil, nil),
		uptimeSeconds: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "manager", "uptime_seconds"),
			"Seconds since the backup manager started.",
			nil, nil),
		monitored: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "containers_monitored"),
			"Number of containers currently enabled for backups.",
			nil, nil),
		lastSuccess: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "last_success"),
			"Whether the last backup succeeded (1 success, 0 failure, -1 never run).",
			recordLabels, nil),
		lastTimestamp: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "last_timestamp_seconds"),
			"Unix timestamp of the last backup attempt.",
			recordLabels, nil),
		lastDuration: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "last_duration_seconds"),
			"Duration of the last backup attempt in seconds.",
			recordLabels, nil),
		lastSize: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "last_size_bytes"),
			"Size of the last backup artifact in bytes.",
			recordLabels, nil),
		nextScheduled: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "next_scheduled_timestamp_seconds"),
			"Unix timestamp of the next scheduled backup.",
			recordLabels, nil),
		secondsUntilNext: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "seconds_until_next"),
			"Seconds until the next scheduled backup.",
			recordLabels, nil),
		secondsSinceLast: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "seconds_since_last"),
			"Seconds since the last backup attempt.",
			recordLabels, nil),
		total: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "total"),
			"Total number of backup attempts.",
			recordLabels, nil),
		failuresTotal: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "failures_total"),
			"Total number of failed backup attempts.",
			recordLabels, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.up
	ch <- c.uptimeSeconds
	ch <- c.monitored
	ch <- c.lastSuccess
	ch <- c.lastTimestamp
	ch <- c.lastDuration
	ch <- c.lastSize
	ch <- c.nextScheduled
	ch <- c.secondsUntilNext
	ch <- c.secondsSinceLast
	ch <- c.total
	ch <- c.failuresTotal
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	v := c.store.Snapshot()

	ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 1)
	ch <- prometheus.MustNewConstMetric(c.uptimeSeconds, prometheus.CounterValue, v.Uptime.Seconds())
	ch <- prometheus.MustNewConstMetric(c.monitored, prometheus.GaugeValue, float64(v.Monitored))

	for _, r := range v.Records {
		labels := []string{r.Target, r.Kind, r.Database}

		ch <- prometheus.MustNewConstMetric(c.lastSuccess, prometheus.GaugeValue, float64(r.LastSuccess), labels...)
		ch <- prometheus.MustNewConstMetric(c.lastTimestamp, prometheus.GaugeValue, unixOrZero(r.LastTimestamp), labels...)
		ch <- prometheus.MustNewConstMetric(c.lastDuration, prometheus.GaugeValue, r.LastDuration.Seconds(), labels...)
		ch <- prometheus.MustNewConstMetric(c.lastSize, prometheus.GaugeValue, float64(r.LastSizeBytes), labels...)
		ch <- prometheus.MustNewConstMetric(c.nextScheduled, prometheus.GaugeValue, unixOrZero(r.NextScheduled), labels...)

		if !r.NextScheduled.IsZero() {
			until := r.NextScheduled.Sub(v.Now).Seconds()
			if until < 0 {
				until = 0
			}
			ch <- prometheus.MustNewConstMetric(c.secondsUntilNext, prometheus.GaugeValue, until, labels...)
		}
		if !r.LastTimestamp.IsZero() {
			ch <- prometheus.MustNewConstMetric(c.secondsSinceLast, prometheus.GaugeValue, v.Now.Sub(r.LastTimestamp).Seconds(), labels...)
		}

		ch <- prometheus.MustNewConstMetric(c.total, prometheus.CounterValue, float64(r.TotalBackups), labels...)
		ch <- prometheus.MustNewConstMetric(c.failuresTotal, prometheus.CounterValue, float64(r.TotalFailures), labels...)
	}
}

func unixOrZero(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.Unix())
}
