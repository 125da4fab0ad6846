package metrics

import "time"

// StatusBackup is one entry in the status document. Nullable fields are
// pointers so a never-run target renders as null rather than a zero value.
type StatusBackup struct {
	Target              string  `json:"target"`
	Kind                string  `json:"kind"`
	Database            string  `json:"database"`
	LastSuccess         *bool   `json:"last_success"`
	LastBackup          *string `json:"last_backup"`
	NextBackup          *string `json:"next_backup"`
	LastDurationSeconds float64 `json:"last_duration_seconds"`
	LastSizeBytes       int64   `json:"last_size_bytes"`
	TotalBackups        int64   `json:"total_backups"`
	TotalFailures       int64   `json:"total_failures"`
}

// Status is the document served on /status.
type Status struct {
	UptimeSeconds       float64        `json:"uptime_seconds"`
	ContainersMonitored int            `json:"containers_monitored"`
	Backups             []StatusBackup `json:"backups"`
}

// BuildStatus renders a snapshot as the status document.
func BuildStatus(v View) Status {
	st := Status{
		UptimeSeconds:       v.Uptime.Seconds(),
		ContainersMonitored: v.Monitored,
		Backups:             make([]StatusBackup, 0, len(v.Records)),
	}
	for _, r := range v.Records {
		b := StatusBackup{
			Target:              r.Target,
			Kind:                r.Kind,
			Database:            r.Database,
			LastSuccess:         successAsBool(r.LastSuccess),
			LastBackup:          timeAsRFC3339(r.LastTimestamp),
			NextBackup:          timeAsRFC3339(r.NextScheduled),
			LastDurationSeconds: r.LastDuration.Seconds(),
			LastSizeBytes:       r.LastSizeBytes,
			TotalBackups:        r.TotalBackups,
			TotalFailures:       r.TotalFailures,
		}
		st.Backups = append(st.Backups, b)
	}
	return st
}

func successAsBool(v int) *bool {
	if v == SuccessNever {
		return nil
	}
	b := v == SuccessTrue
	return &b
}

func timeAsRFC3339(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
