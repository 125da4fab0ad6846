// Package policy turns container backup labels into validated backup
// policies and owns the cron scheduling math attached to them.
package policy

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/robfig/cron"
)

// Label suffixes recognized under the configured prefix.
const (
	labelEnable       = "enable"
	labelType         = "type"
	labelSchedule     = "schedule"
	labelDatabase     = "database"
	labelUser         = "user"
	labelPassword     = "password"
	labelPasswordFile = "password-file"
	labelHost         = "host"
	labelPort         = "port"
	labelRetention    = "retention"
	labelCompression  = "compression"
	labelExtraArgs    = "extra-args"
)

const (
	// DefaultSchedule is used when a target enables backups without
	// declaring a schedule: daily at 2am.
	DefaultSchedule = "0 2 * * *"

	// AllDatabases is the sentinel database name selecting a whole-server
	// dump.
	AllDatabases = "all"

	defaultRetentionDays = 7
)

// Policy is the resolved backup configuration for one discovered target.
// LastRun and NextRun are the only fields that change after construction.
type Policy struct {
	TargetID      string
	TargetName    string
	Kind          Kind
	Schedule      string
	Database      string
	User          string
	Password      string
	Host          string
	Port          int
	RetentionDays int
	Compression   Compression
	ExtraArgs     []string

	LastRun time.Time
	NextRun time.Time
}

// Enabled reports whether the labels opt the target into backups.
func Enabled(labels map[string]string, prefix string) bool {
	return strings.EqualFold(labels[prefix+"."+labelEnable], "true")
}

// FromLabels builds a Policy from a target's labels. Kind, port, retention
// and compression problems fail construction with a *ConfigError and no
// policy. An unparseable schedule also returns a *ConfigError, but together
// with the constructed policy: the target stays visible (listings, metrics)
// while remaining inert, with no next run, until the label is fixed.
func FromLabels(id, name string, labels map[string]string, prefix string, now time.Time) (*Policy, error) {
	get := func(suffix string) string {
		return labels[prefix+"."+suffix]
	}

	kind, ok := NormalizeKind(get(labelType))
	if !ok {
		return nil, &ConfigError{Target: name, Field: labelType, Value: get(labelType)}
	}

	p := &Policy{
		TargetID:   id,
		TargetName: name,
		Kind:       kind,
		Schedule:   get(labelSchedule),
		Database:   get(labelDatabase),
		User:       get(labelUser),
		Password:   resolvePassword(get(labelPassword), get(labelPasswordFile)),
		Host:       get(labelHost),
		ExtraArgs:  strings.Fields(get(labelExtraArgs)),
	}
	if p.Schedule == "" {
		p.Schedule = DefaultSchedule
	}
	if p.Database == "" {
		p.Database = AllDatabases
	}
	if p.Host == "" {
		p.Host = name
	}

	port, err := nat.ParsePort(get(labelPort))
	if err != nil {
		return nil, &ConfigError{Target: name, Field: labelPort, Value: get(labelPort), Err: err}
	}
	p.Port = port
	if p.Port == 0 {
		p.Port = kind.DefaultPort()
	}

	p.RetentionDays = defaultRetentionDays
	if raw := get(labelRetention); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil {
			return nil, &ConfigError{Target: name, Field: labelRetention, Value: raw, Err: err}
		}
		p.RetentionDays = days
	}

	compression, ok := ParseCompression(get(labelCompression))
	if !ok {
		return nil, &ConfigError{Target: name, Field: labelCompression, Value: get(labelCompression)}
	}
	p.Compression = compression

	if err := p.RecomputeNextRun(now); err != nil {
		return p, err
	}
	return p, nil
}

// resolvePassword prefers the password file when it is set and readable,
// falling back to the direct label value.
func resolvePassword(password, passwordFile string) string {
	if passwordFile != "" {
		if content, err := os.ReadFile(passwordFile); err == nil {
			return strings.TrimSpace(string(content))
		}
	}
	return password
}

// RecomputeNextRun sets NextRun to the earliest cron instant strictly after
// now. It is deterministic and idempotent for a given schedule and instant.
// When the schedule does not parse, NextRun is cleared so the policy is
// never due, and a *ConfigError is returned.
func (p *Policy) RecomputeNextRun(now time.Time) error {
	schedule, err := cron.ParseStandard(p.Schedule)
	if err != nil {
		p.NextRun = time.Time{}
		return &ConfigError{Target: p.TargetName, Field: labelSchedule, Value: p.Schedule, Err: err}
	}
	p.NextRun = schedule.Next(now)
	return nil
}

// Due reports whether the policy's next run instant has elapsed.
func (p *Policy) Due(now time.Time) bool {
	return !p.NextRun.IsZero() && !now.Before(p.NextRun)
}

// BackupDir returns the directory holding this target's artifacts under the
// given backup root.
func (p *Policy) BackupDir(root string) string {
	return filepath.Join(root, p.TargetName, p.Kind.String())
}
