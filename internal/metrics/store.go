// Package metrics retains the outcome and scheduling state of every backup
// target ever seen by the manager, and renders it for Prometheus scrapes and
// the JSON status endpoint.
package metrics

import (
	"sort"
	"sync"
	"time"
)

// Last-outcome sentinel values. Never-run records keep -1 so dashboards can
// tell "no backup yet" from "last backup failed".
const (
	SuccessNever = -1
	SuccessFalse = 0
	SuccessTrue  = 1
)

// Record is the retained backup state for one (target, database) pair.
// Records are never deleted: a target that disappears from the registry
// keeps its last known state here until the process restarts.
type Record struct {
	Target        string
	Kind          string
	Database      string
	LastSuccess   int
	LastTimestamp time.Time
	LastDuration  time.Duration
	LastSizeBytes int64
	NextScheduled time.Time
	TotalBackups  int64
	TotalFailures int64
}

type recordKey struct {
	target   string
	database string
}

// Store is the lock-guarded aggregate shared by the scheduler loop and the
// status server. The mutex is held only across map access and copying,
// never across a dump subprocess.
type Store struct {
	mu        sync.Mutex
	records   map[recordKey]*Record
	monitored int
	startTime time.Time
	nowFn     func() time.Time
}

// NewStore creates an empty store; uptime counts from this instant.
func NewStore() *Store {
	return &Store{
		records:   make(map[recordKey]*Record),
		startTime: time.Now(),
		nowFn:     time.Now,
	}
}

// Init registers a target before its first backup. A new record carries the
// never-run sentinel; an existing one only has its kind and next scheduled
// time refreshed.
func (s *Store) Init(target, kind, database string, next time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := recordKey{target: target, database: database}
	if r, ok := s.records[k]; ok {
		r.Kind = kind
		r.NextScheduled = next
		return
	}
	s.records[k] = &Record{
		Target:        target,
		Kind:          kind,
		Database:      database,
		LastSuccess:   SuccessNever,
		NextScheduled: next,
	}
}

// Record stores the outcome of one backup execution, bumping the attempt
// counter and, on failure, the failure counter.
func (s *Store) Record(target, kind, database string, success bool, duration time.Duration, size int64, next time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := recordKey{target: target, database: database}
	r, ok := s.records[k]
	if !ok {
		r = &Record{Target: target, Database: database}
		s.records[k] = r
	}

	r.Kind = kind
	r.LastSuccess = SuccessTrue
	if !success {
		r.LastSuccess = SuccessFalse
		r.TotalFailures++
	}
	r.LastTimestamp = s.nowFn()
	r.LastDuration = duration
	r.LastSizeBytes = size
	r.NextScheduled = next
	r.TotalBackups++
}

// SetMonitored records how many targets the last reconciliation produced.
func (s *Store) SetMonitored(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.monitored = n
}

// View is a consistent point-in-time copy of the store, taken under one
// lock acquisition. Now is the instant of the snapshot, used for the
// derived seconds-until/seconds-since values.
type View struct {
	Now       time.Time
	Uptime    time.Duration
	Monitored int
	Records   []Record
}

// Snapshot copies the whole store. Records are sorted by target then
// database so exposition and status output are stable.
func (s *Store) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFn()
	v := View{
		Now:       now,
		Uptime:    now.Sub(s.startTime),
		Monitored: s.monitored,
		Records:   make([]Record, 0, len(s.records)),
	}
	for _, r := range s.records {
		v.Records = append(v.Records, *r)
	}
	sort.Slice(v.Records, func(i, j int) bool {
		if v.Records[i].Target != v.Records[j].Target {
			return v.Records[i].Target < v.Records[j].Target
		}
		return v.Records[i].Database < v.Records[j].Database
	})
	return v
}
