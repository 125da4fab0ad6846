package registry

import "context"

// Target is one running workload visible to the reconciler: a stable ID, a
// human-readable name and whatever labels the workload carries.
type Target struct {
	ID     string
	Name   string
	Labels map[string]string
}

// Registry yields the running targets whose labels drive reconciliation.
type Registry interface {
	ListTargets(ctx context.Context) ([]Target, error)
}
