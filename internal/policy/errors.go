package policy

import "fmt"

// ConfigError reports an invalid backup label on a single target. It never
// aborts reconciliation of other targets: the caller skips (or idles) the
// offending target and keeps going.
type ConfigError struct {
	Target string
	Field  string
	Value  string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("target %s: invalid %s %q: %v", e.Target, e.Field, e.Value, e.Err)
	}
	if e.Value == "" {
		return fmt.Sprintf("target %s: missing %s", e.Target, e.Field)
	}
	return fmt.Sprintf("target %s: invalid %s %q", e.Target, e.Field, e.Value)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
