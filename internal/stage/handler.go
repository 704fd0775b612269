package stage

import (
	"context"
)

// Checker is implemented by workflow components that can report readiness.
type Checker interface {
	HealthCheck(context.Context) Health
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(context.Context) Health

// HealthCheck calls f.
func (f CheckerFunc) HealthCheck(ctx context.Context) Health {
	return f(ctx)
}

// RunChecks evaluates every checker in order. Nil checkers are skipped.
func RunChecks(ctx context.Context, checkers ...Checker) []Health {
	results := make([]Health, 0, len(checkers))
	for _, checker := range checkers {
		if checker == nil {
			continue
		}
		results = append(results, checker.HealthCheck(ctx))
	}
	return results
}

// AllReady reports whether every result is ready.
func AllReady(results []Health) bool {
	for _, result := range results {
		if !result.Ready {
			return false
		}
	}
	return true
}
