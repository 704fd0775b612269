package testsupport

import (
	"context"
	"sync"
)

// Reasoner is a deterministic stand-in for the reasoning service. Respond
// decides each reply; calls are recorded in order.
type Reasoner struct {
	Respond func(ctx context.Context, call int, prompt string) (string, error)

	mu      sync.Mutex
	prompts []string
}

// Evaluate records prompt and delegates to Respond.
func (r *Reasoner) Evaluate(ctx context.Context, prompt string) (string, error) {
	r.mu.Lock()
	r.prompts = append(r.prompts, prompt)
	call := len(r.prompts)
	r.mu.Unlock()
	if r.Respond == nil {
		return "", nil
	}
	return r.Respond(ctx, call, prompt)
}

// Prompts returns a copy of every prompt received.
func (r *Reasoner) Prompts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.prompts))
	copy(out, r.prompts)
	return out
}

// Calls reports how many prompts were received.
func (r *Reasoner) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.prompts)
}
