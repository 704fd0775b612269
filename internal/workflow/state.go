package workflow

import (
	"labtriage/internal/analysis"
	"labtriage/internal/queue"
)

// Phase names a state of the pass state machine.
type Phase string

const (
	PhaseStart     Phase = "start"
	PhaseFetching  Phase = "fetching"
	PhaseDeciding  Phase = "deciding"
	PhaseAnalyzing Phase = "analyzing"
	PhaseDrafting  Phase = "drafting"
	PhaseEnd       Phase = "end"
)

// Final status labels recorded for items that do not get a risk level.
const (
	StatusNoteFailed = "Processed (note-failed)"
	StatusUnknown    = "Failed (Unknown)"
	StatusSkipped    = "Skipped"
	StatusClaimLost  = "Skipped (claim lost)"
)

// State is the loop-carried state of one pass. Current and Result are only
// set while an item is between Analyzing and the end of Drafting.
type State struct {
	Phase       Phase
	Queue       []*queue.Item
	Fetched     bool
	Current     *queue.Item
	Result      *analysis.Result
	FinalStatus string
	Messages    []string
}

// Update is the output of one step. Zero fields leave the state unchanged
// unless the matching Replace flag is set.
type Update struct {
	Phase Phase

	Queue        []*queue.Item
	ReplaceQueue bool
	Fetched      bool

	Current        *queue.Item
	Result         *analysis.Result
	ReplaceCurrent bool

	FinalStatus string
	Messages    []string
}

// Apply merges u into s. Messages accumulate; every other field is replaced.
func (s State) Apply(u Update) State {
	return State{
		Phase:       replacePhase(s.Phase, u.Phase),
		Queue:       replaceQueue(s.Queue, u),
		Fetched:     s.Fetched || u.Fetched,
		Current:     replaceCurrent(s.Current, u),
		Result:      replaceResult(s.Result, u),
		FinalStatus: replaceString(s.FinalStatus, u.FinalStatus),
		Messages:    appendMessages(s.Messages, u.Messages),
	}
}

// shouldContinue is the single continuation decision of the state machine.
func shouldContinue(s State) Phase {
	if len(s.Queue) == 0 {
		return PhaseEnd
	}
	return PhaseAnalyzing
}

func replacePhase(current, next Phase) Phase {
	if next == "" {
		return current
	}
	return next
}

func replaceQueue(current []*queue.Item, u Update) []*queue.Item {
	if !u.ReplaceQueue {
		return current
	}
	out := make([]*queue.Item, len(u.Queue))
	copy(out, u.Queue)
	return out
}

func replaceCurrent(current *queue.Item, u Update) *queue.Item {
	if !u.ReplaceCurrent {
		return current
	}
	return u.Current
}

func replaceResult(current *analysis.Result, u Update) *analysis.Result {
	if !u.ReplaceCurrent {
		return current
	}
	return u.Result
}

func replaceString(current, next string) string {
	if next == "" {
		return current
	}
	return next
}

func appendMessages(current, next []string) []string {
	if len(next) == 0 {
		return current
	}
	out := make([]string, 0, len(current)+len(next))
	out = append(out, current...)
	return append(out, next...)
}
