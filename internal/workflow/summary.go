package workflow

import (
	"time"

	"labtriage/internal/analysis"
	"labtriage/internal/queue"
)

// Outcome records what a pass did with one item.
type Outcome struct {
	ItemID      string
	PatientName string
	TestName    string
	Status      queue.Status
	FinalStatus string
	RiskLevel   string
	PolicyTier  string
	Summary     string
	NotePath    string
	Skipped     bool
}

// Summary reports a finished (or stopped) pass.
type Summary struct {
	PassID    string
	StartedAt time.Time
	Duration  time.Duration
	Processed int
	Failed    int
	Skipped   int
	// Remaining is the queue length when the pass ended; zero unless it stopped early.
	Remaining int
	Outcomes  []Outcome
	Messages  []string
}

func newSummary(passID string) Summary {
	return Summary{PassID: passID, StartedAt: time.Now()}
}

func newOutcome(item *queue.Item, result *analysis.Result) Outcome {
	outcome := Outcome{
		ItemID:      item.ID,
		PatientName: item.PatientName,
		TestName:    item.TestName,
		Status:      item.Status,
		FinalStatus: item.FinalStatus,
		NotePath:    item.NotePath,
		Summary:     item.Summary,
	}
	if result != nil {
		outcome.RiskLevel = string(result.RiskLevel)
		outcome.PolicyTier = result.PolicyTier
		outcome.Summary = result.Summary
	}
	return outcome
}

func (s *Summary) record(outcome Outcome) {
	s.Outcomes = append(s.Outcomes, outcome)
	switch {
	case outcome.Skipped:
		s.Skipped++
	case outcome.Status == queue.StatusFailed:
		s.Failed++
	default:
		s.Processed++
	}
}

func (s *Summary) finish(state State) {
	s.Duration = time.Since(s.StartedAt)
	s.Remaining = len(state.Queue)
	s.Messages = append([]string(nil), state.Messages...)
}

// Total is the number of items the pass dequeued.
func (s Summary) Total() int {
	return s.Processed + s.Failed + s.Skipped
}
