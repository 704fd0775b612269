package workflow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"labtriage/internal/config"
	"labtriage/internal/logging"
	"labtriage/internal/notifications"
	"labtriage/internal/queue"
	"labtriage/internal/testsupport"
)

const criticalAnalysis = `{
  "findings": ["Hemoglobin 8.5 g/dL is below 9"],
  "risk_level": "Critical",
  "policy_level": "Level 5",
  "summary": "Severe anemia",
  "policy_citation": "Hemoglobin < 9 => Critical",
  "analogy": "Too few delivery trucks for the oxygen."
}`

const routineAnalysis = `{"findings":["All values in range"],"risk_level":"Routine","policy_level":"Level 1","summary":"Normal study","policy_citation":"All values within reference range => Routine"}`

const noteBody = "Findings: Hemoglobin 8.5 g/dL.\nAssessment: Severe anemia.\nSuggested Action: Page the on-call physician."

var errServiceDown = errors.New("503 service unavailable")

func isNotePrompt(prompt string) bool {
	return strings.HasPrefix(prompt, "Write a professional")
}

// scriptedReasoner answers analysis prompts with analysisReply and note
// prompts with noteBody, or noteErr when set.
func scriptedReasoner(analysisReply string, noteErr error) *testsupport.Reasoner {
	return &testsupport.Reasoner{Respond: func(_ context.Context, _ int, prompt string) (string, error) {
		if isNotePrompt(prompt) {
			if noteErr != nil {
				return "", noteErr
			}
			return noteBody, nil
		}
		return analysisReply, nil
	}}
}

type recordingNotifier struct {
	mu       sync.Mutex
	events   []notifications.Event
	payloads []notifications.Payload
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	r.payloads = append(r.payloads, payload)
	return nil
}

func (r *recordingNotifier) Events() []notifications.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notifications.Event(nil), r.events...)
}

type testEnv struct {
	cfg      *config.Config
	store    *queue.Store
	engine   *Engine
	notifier *recordingNotifier
}

func newTestEnv(t *testing.T, reasoner Reasoner, opts ...Option) *testEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	notifier := &recordingNotifier{}
	opts = append([]Option{WithNotifier(notifier)}, opts...)
	return &testEnv{
		cfg:      cfg,
		store:    store,
		engine:   NewEngine(cfg, store, reasoner, logging.NewNop(), opts...),
		notifier: notifier,
	}
}

func anemia() map[string]any {
	return map[string]any{"Hemoglobin": 8.5, "WBC": 14200}
}
