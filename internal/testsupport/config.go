package testsupport

import (
	"path/filepath"
	"testing"

	"labtriage/internal/config"
)

// DefaultPolicy is a small severity policy used by tests.
const DefaultPolicy = `HOSPITAL TRIAGE POLICY
Level 5 (Critical): Hemoglobin < 9 => Critical. Page the on-call physician immediately.
Level 4 (Urgent): Creatinine > 1.5 or a rise of more than 0.5 from baseline => Urgent.
Level 3 (Urgent): WBC > 11000 => Urgent. Review within 24 hours.
Level 1 (Routine): All values within reference range => Routine.
`

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
	policy  *string
}

// NewConfig produces a config seeded with unique temp directories per test.
// The policy file is written with DefaultPolicy unless WithPolicy or
// WithoutPolicyFile is supplied.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.LLM.APIKey = "test"
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.NotesDir = filepath.Join(base, "notes")
	cfgVal.Paths.PolicyFile = filepath.Join(base, "hospital_policy.txt")
	cfgVal.Notifications.NtfyTopic = ""

	policy := DefaultPolicy
	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
		policy:  &policy,
	}
	for _, opt := range opts {
		opt(builder)
	}
	if builder.policy != nil {
		WriteText(t, builder.cfg.Paths.PolicyFile, *builder.policy)
	}
	return builder.cfg
}

// WithPolicy overrides the policy text written for the test.
func WithPolicy(text string) ConfigOption {
	return func(b *configBuilder) {
		b.policy = &text
	}
}

// WithoutPolicyFile leaves the policy path pointing at a missing file.
func WithoutPolicyFile() ConfigOption {
	return func(b *configBuilder) {
		b.policy = nil
	}
}

// WithAPIKey sets the reasoning service key on the test config.
func WithAPIKey(key string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.LLM.APIKey = key
	}
}

// WithNtfyTopic points notifications at the given topic URL.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
