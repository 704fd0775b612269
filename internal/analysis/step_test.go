package analysis_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labtriage/internal/analysis"
	"labtriage/internal/logging"
	"labtriage/internal/policy"
	"labtriage/internal/queue"
	"labtriage/internal/services"
	"labtriage/internal/testsupport"
)

const hemoglobinPolicy = "Level 5: Hemoglobin < 9 => Critical\nLevel 1: Normal values => Routine"

func anemiaItem() *queue.Item {
	return &queue.Item{
		ID:           "blood-test-1",
		PatientName:  "Priya Sharma",
		PatientAge:   47,
		TestName:     "Blood Count (CBC)",
		Status:       queue.StatusInProgress,
		Measurements: queue.ValuesPayload(map[string]any{"Hemoglobin": 8.5, "WBC": 14200, "Platelets": 150000}),
		History:      queue.ValuesPayload(map[string]any{"WBC": 6000}),
	}
}

func reply(text string) *testsupport.Reasoner {
	return &testsupport.Reasoner{Respond: func(context.Context, int, string) (string, error) { return text, nil }}
}

func TestAnalyzeGroundsCriticalResultInPolicy(t *testing.T) {
	reasoner := reply("```json\n" + `{
  "findings": ["Hemoglobin 8.5 g/dL is below threshold", "WBC elevated vs history"],
  "risk_level": "critical",
  "policy_level": "level 5",
  "summary": "Severe anemia with leukocytosis",
  "policy_citation": "Hemoglobin < 9 => Critical",
  "analogy": "Your blood is like a delivery truck fleet that is short on trucks."
}` + "\n```")
	step := analysis.NewStep(reasoner, policy.StaticSource(hemoglobinPolicy), time.Second, logging.NewNop())

	result := step.Analyze(context.Background(), anemiaItem())

	assert.Equal(t, analysis.RiskCritical, result.RiskLevel)
	assert.Equal(t, "Level 5", result.PolicyTier)
	assert.Contains(t, hemoglobinPolicy, result.Citation)
	assert.True(t, result.CitationVerified)
	assert.Len(t, result.Findings, 2)
	assert.NotEmpty(t, result.Explanation)
	assert.False(t, result.IsSentinel())

	prompts := reasoner.Prompts()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], hemoglobinPolicy)
	assert.Contains(t, prompts[0], `"Hemoglobin":8.5`)
	assert.Contains(t, prompts[0], "Priya Sharma (47 years old)")
	assert.Contains(t, prompts[0], `"WBC":6000`)
}

func TestAnalyzeMalformedResponseYieldsSentinel(t *testing.T) {
	step := analysis.NewStep(reply("I think this patient is fine."), policy.StaticSource(hemoglobinPolicy), time.Second, logging.NewNop())

	result := step.Analyze(context.Background(), anemiaItem())

	assert.True(t, result.IsSentinel())
	assert.Equal(t, analysis.RiskUnknown, result.RiskLevel)
	assert.NotNil(t, result.Findings)
	assert.Empty(t, result.Findings)
	assert.Equal(t, analysis.FailureSummary, result.Summary)
	assert.Equal(t, "malformed_response", result.FailureKind)
}

func TestAnalyzeRejectsUnknownRiskAndEmptyTier(t *testing.T) {
	cases := map[string]string{
		"unknown risk": `{"risk_level":"High","policy_level":"Level 4","summary":"x"}`,
		"empty tier":   `{"risk_level":"Urgent","policy_level":"  ","summary":"x"}`,
		"missing risk": `{"policy_level":"Level 4","summary":"x"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			step := analysis.NewStep(reply(body), policy.StaticSource(hemoglobinPolicy), time.Second, logging.NewNop())
			result := step.Analyze(context.Background(), anemiaItem())
			assert.True(t, result.IsSentinel())
			assert.Empty(t, result.Findings)
		})
	}
}

func TestAnalyzeServiceFailureYieldsSentinel(t *testing.T) {
	reasoner := &testsupport.Reasoner{Respond: func(context.Context, int, string) (string, error) {
		return "", errors.New("connection refused")
	}}
	step := analysis.NewStep(reasoner, policy.StaticSource(hemoglobinPolicy), time.Second, logging.NewNop())

	result := step.Analyze(context.Background(), anemiaItem())

	assert.True(t, result.IsSentinel())
	assert.Equal(t, "external_service", result.FailureKind)
	assert.Contains(t, result.FailureReason, "connection refused")
}

func TestAnalyzeTimeoutYieldsSentinel(t *testing.T) {
	reasoner := &testsupport.Reasoner{Respond: func(ctx context.Context, _ int, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	step := analysis.NewStep(reasoner, policy.StaticSource(hemoglobinPolicy), 20*time.Millisecond, logging.NewNop())

	done := make(chan analysis.Result, 1)
	go func() { done <- step.Analyze(context.Background(), anemiaItem()) }()

	select {
	case result := <-done:
		assert.True(t, result.IsSentinel())
		assert.Equal(t, "timeout", result.FailureKind)
	case <-time.After(5 * time.Second):
		t.Fatal("analysis did not honour its timeout")
	}
}

func TestAnalyzePolicyUnavailableSkipsReasoner(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutPolicyFile())
	reasoner := reply(`{"risk_level":"Routine","policy_level":"Level 1","summary":"ok"}`)
	step := analysis.NewStep(reasoner, policy.NewFileSource(cfg.Paths.PolicyFile), time.Second, logging.NewNop())

	result := step.Analyze(context.Background(), anemiaItem())

	assert.True(t, result.IsSentinel())
	assert.Equal(t, "configuration", result.FailureKind)
	assert.Zero(t, reasoner.Calls())
}

func TestParseUnverifiedCitationIsKept(t *testing.T) {
	result, err := analysis.Parse(`{"findings":["Creatinine 2.1"],"risk_level":"URGENT","policy_level":"Level 4","summary":"AKI","policy_citation":"\"Creatinine above 2 is urgent\""}`, hemoglobinPolicy)
	require.NoError(t, err)
	assert.Equal(t, analysis.RiskUrgent, result.RiskLevel)
	assert.Equal(t, "Creatinine above 2 is urgent", result.Citation)
	assert.False(t, result.CitationVerified)
}

func TestParseFillsMissingSummaryAndDropsBlankFindings(t *testing.T) {
	result, err := analysis.Parse(`{"findings":["  ", "Endometrium 4mm", null],"risk_level":"Routine","policy_level":"Level 1"}`, "Level 1: Normal")
	require.NoError(t, err)
	assert.Equal(t, []string{"Endometrium 4mm"}, result.Findings)
	assert.Equal(t, "Endometrium 4mm", result.Summary)
}

func TestParseKeepsPolicyTierCasing(t *testing.T) {
	for input, want := range map[string]string{
		"level 5":        "Level 5",
		"  Level   4 ":   "Level 4",
		"ICU":            "ICU",
		"Tier IV-STAT":   "Tier IV-STAT",
		"tier iv-STAT":   "Tier Iv-STAT",
		"ébauche niveau": "Ébauche Niveau",
	} {
		result, err := analysis.Parse(`{"risk_level":"Urgent","policy_level":"`+input+`","summary":"x"}`, hemoglobinPolicy)
		require.NoError(t, err, input)
		assert.Equal(t, want, result.PolicyTier, input)
	}
}

func TestParseMalformedIsTagged(t *testing.T) {
	_, err := analysis.Parse("", hemoglobinPolicy)
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrMalformedResponse))
}

func TestResultJSONRoundTrip(t *testing.T) {
	sentinel := analysis.Sentinel("timeout", "slow")
	encoded := sentinel.JSON()
	assert.True(t, strings.Contains(encoded, `"findings":[]`))
	assert.True(t, strings.Contains(encoded, `"risk_level":"Unknown"`))

	decoded, err := analysis.FromJSON(encoded)
	require.NoError(t, err)
	assert.Equal(t, sentinel, decoded)
}

func TestParseRisk(t *testing.T) {
	for input, want := range map[string]analysis.RiskLevel{
		"routine":  analysis.RiskRoutine,
		" Urgent ": analysis.RiskUrgent,
		"CRITICAL": analysis.RiskCritical,
	} {
		got, ok := analysis.ParseRisk(input)
		assert.True(t, ok, input)
		assert.Equal(t, want, got, input)
	}
	_, ok := analysis.ParseRisk("Unknown")
	assert.False(t, ok)
}
