package analysis

import (
	"fmt"
	"strings"

	"labtriage/internal/policy"
	"labtriage/internal/services"
	"labtriage/internal/services/llm"
)

type rawResult struct {
	Findings    []any  `json:"findings"`
	RiskLevel   string `json:"risk_level"`
	PolicyTier  string `json:"policy_level"`
	Summary     string `json:"summary"`
	Citation    string `json:"policy_citation"`
	Explanation string `json:"analogy"`
}

// Parse decodes a model response into a validated Result. Code fences and
// surrounding prose are stripped first. The citation is checked against
// policyText but an unverified citation is not an error.
func Parse(raw, policyText string) (Result, error) {
	var decoded rawResult
	if err := llm.DecodeLLMJSON(raw, &decoded); err != nil {
		return Result{}, services.Wrap(services.ErrMalformedResponse, "analysis", "decode", "response is not the expected JSON object", err)
	}

	risk, ok := ParseRisk(decoded.RiskLevel)
	if !ok {
		return Result{}, services.Wrap(services.ErrMalformedResponse, "analysis", "validate",
			fmt.Sprintf("risk_level %q is not one of Routine, Urgent, Critical", decoded.RiskLevel), nil)
	}
	tier := NormalizeTier(decoded.PolicyTier)
	if tier == "" {
		return Result{}, services.Wrap(services.ErrMalformedResponse, "analysis", "validate", "policy_level is empty", nil)
	}

	result := Result{
		Findings:    normalizeFindings(decoded.Findings),
		RiskLevel:   risk,
		PolicyTier:  tier,
		Summary:     strings.TrimSpace(decoded.Summary),
		Citation:    trimCitation(decoded.Citation),
		Explanation: strings.TrimSpace(decoded.Explanation),
	}
	if result.Summary == "" {
		result.Summary = fallbackSummary(result)
	}
	result.CitationVerified = policy.ContainsCitation(policyText, result.Citation)
	return result, nil
}

func normalizeFindings(values []any) []string {
	findings := make([]string, 0, len(values))
	for _, value := range values {
		var text string
		switch v := value.(type) {
		case string:
			text = v
		case nil:
			continue
		default:
			text = fmt.Sprint(v)
		}
		if text = strings.TrimSpace(text); text != "" {
			findings = append(findings, text)
		}
	}
	return findings
}

func trimCitation(value string) string {
	value = strings.TrimSpace(value)
	value = strings.Trim(value, "\"'“”")
	return strings.TrimSpace(value)
}

func fallbackSummary(r Result) string {
	if len(r.Findings) > 0 {
		return r.Findings[0]
	}
	return fmt.Sprintf("%s result under %s", r.RiskLevel, r.PolicyTier)
}
