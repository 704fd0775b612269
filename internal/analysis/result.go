package analysis

import (
	"encoding/json"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// RiskLevel is the severity assigned to one result.
type RiskLevel string

const (
	RiskRoutine  RiskLevel = "Routine"
	RiskUrgent   RiskLevel = "Urgent"
	RiskCritical RiskLevel = "Critical"
	// RiskUnknown marks a sentinel result.
	RiskUnknown RiskLevel = "Unknown"
)

// FailureSummary is the summary carried by every sentinel result.
const FailureSummary = "AI Analysis Failed"

// UnknownTier is the policy tier carried by every sentinel result.
const UnknownTier = "Unknown"

// cases.Caser is stateful, so each call builds its own.
func titleCase(value string) string {
	return cases.Title(language.English).String(value)
}

// ParseRisk maps a model-supplied risk label onto one of the three known
// levels, ignoring case and surrounding whitespace.
func ParseRisk(value string) (RiskLevel, bool) {
	normalized := RiskLevel(titleCase(strings.TrimSpace(value)))
	switch normalized {
	case RiskRoutine, RiskUrgent, RiskCritical:
		return normalized, true
	default:
		return "", false
	}
}

// NormalizeTier collapses whitespace and upper-cases the first letter of each
// word, so "level 5" becomes "Level 5" while labels such as "ICU" or
// "Tier IV-STAT" keep the casing the policy uses.
func NormalizeTier(value string) string {
	words := strings.Fields(value)
	for i, word := range words {
		first, size := utf8.DecodeRuneInString(word)
		words[i] = string(unicode.ToUpper(first)) + word[size:]
	}
	return strings.Join(words, " ")
}

// Result is the judgment produced for one work item.
type Result struct {
	Findings    []string  `json:"findings"`
	RiskLevel   RiskLevel `json:"risk_level"`
	PolicyTier  string    `json:"policy_level"`
	Summary     string    `json:"summary"`
	Citation    string    `json:"policy_citation"`
	Explanation string    `json:"analogy,omitempty"`

	CitationVerified bool   `json:"citation_verified"`
	FailureKind      string `json:"failure_kind,omitempty"`
	FailureReason    string `json:"failure_reason,omitempty"`
}

// Sentinel builds the well-formed "Unknown" result substituted when a real
// judgment cannot be obtained.
func Sentinel(kind, reason string) Result {
	return Result{
		Findings:      []string{},
		RiskLevel:     RiskUnknown,
		PolicyTier:    UnknownTier,
		Summary:       FailureSummary,
		FailureKind:   strings.TrimSpace(kind),
		FailureReason: strings.TrimSpace(reason),
	}
}

// IsSentinel reports whether r stands in for a failed analysis.
func (r Result) IsSentinel() bool {
	return r.RiskLevel == RiskUnknown
}

// JSON encodes r for storage on the work item.
func (r Result) JSON() string {
	if r.Findings == nil {
		r.Findings = []string{}
	}
	data, err := json.Marshal(r)
	if err != nil {
		return ""
	}
	return string(data)
}

// FromJSON decodes a result stored on a work item.
func FromJSON(raw string) (Result, error) {
	var r Result
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return Result{}, err
	}
	if r.Findings == nil {
		r.Findings = []string{}
	}
	return r, nil
}
