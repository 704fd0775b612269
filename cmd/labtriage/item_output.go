package main

import (
	"strconv"
	"strings"
	"time"

	"labtriage/internal/analysis"
	"labtriage/internal/queue"
)

type itemJSON struct {
	ID            string           `json:"id"`
	PatientName   string           `json:"patient_name"`
	PatientAge    int              `json:"patient_age"`
	TestName      string           `json:"test_name"`
	Status        string           `json:"status"`
	Measurements  queue.Payload    `json:"raw_data"`
	History       queue.Payload    `json:"history"`
	RiskLevel     string           `json:"risk_level,omitempty"`
	PolicyTier    string           `json:"policy_tier,omitempty"`
	Summary       string           `json:"summary,omitempty"`
	FinalStatus   string           `json:"final_status,omitempty"`
	NotePath      string           `json:"note_path,omitempty"`
	ErrorMessage  string           `json:"error_message,omitempty"`
	Claimed       bool             `json:"claimed"`
	LastHeartbeat *time.Time       `json:"last_heartbeat,omitempty"`
	Analysis      *analysis.Result `json:"analysis,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

func toItemJSON(item *queue.Item) itemJSON {
	out := itemJSON{
		ID:            item.ID,
		PatientName:   item.PatientName,
		PatientAge:    item.PatientAge,
		TestName:      item.TestName,
		Status:        string(item.Status),
		Measurements:  item.Measurements,
		History:       item.History,
		RiskLevel:     item.RiskLevel,
		PolicyTier:    item.PolicyTier,
		Summary:       item.Summary,
		FinalStatus:   item.FinalStatus,
		NotePath:      item.NotePath,
		ErrorMessage:  item.ErrorMessage,
		Claimed:       item.Claimed(),
		LastHeartbeat: item.LastHeartbeat,
		CreatedAt:     item.CreatedAt,
		UpdatedAt:     item.UpdatedAt,
	}
	if result, ok := storedAnalysis(item); ok {
		out.Analysis = &result
	}
	return out
}

func storedAnalysis(item *queue.Item) (analysis.Result, bool) {
	if strings.TrimSpace(item.AnalysisJSON) == "" {
		return analysis.Result{}, false
	}
	result, err := analysis.FromJSON(item.AnalysisJSON)
	if err != nil {
		return analysis.Result{}, false
	}
	return result, true
}

func itemDetails(item *queue.Item, colorize bool) [][2]string {
	rows := [][2]string{
		{"ID", item.ID},
		{"Patient", item.PatientName},
		{"Age", strconv.Itoa(item.PatientAge)},
		{"Test", item.TestName},
		{"Status", item.Status.Label()},
		{"Result", valueOrDash(item.FinalStatus)},
		{"Risk", colorRisk(item.RiskLevel, colorize)},
		{"Tier", valueOrDash(item.PolicyTier)},
		{"Summary", valueOrDash(item.Summary)},
		{"Data", valueOrDash(item.Measurements.String())},
		{"History", valueOrDash(item.History.String())},
	}
	if result, ok := storedAnalysis(item); ok {
		if len(result.Findings) > 0 {
			rows = append(rows, [2]string{"Findings", "- " + strings.Join(result.Findings, "\n- ")})
		}
		if result.Citation != "" {
			citation := result.Citation
			if !result.CitationVerified {
				citation += " (not found in policy)"
			}
			rows = append(rows, [2]string{"Citation", citation})
		}
		if result.Explanation != "" {
			rows = append(rows, [2]string{"Explanation", result.Explanation})
		}
		if result.FailureReason != "" {
			rows = append(rows, [2]string{"Analysis failure", result.FailureKind + ": " + result.FailureReason})
		}
	}
	rows = append(rows,
		[2]string{"Note", valueOrDash(item.NotePath)},
		[2]string{"Error", valueOrDash(item.ErrorMessage)},
		[2]string{"Claimed", yesNo(item.Claimed())},
		[2]string{"Updated", item.UpdatedAt.Local().Format(time.DateTime)},
	)
	return rows
}
