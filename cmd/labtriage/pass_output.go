package main

import (
	"fmt"
	"io"
	"time"

	"labtriage/internal/workflow"
)

type passOutcomeJSON struct {
	ItemID      string `json:"item_id"`
	PatientName string `json:"patient_name"`
	TestName    string `json:"test_name"`
	Status      string `json:"status"`
	FinalStatus string `json:"final_status,omitempty"`
	RiskLevel   string `json:"risk_level,omitempty"`
	PolicyTier  string `json:"policy_tier,omitempty"`
	Summary     string `json:"summary,omitempty"`
	NotePath    string `json:"note_path,omitempty"`
	Skipped     bool   `json:"skipped,omitempty"`
}

type passSummaryJSON struct {
	PassID     string            `json:"pass_id"`
	StartedAt  time.Time         `json:"started_at"`
	DurationMS int64             `json:"duration_ms"`
	Processed  int               `json:"processed"`
	Failed     int               `json:"failed"`
	Skipped    int               `json:"skipped"`
	Remaining  int               `json:"remaining"`
	Outcomes   []passOutcomeJSON `json:"outcomes"`
	Messages   []string          `json:"messages"`
}

func toPassJSON(summary workflow.Summary) passSummaryJSON {
	out := passSummaryJSON{
		PassID:     summary.PassID,
		StartedAt:  summary.StartedAt.UTC(),
		DurationMS: summary.Duration.Milliseconds(),
		Processed:  summary.Processed,
		Failed:     summary.Failed,
		Skipped:    summary.Skipped,
		Remaining:  summary.Remaining,
		Outcomes:   make([]passOutcomeJSON, 0, len(summary.Outcomes)),
		Messages:   append([]string{}, summary.Messages...),
	}
	for _, o := range summary.Outcomes {
		out.Outcomes = append(out.Outcomes, passOutcomeJSON{
			ItemID:      o.ItemID,
			PatientName: o.PatientName,
			TestName:    o.TestName,
			Status:      string(o.Status),
			FinalStatus: o.FinalStatus,
			RiskLevel:   o.RiskLevel,
			PolicyTier:  o.PolicyTier,
			Summary:     o.Summary,
			NotePath:    o.NotePath,
			Skipped:     o.Skipped,
		})
	}
	return out
}

func printPassSummary(w io.Writer, summary workflow.Summary, colorize bool) {
	if summary.Total() == 0 {
		fmt.Fprintln(w, "No pending results")
		return
	}
	rows := make([][]string, 0, len(summary.Outcomes))
	for _, o := range summary.Outcomes {
		finalStatus := o.FinalStatus
		if o.Skipped && finalStatus == "" {
			finalStatus = workflow.StatusSkipped
		}
		rows = append(rows, []string{
			o.ItemID,
			valueOrDash(o.PatientName),
			valueOrDash(o.TestName),
			colorRisk(o.RiskLevel, colorize),
			valueOrDash(o.PolicyTier),
			valueOrDash(finalStatus),
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"ID", "Patient", "Test", "Risk", "Tier", "Result"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
	))
	fmt.Fprintln(w, passLine(summary))
}

func passLine(summary workflow.Summary) string {
	line := fmt.Sprintf("Pass %s: %d processed, %d failed, %d skipped in %s",
		shortPassID(summary.PassID), summary.Processed, summary.Failed, summary.Skipped,
		summary.Duration.Round(time.Millisecond))
	if summary.Remaining > 0 {
		line += fmt.Sprintf(" (%d left in queue)", summary.Remaining)
	}
	return line
}

func shortPassID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
