package notes

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"labtriage/internal/analysis"
	"labtriage/internal/logging"
	"labtriage/internal/queue"
	"labtriage/internal/services"
)

// Section headings every drafted note is asked to contain.
var Sections = []string{"Findings", "Assessment", "Suggested Action"}

// Reasoner is the text-in/text-out reasoning capability.
type Reasoner interface {
	Evaluate(ctx context.Context, prompt string) (string, error)
}

// Note is a drafted clinical note. The body is free text.
type Note struct {
	Body   string
	Length int
}

// Drafter asks the reasoning service for a clinical note.
type Drafter struct {
	reasoner Reasoner
	timeout  time.Duration
	logger   *slog.Logger
}

// NewDrafter wires the note drafting step.
func NewDrafter(reasoner Reasoner, timeout time.Duration, logger *slog.Logger) *Drafter {
	return &Drafter{
		reasoner: reasoner,
		timeout:  timeout,
		logger:   logging.NewComponentLogger(logger, "notes"),
	}
}

// Draft produces a note for item from its analysis result. Failures are
// returned so the caller can record a degraded status.
func (d *Drafter) Draft(ctx context.Context, item *queue.Item, result analysis.Result) (Note, error) {
	callCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	body, err := d.reasoner.Evaluate(callCtx, BuildPrompt(item, result))
	if err != nil {
		marker := services.ErrExternalService
		if callCtx.Err() != nil {
			marker = services.ErrTimeout
		}
		return Note{}, services.Wrap(marker, "drafting", "evaluate", "note call failed", err)
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return Note{}, services.Wrap(services.ErrMalformedResponse, "drafting", "evaluate", "note body is empty", nil)
	}

	note := Note{Body: body, Length: utf8.RuneCountInString(body)}
	logging.WithContext(ctx, d.logger).Info("note drafted", logging.Int("note_length", note.Length))
	return note, nil
}

// BuildPrompt asks for a three-section note fed by the analysis.
func BuildPrompt(item *queue.Item, result analysis.Result) string {
	var b strings.Builder
	b.WriteString("Write a professional, concise clinical note for this patient.\n\n")
	fmt.Fprintf(&b, "PATIENT: %s (%d years old)\n", item.PatientName, item.PatientAge)
	fmt.Fprintf(&b, "TEST: %s\n", item.TestName)
	b.WriteString("FINDINGS:\n")
	if len(result.Findings) == 0 {
		b.WriteString("- none recorded\n")
	}
	for _, finding := range result.Findings {
		fmt.Fprintf(&b, "- %s\n", finding)
	}
	fmt.Fprintf(&b, "RISK: %s (%s)\n", result.RiskLevel, result.PolicyTier)
	fmt.Fprintf(&b, "SUMMARY: %s\n", result.Summary)
	if result.Citation != "" {
		fmt.Fprintf(&b, "POLICY: %s\n", result.Citation)
	}
	fmt.Fprintf(&b, "\nThe note must contain the sections %q, %q, and %q, in that order. ", Sections[0], Sections[1], Sections[2])
	b.WriteString("Use professional medical terminology and do not add values that are not listed above.")
	return b.String()
}
