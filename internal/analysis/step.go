package analysis

import (
	"context"
	"log/slog"
	"time"

	"labtriage/internal/logging"
	"labtriage/internal/policy"
	"labtriage/internal/queue"
	"labtriage/internal/services"
	"labtriage/internal/services/llm"
)

// Reasoner is the text-in/text-out reasoning capability.
type Reasoner interface {
	Evaluate(ctx context.Context, prompt string) (string, error)
}

// Step evaluates one work item against the current policy.
type Step struct {
	reasoner Reasoner
	policy   policy.Source
	timeout  time.Duration
	logger   *slog.Logger
}

// NewStep wires the analysis step. A non-positive timeout leaves calls bounded
// only by ctx.
func NewStep(reasoner Reasoner, source policy.Source, timeout time.Duration, logger *slog.Logger) *Step {
	return &Step{
		reasoner: reasoner,
		policy:   source,
		timeout:  timeout,
		logger:   logging.NewComponentLogger(logger, "analysis"),
	}
}

// Analyze never fails: policy, transport, timeout, and parse failures all
// yield a sentinel result describing what went wrong.
func (s *Step) Analyze(ctx context.Context, item *queue.Item) Result {
	logger := logging.WithContext(ctx, s.logger)

	policyText, err := s.policy.Read(ctx)
	if err != nil {
		attrs := append(logging.ErrorAttrs(err),
			logging.Alert("policy_unavailable"),
			logging.String(logging.FieldImpact, "item marked failed; every item in this pass is likely affected"),
		)
		logging.ErrorWithContext(logger, "policy text unavailable", "policy_unavailable", attrs...)
		return Sentinel(services.Kind(err), err.Error())
	}

	callCtx, cancel := s.callContext(ctx)
	defer cancel()
	started := time.Now()
	raw, err := s.reasoner.Evaluate(callCtx, BuildPrompt(item, policyText))
	if err != nil {
		wrapped := services.Wrap(services.ErrExternalService, "analysis", "evaluate", "reasoning call failed", err)
		if callCtx.Err() != nil {
			wrapped = services.Wrap(services.ErrTimeout, "analysis", "evaluate", "reasoning call did not finish in time", err)
		}
		logging.WarnWithContext(logger, "analysis call failed", "analysis_failed",
			append(logging.ErrorAttrs(wrapped), logging.Duration("elapsed", time.Since(started)))...)
		return Sentinel(services.Kind(wrapped), wrapped.Error())
	}

	result, err := Parse(raw, policyText)
	if err != nil {
		logging.WarnWithContext(logger, "analysis response rejected", "analysis_malformed",
			append(logging.ErrorAttrs(err), logging.String("response_snippet", llm.Snippet(raw)))...)
		return Sentinel(services.Kind(err), err.Error())
	}

	if !result.CitationVerified {
		logging.WarnWithContext(logger, "policy citation not found in policy text", "citation_unverified",
			logging.String("citation", result.Citation),
			logging.String(logging.FieldImpact, "result kept; clinician should confirm the cited rule"),
			logging.String(logging.FieldErrorHint, "compare the note against the policy file"),
		)
	}
	logger.Info("analysis complete",
		logging.String("risk_level", string(result.RiskLevel)),
		logging.String("policy_tier", result.PolicyTier),
		logging.Int("findings", len(result.Findings)),
		logging.Bool("citation_verified", result.CitationVerified),
		logging.Duration("elapsed", time.Since(started)),
	)
	return result
}

func (s *Step) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}
