package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"labtriage/internal/analysis"
	"labtriage/internal/logging"
	"labtriage/internal/notifications"
	"labtriage/internal/queue"
	"labtriage/internal/services"
)

// pass tracks bookkeeping that lives outside State: ids already taken from
// the queue and the claim currently held.
type pass struct {
	id            string
	seen          map[string]struct{}
	current       *queue.Item
	requestID     string
	stopHeartbeat func()
	// claimLost is set when the current item was taken over mid-analysis.
	claimLost     bool
}

func (e *Engine) itemContext(ctx context.Context, p *pass, itemID string, phase Phase) context.Context {
	ctx = services.WithItemID(ctx, itemID)
	ctx = services.WithStage(ctx, string(phase))
	return services.WithRequestID(ctx, p.requestID)
}

// analyze claims the front item and evaluates it. A refused claim moves on
// to Drafting with no result so the item is dequeued as skipped.
func (e *Engine) analyze(ctx context.Context, p *pass, state State) (Update, error) {
	if state.Current != nil {
		return Update{}, invariantError("analyze", fmt.Sprintf("item %s is still in flight", state.Current.ID))
	}
	item := state.Queue[0]
	if _, dup := p.seen[item.ID]; dup {
		return Update{}, invariantError("analyze", fmt.Sprintf("item %s reached the front of the queue twice", item.ID))
	}
	p.seen[item.ID] = struct{}{}
	p.requestID = uuid.NewString()

	itemCtx := e.itemContext(ctx, p, item.ID, PhaseAnalyzing)
	logger := logging.WithContext(itemCtx, e.logger)

	claimed, err := e.store.Claim(ctx, item.ID, p.id, e.heartbeat.StaleBefore())
	if err != nil {
		logging.WarnWithContext(logger, "claim failed; item skipped", "claim_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check queue database access"),
			logging.String(logging.FieldImpact, "item stays pending for the next pass"),
		)
		claimed = false
	}
	if !claimed {
		logger.Info("item skipped",
			logging.Args(logging.DecisionAttrs("claim", "skipped", "owned by another pass or no longer actionable")...)...)
		return Update{Phase: PhaseDrafting, Current: item, Result: nil, ReplaceCurrent: true}, nil
	}

	p.current = item
	p.stopHeartbeat = e.heartbeat.Keep(ctx, item.ID, p.id)
	if fresh, err := e.store.GetByID(ctx, item.ID); err == nil && fresh != nil {
		item = fresh
		p.current = fresh
	}

	logger.Info("analysis started",
		logging.String(logging.FieldEventType, "analysis_start"),
		logging.String("patient", item.PatientName),
		logging.String("test_name", item.TestName),
	)
	result := e.analyzer.Analyze(itemCtx, item)
	if err := ctx.Err(); err != nil {
		return Update{}, err
	}

	item.AnalysisJSON = result.JSON()
	item.RiskLevel = string(result.RiskLevel)
	item.PolicyTier = result.PolicyTier
	item.Summary = result.Summary
	if err := e.store.RecordAnalysis(ctx, item, p.id); err != nil {
		if errors.Is(err, queue.ErrClaimLost) {
			e.stopHeartbeat(p)
			p.current = nil
			p.claimLost = true
			logging.WarnWithContext(logger, "claim lost during analysis; item skipped", "claim_lost",
				logging.Error(err),
				logging.String(logging.FieldImpact, "another pass owns this item; this result was discarded"),
				logging.String(logging.FieldErrorHint, "raise workflow.heartbeat_timeout if reasoning calls run long"),
			)
			return Update{Phase: PhaseDrafting, Current: item, Result: nil, ReplaceCurrent: true}, nil
		}
		logging.WarnWithContext(logger, "failed to persist analysis", "analysis_persist_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check queue database access"),
			logging.String(logging.FieldImpact, "analysis is stored when the item completes"),
		)
	}

	return Update{
		Phase:          PhaseDrafting,
		Current:        item,
		Result:         &result,
		ReplaceCurrent: true,
		Messages:       []string{fmt.Sprintf("%s: analyzed as %s (%s)", item.ID, result.RiskLevel, result.PolicyTier)},
	}, nil
}

// draft produces the note, records the final status, completes the item, and
// dequeues it.
func (e *Engine) draft(ctx context.Context, p *pass, state State) (Update, Outcome, error) {
	item := state.Current
	if item == nil {
		return Update{}, Outcome{}, invariantError("draft", "no current item")
	}
	if len(state.Queue) == 0 || state.Queue[0].ID != item.ID {
		return Update{}, Outcome{}, invariantError("draft", fmt.Sprintf("current item %s is not at the front of the queue", item.ID))
	}
	rest := state.Queue[1:]

	if state.Result == nil {
		status := StatusSkipped
		if p.claimLost {
			status = StatusClaimLost
			p.claimLost = false
		}
		return skipped(rest, item, status)
	}

	result := *state.Result
	itemCtx := e.itemContext(ctx, p, item.ID, PhaseDrafting)
	logger := logging.WithContext(itemCtx, e.logger)

	if result.IsSentinel() {
		item.SetFailed(StatusUnknown, failureMessage(result))
		logging.WarnWithContext(logger, "analysis unavailable; note skipped", "note_skipped",
			logging.String(logging.FieldErrorKind, result.FailureKind),
			logging.String("reason", result.FailureReason),
			logging.String(logging.FieldImpact, "item marked failed; retry it once the cause is fixed"),
			logging.String(logging.FieldErrorHint, "labtriage queue retry "+item.ID),
		)
	} else {
		e.draftNote(itemCtx, logger, item, result)
		if err := ctx.Err(); err != nil {
			return Update{}, Outcome{}, err
		}
	}

	e.stopHeartbeat(p)
	if err := e.store.Complete(ctx, item, p.id); err != nil {
		if errors.Is(err, queue.ErrClaimLost) {
			p.current = nil
			logging.WarnWithContext(logger, "claim lost before completion", "claim_lost",
				logging.Error(err),
				logging.String("note_path", item.NotePath),
				logging.String(logging.FieldImpact, "another pass owns this item; this result was not stored"),
				logging.String(logging.FieldErrorHint, "raise workflow.heartbeat_timeout if reasoning calls run long"),
			)
			return skipped(rest, item, StatusClaimLost)
		}
		logging.ErrorWithContext(logger, "failed to complete item", "complete_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
	}
	p.current = nil

	if !result.IsSentinel() && notifications.IsAlert(e.cfg.Notifications.AlertTiers, string(result.RiskLevel), result.PolicyTier) {
		e.notifyCritical(itemCtx, item, result)
	}

	logger.Info("item complete",
		logging.String(logging.FieldEventType, "item_complete"),
		logging.String("final_status", item.FinalStatus),
		logging.String("note_path", item.NotePath),
	)
	return dequeue(rest, item.FinalStatus, fmt.Sprintf("%s: %s", item.ID, item.FinalStatus)), newOutcome(item, &result), nil
}

func (e *Engine) draftNote(ctx context.Context, logger *slog.Logger, item *queue.Item, result analysis.Result) {
	note, err := e.drafter.Draft(ctx, item, result)
	if err != nil {
		item.SetProcessed(StatusNoteFailed)
		item.ErrorMessage = err.Error()
		logging.WarnWithContext(logger, "note drafting failed", "note_failed",
			append(logging.ErrorAttrs(err),
				logging.String(logging.FieldImpact, "item processed without a clinical note"),
			)...)
		return
	}
	path, err := e.writer.Write(item, result, note)
	if err != nil {
		item.SetProcessed(StatusNoteFailed)
		item.ErrorMessage = err.Error()
		logging.WarnWithContext(logger, "note could not be saved", "note_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "item processed without a clinical note"),
			logging.String(logging.FieldErrorHint, "check paths.notes_dir permissions"),
		)
		return
	}
	item.NotePath = path
	item.SetProcessed(fmt.Sprintf("Processed (%s)", result.RiskLevel))
	logger.Info("note saved", logging.String("note_path", path), logging.Int("note_length", note.Length))
}

// abandonCurrent releases the claim held when a pass stops mid-item so the
// next pass can pick the item up immediately.
func (e *Engine) abandonCurrent(ctx context.Context, p *pass, state State) {
	e.stopHeartbeat(p)
	item := p.current
	if item == nil {
		item = state.Current
	}
	if item == nil {
		return
	}
	p.current = nil
	if err := e.store.Release(context.WithoutCancel(ctx), item.ID, p.id); err != nil {
		logging.WithContext(ctx, e.logger).Warn("failed to release claim", logging.String(logging.FieldItemID, item.ID), logging.Error(err))
	}
}

func (e *Engine) stopHeartbeat(p *pass) {
	if p.stopHeartbeat != nil {
		p.stopHeartbeat()
		p.stopHeartbeat = nil
	}
}

func skipped(rest []*queue.Item, item *queue.Item, status string) (Update, Outcome, error) {
	outcome := newOutcome(item, nil)
	outcome.FinalStatus = status
	outcome.Skipped = true
	return dequeue(rest, status, fmt.Sprintf("%s: %s", item.ID, status)), outcome, nil
}

func dequeue(rest []*queue.Item, finalStatus, message string) Update {
	return Update{
		Phase:          PhaseDeciding,
		Queue:          rest,
		ReplaceQueue:   true,
		Current:        nil,
		Result:         nil,
		ReplaceCurrent: true,
		FinalStatus:    finalStatus,
		Messages:       []string{message},
	}
}

func failureMessage(result analysis.Result) string {
	if result.FailureReason == "" {
		return analysis.FailureSummary
	}
	return analysis.FailureSummary + ": " + result.FailureReason
}
