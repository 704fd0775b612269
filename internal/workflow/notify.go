package workflow

import (
	"context"
	"errors"

	"labtriage/internal/analysis"
	"labtriage/internal/logging"
	"labtriage/internal/notifications"
	"labtriage/internal/queue"
)

func (e *Engine) notifyCritical(ctx context.Context, item *queue.Item, result analysis.Result) {
	e.publish(ctx, notifications.EventCriticalResult, notifications.Payload{
		"itemId":      item.ID,
		"patientName": item.PatientName,
		"testName":    item.TestName,
		"riskLevel":   string(result.RiskLevel),
		"policyTier":  result.PolicyTier,
		"summary":     result.Summary,
		"citation":    result.Citation,
	}, "critical result")
}

func (e *Engine) notifyPassComplete(ctx context.Context, summary Summary) {
	e.publish(ctx, notifications.EventPassCompleted, notifications.Payload{
		"passId":    summary.PassID,
		"processed": summary.Processed,
		"failed":    summary.Failed,
		"skipped":   summary.Skipped,
		"duration":  summary.Duration,
	}, "pass completion")
}

func (e *Engine) notifyError(ctx context.Context, err error, label string) {
	if err == nil {
		return
	}
	e.publish(ctx, notifications.EventError, notifications.Payload{
		"error":   err,
		"context": label,
	}, "error")
}

func (e *Engine) publish(ctx context.Context, event notifications.Event, payload notifications.Payload, label string) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Publish(context.WithoutCancel(ctx), event, payload); err != nil {
		logger := logging.WithContext(ctx, e.logger)
		if errors.Is(err, context.Canceled) {
			logger.Debug("shutting down, could not send " + label + " notification")
			return
		}
		logging.WarnWithContext(logger, label+" notification failed", "notification_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "clinicians are not alerted by push; the queue still shows the result"),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
		)
	}
}
