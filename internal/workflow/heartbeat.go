package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"labtriage/internal/logging"
	"labtriage/internal/queue"
)

// HeartbeatMonitor keeps claims alive while an item is processed and reclaims
// claims abandoned by passes that stopped.
type HeartbeatMonitor struct {
	store             *queue.Store
	logger            *slog.Logger
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
	now               func() time.Time
}

// NewHeartbeatMonitor creates a new monitor.
func NewHeartbeatMonitor(store *queue.Store, logger *slog.Logger, interval, timeout time.Duration) *HeartbeatMonitor {
	return &HeartbeatMonitor{
		store:             store,
		logger:            logging.NewComponentLogger(logger, "workflow-heartbeat"),
		heartbeatInterval: interval,
		heartbeatTimeout:  timeout,
		now:               time.Now,
	}
}

// StaleBefore returns the heartbeat cutoff: claims older than this may be
// taken over.
func (h *HeartbeatMonitor) StaleBefore() time.Time {
	if h.heartbeatTimeout <= 0 {
		return time.Time{}
	}
	return h.now().Add(-h.heartbeatTimeout)
}

// ReclaimStaleItems releases claims whose heartbeat has expired.
func (h *HeartbeatMonitor) ReclaimStaleItems(ctx context.Context) error {
	if h.heartbeatTimeout <= 0 {
		return nil
	}
	reclaimed, err := h.store.ReclaimStale(ctx, h.StaleBefore())
	if err != nil {
		return err
	}
	if reclaimed > 0 {
		logging.WithContext(ctx, h.logger).Info("reclaimed stale items", logging.Int64("count", reclaimed))
	}
	return nil
}

// Keep refreshes the heartbeat of itemID until the returned stop function is
// called. stop waits for the updater to exit.
func (h *HeartbeatMonitor) Keep(ctx context.Context, itemID, passID string) (stop func()) {
	if h.heartbeatInterval <= 0 {
		return func() {}
	}
	hbCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go h.loop(hbCtx, &wg, itemID, passID)
	return func() {
		cancel()
		wg.Wait()
	}
}

func (h *HeartbeatMonitor) loop(ctx context.Context, wg *sync.WaitGroup, itemID, passID string) {
	defer wg.Done()
	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()

	logger := logging.WithContext(ctx, h.logger)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := h.store.UpdateHeartbeat(ctx, itemID, passID)
			switch {
			case err == nil:
			case errors.Is(err, context.Canceled):
				return
			case errors.Is(err, queue.ErrClaimLost):
				logging.WarnWithContext(logger, "claim lost during processing", "claim_lost",
					logging.Error(err),
					logging.String(logging.FieldImpact, "another pass may analyze this item; this pass's result will not be stored"),
					logging.String(logging.FieldErrorHint, "raise workflow.heartbeat_timeout if reasoning calls run long"),
				)
				return
			default:
				logging.WarnWithContext(logger, "heartbeat update failed", "heartbeat_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "item may be reclaimed by another pass"),
					logging.String(logging.FieldErrorHint, "check queue database access"),
				)
			}
		}
	}
}
