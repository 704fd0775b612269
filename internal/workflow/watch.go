package workflow

import (
	"context"
	"errors"
	"time"

	"labtriage/internal/logging"
)

// Watch runs a pass, waits interval, and repeats until ctx is cancelled.
// onPass, when set, receives every completed pass. Passes blocked by another
// process are skipped; invariant violations and store failures end the loop.
func (e *Engine) Watch(ctx context.Context, interval time.Duration, onPass func(Summary)) error {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	logger := e.logger
	for {
		summary, err := e.Run(ctx)
		switch {
		case err == nil:
			if onPass != nil && summary.Total() > 0 {
				onPass(summary)
			}
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			return nil
		case errors.Is(err, ErrPassInProgress):
			logger.Info("pass skipped; another pass is running",
				logging.Args(logging.DecisionAttrs("watch", "skip", err.Error())...)...)
		default:
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}
