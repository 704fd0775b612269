package queue

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Claim marks item id as owned by passID. It succeeds when the item is
// actionable and unclaimed, already held by passID, or held by a pass whose
// heartbeat is older than staleBefore. A false result means another live pass
// owns the item or it is no longer actionable.
func (s *Store) Claim(ctx context.Context, id, passID string, staleBefore time.Time) (bool, error) {
	if strings.TrimSpace(passID) == "" {
		return false, fmt.Errorf("claim work item %s: pass id is required", id)
	}
	now := s.timestamp()
	res, err := s.execWithRetry(ctx,
		`UPDATE work_items SET claim_token = ?, last_heartbeat = ?, updated_at = ?
         WHERE id = ? AND status IN (?, ?)
           AND (claim_token IS NULL OR claim_token = ? OR last_heartbeat IS NULL OR last_heartbeat < ?)`,
		passID, now, now,
		id, StatusPending, StatusInProgress,
		passID, formatTime(staleBefore),
	)
	if err != nil {
		return false, fmt.Errorf("claim work item %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// Release drops the claim passID holds on id without changing its status.
func (s *Store) Release(ctx context.Context, id, passID string) error {
	if _, err := s.execWithRetry(ctx,
		`UPDATE work_items SET claim_token = NULL, last_heartbeat = NULL, updated_at = ?
         WHERE id = ? AND claim_token = ?`,
		s.timestamp(), id, passID,
	); err != nil {
		return fmt.Errorf("release work item %s: %w", id, err)
	}
	return nil
}

// UpdateHeartbeat refreshes the heartbeat of a claimed item. It fails with
// ErrClaimLost when passID no longer holds the claim.
func (s *Store) UpdateHeartbeat(ctx context.Context, id, passID string) error {
	now := s.timestamp()
	res, err := s.execWithRetry(ctx,
		`UPDATE work_items SET last_heartbeat = ?, updated_at = ? WHERE id = ? AND claim_token = ?`,
		now, now, id, passID,
	)
	if err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: %s", ErrClaimLost, id)
	}
	return nil
}

// ReclaimStale clears claims whose heartbeat is older than cutoff so a later
// pass can pick the items up again.
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE work_items SET claim_token = NULL, last_heartbeat = NULL, updated_at = ?
         WHERE claim_token IS NOT NULL AND status IN (?, ?)
           AND (last_heartbeat IS NULL OR last_heartbeat < ?)`,
		s.timestamp(), StatusPending, StatusInProgress, formatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale items: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed moves failed items back to pending so they are analyzed again.
// With no ids every failed item is retried.
func (s *Store) RetryFailed(ctx context.Context, ids ...string) (int64, error) {
	query := `UPDATE work_items
        SET status = ?, analysis_json = NULL, risk_level = NULL, policy_tier = NULL, summary = NULL,
            final_status = NULL, note_path = NULL, error_message = NULL,
            claim_token = NULL, last_heartbeat = NULL, updated_at = ?
        WHERE status = ?`
	args := []any{StatusPending, s.timestamp(), StatusFailed}
	if len(ids) > 0 {
		query += ` AND id IN (` + makePlaceholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry failed items: %w", err)
	}
	return res.RowsAffected()
}
