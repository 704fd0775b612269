package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

func validateNewItem(item *Item) error {
	if item == nil {
		return errors.New("work item is nil")
	}
	item.ID = strings.TrimSpace(item.ID)
	item.PatientName = strings.TrimSpace(item.PatientName)
	item.TestName = strings.TrimSpace(item.TestName)
	if item.ID == "" {
		return errors.New("work item id is required")
	}
	if item.PatientName == "" {
		return fmt.Errorf("work item %s: patient name is required", item.ID)
	}
	if item.TestName == "" {
		return fmt.Errorf("work item %s: test name is required", item.ID)
	}
	if item.Status == "" {
		item.Status = StatusPending
	}
	if _, ok := ParseStatus(string(item.Status)); !ok {
		return fmt.Errorf("work item %s: unknown status %q", item.ID, item.Status)
	}
	return nil
}

// Insert stores a new work item. It fails with ErrDuplicateID if the id exists.
func (s *Store) Insert(ctx context.Context, item *Item) error {
	if err := validateNewItem(item); err != nil {
		return err
	}
	existing, err := s.GetByID(ctx, item.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("%w: %s", ErrDuplicateID, item.ID)
	}
	measurements, history, err := encodePayloads(item)
	if err != nil {
		return err
	}
	now := s.timestamp()
	if _, err := s.execWithRetry(ctx,
		`INSERT INTO work_items (id, patient_name, patient_age, test_name, status, measurements_json, history_json, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.PatientName, item.PatientAge, item.TestName, item.Status, measurements, history, now, now,
	); err != nil {
		return fmt.Errorf("insert work item %s: %w", item.ID, err)
	}
	return s.refresh(ctx, item)
}

// Upsert inserts the item or refreshes its report data. Existing items are only
// touched while they are still actionable and unclaimed; the returned bool
// reports whether a row was written.
func (s *Store) Upsert(ctx context.Context, item *Item) (bool, error) {
	if err := validateNewItem(item); err != nil {
		return false, err
	}
	measurements, history, err := encodePayloads(item)
	if err != nil {
		return false, err
	}
	now := s.timestamp()
	res, err := s.execWithRetry(ctx,
		`INSERT INTO work_items (id, patient_name, patient_age, test_name, status, measurements_json, history_json, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
             patient_name = excluded.patient_name,
             patient_age = excluded.patient_age,
             test_name = excluded.test_name,
             status = excluded.status,
             measurements_json = excluded.measurements_json,
             history_json = excluded.history_json,
             updated_at = excluded.updated_at
         WHERE work_items.status IN (?, ?) AND work_items.claim_token IS NULL`,
		item.ID, item.PatientName, item.PatientAge, item.TestName, item.Status, measurements, history, now, now,
		StatusPending, StatusInProgress,
	)
	if err != nil {
		return false, fmt.Errorf("upsert work item %s: %w", item.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if err := s.refresh(ctx, item); err != nil {
		return false, err
	}
	return affected > 0, nil
}

// GetByID fetches a work item by id. It returns nil, nil when no item exists.
func (s *Store) GetByID(ctx context.Context, id string) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM work_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get work item %s: %w", id, err)
	}
	return item, nil
}

// Update replaces the stored record for item.ID in a single statement so
// readers never observe a half-written item.
func (s *Store) Update(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("work item is nil")
	}
	measurements, history, err := encodePayloads(item)
	if err != nil {
		return err
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE work_items SET
             patient_name = ?, patient_age = ?, test_name = ?, status = ?,
             measurements_json = ?, history_json = ?, analysis_json = ?,
             risk_level = ?, policy_tier = ?, summary = ?, final_status = ?,
             note_path = ?, error_message = ?, claim_token = ?, last_heartbeat = ?,
             updated_at = ?
         WHERE id = ?`,
		item.PatientName, item.PatientAge, item.TestName, item.Status,
		measurements, history, nullableString(item.AnalysisJSON),
		nullableString(item.RiskLevel), nullableString(item.PolicyTier), nullableString(item.Summary), nullableString(item.FinalStatus),
		nullableString(item.NotePath), nullableString(item.ErrorMessage), nullableString(item.ClaimToken), nullableTime(item.LastHeartbeat),
		s.timestamp(),
		item.ID,
	)
	if err != nil {
		return fmt.Errorf("update work item %s: %w", item.ID, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, item.ID)
	}
	return nil
}

// RecordAnalysis stores the analysis fields of an item claimed by passID and
// marks it in progress. The claim itself is left untouched; ErrClaimLost is
// returned when passID no longer holds it.
func (s *Store) RecordAnalysis(ctx context.Context, item *Item, passID string) error {
	if item == nil {
		return errors.New("work item is nil")
	}
	now := s.timestamp()
	res, err := s.execWithRetry(ctx,
		`UPDATE work_items SET
             status = ?, analysis_json = ?, risk_level = ?, policy_tier = ?, summary = ?,
             last_heartbeat = ?, updated_at = ?
         WHERE id = ? AND claim_token = ?`,
		StatusInProgress, nullableString(item.AnalysisJSON), nullableString(item.RiskLevel), nullableString(item.PolicyTier), nullableString(item.Summary),
		now, now,
		item.ID, passID,
	)
	if err != nil {
		return fmt.Errorf("record analysis for %s: %w", item.ID, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: %s", ErrClaimLost, item.ID)
	}
	item.Status = StatusInProgress
	return nil
}

// Complete writes the item's terminal state and releases the claim held by
// passID. It fails with ErrClaimLost when another pass has taken the item over.
func (s *Store) Complete(ctx context.Context, item *Item, passID string) error {
	if item == nil {
		return errors.New("work item is nil")
	}
	if !item.Status.Terminal() {
		return fmt.Errorf("complete work item %s: status %s is not terminal", item.ID, item.Status)
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE work_items SET
             status = ?, analysis_json = ?, risk_level = ?, policy_tier = ?, summary = ?,
             final_status = ?, note_path = ?, error_message = ?,
             claim_token = NULL, last_heartbeat = NULL, updated_at = ?
         WHERE id = ? AND claim_token = ?`,
		item.Status, nullableString(item.AnalysisJSON), nullableString(item.RiskLevel), nullableString(item.PolicyTier), nullableString(item.Summary),
		nullableString(item.FinalStatus), nullableString(item.NotePath), nullableString(item.ErrorMessage),
		s.timestamp(),
		item.ID, passID,
	)
	if err != nil {
		return fmt.Errorf("complete work item %s: %w", item.ID, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: %s", ErrClaimLost, item.ID)
	}
	item.ClaimToken = ""
	item.LastHeartbeat = nil
	return nil
}

// List returns items with any of the given statuses (all items when none are
// given) in arrival order.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Item, error) {
	query := `SELECT ` + itemColumns + ` FROM work_items`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY created_at, rowid`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list work items: %w", err)
	}
	return scanItems(rows)
}

// ListActionable returns Pending and InProgress items, first in first out.
func (s *Store) ListActionable(ctx context.Context) ([]*Item, error) {
	return s.List(ctx, StatusPending, StatusInProgress)
}

func (s *Store) refresh(ctx context.Context, item *Item) error {
	stored, err := s.GetByID(ctx, item.ID)
	if err != nil {
		return err
	}
	if stored != nil {
		*item = *stored
	}
	return nil
}

func encodePayloads(item *Item) (any, any, error) {
	measurements, err := item.Measurements.encode()
	if err != nil {
		return nil, nil, fmt.Errorf("encode measurements for %s: %w", item.ID, err)
	}
	history, err := item.History.encode()
	if err != nil {
		return nil, nil, fmt.Errorf("encode history for %s: %w", item.ID, err)
	}
	return measurements, history, nil
}
