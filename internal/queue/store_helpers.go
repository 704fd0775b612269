package queue

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const itemColumns = "id, patient_name, patient_age, test_name, status, measurements_json, history_json, analysis_json, risk_level, policy_tier, summary, final_status, note_path, error_message, claim_token, last_heartbeat, created_at, updated_at"

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id               string
		patientName      string
		patientAge       int
		testName         string
		statusStr        string
		measurements     sql.NullString
		history          sql.NullString
		analysis         sql.NullString
		riskLevel        sql.NullString
		policyTier       sql.NullString
		summary          sql.NullString
		finalStatus      sql.NullString
		notePath         sql.NullString
		errorMessage     sql.NullString
		claimToken       sql.NullString
		lastHeartbeatRaw sql.NullString
		createdRaw       string
		updatedRaw       string
	)
	if err := scanner.Scan(
		&id,
		&patientName,
		&patientAge,
		&testName,
		&statusStr,
		&measurements,
		&history,
		&analysis,
		&riskLevel,
		&policyTier,
		&summary,
		&finalStatus,
		&notePath,
		&errorMessage,
		&claimToken,
		&lastHeartbeatRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:           id,
		PatientName:  patientName,
		PatientAge:   patientAge,
		TestName:     testName,
		Status:       Status(statusStr),
		AnalysisJSON: analysis.String,
		RiskLevel:    riskLevel.String,
		PolicyTier:   policyTier.String,
		Summary:      summary.String,
		FinalStatus:  finalStatus.String,
		NotePath:     notePath.String,
		ErrorMessage: errorMessage.String,
		ClaimToken:   claimToken.String,
	}
	var err error
	if item.Measurements, err = decodePayload(measurements.String); err != nil {
		return nil, fmt.Errorf("decode measurements for %s: %w", id, err)
	}
	if item.History, err = decodePayload(history.String); err != nil {
		return nil, fmt.Errorf("decode history for %s: %w", id, err)
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		item.UpdatedAt = updated
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(lastHeartbeatRaw.String); err == nil {
			item.LastHeartbeat = &heartbeat
		}
	}
	return item, nil
}

func scanItems(rows *sql.Rows) ([]*Item, error) {
	defer rows.Close()
	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return formatTime(*value)
}

func formatTime(value time.Time) string {
	return value.UTC().Format(timeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
