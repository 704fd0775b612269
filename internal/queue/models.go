package queue

import (
	"errors"
	"strings"
	"time"
)

// Status represents the lifecycle of a work item.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusProcessed  Status = "processed"
	StatusFailed     Status = "failed"
)

var (
	// ErrNotFound is returned when an update targets an id the store does not hold.
	ErrNotFound = errors.New("work item not found")
	// ErrClaimLost is returned when a pass writes to an item it no longer owns.
	ErrClaimLost = errors.New("work item claim lost")
	// ErrDuplicateID is returned by Insert when the id already exists.
	ErrDuplicateID = errors.New("work item id already exists")
)

var allStatuses = []Status{
	StatusPending,
	StatusInProgress,
	StatusProcessed,
	StatusFailed,
}

// AllStatuses returns every known status in lifecycle order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus accepts canonical values plus the display forms used by report
// feeds ("Pending", "In-progress", "InProgress", "in progress").
func ParseStatus(value string) (Status, bool) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)
	switch normalized {
	case "pending", "":
		return StatusPending, true
	case "in_progress", "inprogress":
		return StatusInProgress, true
	case "processed", "done", "completed":
		return StatusProcessed, true
	case "failed":
		return StatusFailed, true
	default:
		return "", false
	}
}

// Actionable reports whether items in this status are picked up by a pass.
func (s Status) Actionable() bool {
	return s == StatusPending || s == StatusInProgress
}

// Terminal reports whether the status ends an item's pass.
func (s Status) Terminal() bool {
	return s == StatusProcessed || s == StatusFailed
}

// Label returns the display form of the status.
func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusInProgress:
		return "InProgress"
	case StatusProcessed:
		return "Processed"
	case StatusFailed:
		return "Failed"
	default:
		return string(s)
	}
}

// Item is one pending diagnostic result and whatever the workflow has
// attached to it so far.
type Item struct {
	ID           string
	PatientName  string
	PatientAge   int
	TestName     string
	Status       Status
	Measurements Payload
	History      Payload

	AnalysisJSON string
	RiskLevel    string
	PolicyTier   string
	Summary      string
	FinalStatus  string
	NotePath     string
	ErrorMessage string

	ClaimToken    string
	LastHeartbeat *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Claimed reports whether a pass currently owns the item.
func (i Item) Claimed() bool {
	return i.ClaimToken != ""
}

// SetFailed marks the item failed with a degraded final status label.
func (i *Item) SetFailed(finalStatus, message string) {
	if i == nil {
		return
	}
	i.Status = StatusFailed
	i.FinalStatus = strings.TrimSpace(finalStatus)
	i.ErrorMessage = strings.TrimSpace(message)
}

// SetProcessed marks the item processed with its final status label.
func (i *Item) SetProcessed(finalStatus string) {
	if i == nil {
		return
	}
	i.Status = StatusProcessed
	i.FinalStatus = strings.TrimSpace(finalStatus)
	i.ErrorMessage = ""
}

// HealthSummary aggregates counts for status output.
type HealthSummary struct {
	Total      int
	Pending    int
	InProgress int
	Processed  int
	Failed     int
	Claimed    int
}

// DatabaseHealth describes the queue database for diagnostics.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	TableExists      bool
	IntegrityCheck   bool
	TotalItems       int
	Error            string
}
