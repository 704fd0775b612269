package testsupport

import (
	"context"
	"testing"

	"labtriage/internal/config"
	"labtriage/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewItem inserts a work item with the given id, status, and measurements.
func NewItem(t testing.TB, store *queue.Store, id string, status queue.Status, measurements map[string]any) *queue.Item {
	t.Helper()

	item := &queue.Item{
		ID:           id,
		PatientName:  "Patient " + id,
		PatientAge:   50,
		TestName:     "Blood Count (CBC)",
		Status:       status,
		Measurements: queue.ValuesPayload(measurements),
	}
	if err := store.Insert(context.Background(), item); err != nil {
		t.Fatalf("store.Insert: %v", err)
	}
	return item
}

// MustGet fetches an item that the test expects to exist.
func MustGet(t testing.TB, store *queue.Store, id string) *queue.Item {
	t.Helper()

	item, err := store.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("store.GetByID: %v", err)
	}
	if item == nil {
		t.Fatalf("item %s not found", id)
	}
	return item
}
