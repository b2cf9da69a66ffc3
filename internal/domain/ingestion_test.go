package domain

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to IngestionStatus
		want     bool
	}{
		{IngestionPending, IngestionProcessing, true},
		{IngestionProcessing, IngestionCompleted, true},
		{IngestionProcessing, IngestionFailed, true},
		{IngestionCompleted, IngestionReverted, true},
		{IngestionCompleted, IngestionProcessing, false},
		{IngestionFailed, IngestionReverted, false},
		{IngestionReverted, IngestionCompleted, false},
		{IngestionReverted, IngestionReverted, false},
		{IngestionPending, IngestionCompleted, false},
		{IngestionFailed, IngestionCompleted, false},
	}

	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestTransitionStampsCompletedAt(t *testing.T) {
	record := NewIngestionRecord(uuid.New(), uuid.New(), "sales.csv", "/tmp/sales.csv", 42)
	if record.Status != IngestionProcessing {
		t.Fatalf("expected new record in processing state, got %s", record.Status)
	}
	if record.CorrelationID == "" {
		t.Fatalf("expected correlation id to be set")
	}

	completed, err := record.Transition(IngestionCompleted)
	if err != nil {
		t.Fatalf("transition to completed: %v", err)
	}
	if completed.CompletedAt == nil {
		t.Fatalf("expected completed_at to be stamped")
	}

	reverted, err := completed.Transition(IngestionReverted)
	if err != nil {
		t.Fatalf("transition to reverted: %v", err)
	}

	if _, err := reverted.Transition(IngestionReverted); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on double revert, got %v", err)
	}
}

func TestNewIngestionRecordsGetDistinctCorrelationIDs(t *testing.T) {
	a := NewIngestionRecord(uuid.New(), uuid.New(), "a.csv", "/tmp/a.csv", 1)
	b := NewIngestionRecord(uuid.New(), uuid.New(), "b.csv", "/tmp/b.csv", 1)
	if a.CorrelationID == b.CorrelationID {
		t.Fatalf("expected distinct correlation ids")
	}
}
