package audit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

type mockEntryRepo struct {
	entries []*Entry
}

func (m *mockEntryRepo) Create(_ context.Context, e *Entry) error {
	e.ID = uuid.New()
	e.CreatedAt = time.Now()
	m.entries = append(m.entries, e)
	return nil
}

func (m *mockEntryRepo) ListByRequisition(_ context.Context, reqID uuid.UUID, limit, offset int) ([]*Entry, int, error) {
	var result []*Entry
	for _, e := range m.entries {
		if e.RequisitionID != nil && *e.RequisitionID == reqID {
			result = append(result, e)
		}
	}
	return result, len(result), nil
}

func (m *mockEntryRepo) List(_ context.Context, limit, offset int) ([]*Entry, int, error) {
	return m.entries, len(m.entries), nil
}

func TestRecordRequiresAction(t *testing.T) {
	svc := NewService(&mockEntryRepo{})
	ctx := context.Background()

	if err := svc.Record(ctx, &Entry{Actor: "alice"}); err == nil {
		t.Fatal("expected error for missing action")
	}
	if err := svc.Record(ctx, &Entry{Actor: "alice", Action: ActionStatusChanged}); err != nil {
		t.Fatalf("Record: %v", err)
	}
}

func TestListByRequisition(t *testing.T) {
	repo := &mockEntryRepo{}
	svc := NewService(repo)
	ctx := context.Background()

	reqA, reqB := uuid.New(), uuid.New()
	for _, id := range []uuid.UUID{reqA, reqA, reqB} {
		reqID := id
		if err := svc.Record(ctx, &Entry{Actor: "alice", Action: ActionResultEntered, RequisitionID: &reqID}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	entries, total, err := svc.ListByRequisition(ctx, reqA, 20, 0)
	if err != nil {
		t.Fatalf("ListByRequisition: %v", err)
	}
	if total != 2 || len(entries) != 2 {
		t.Fatalf("expected 2 entries for requisition, got %d", total)
	}
}
