package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
)

// -- Mock Repositories --

type mockExamRepo struct {
	exams      map[uuid.UUID]*Exam
	referenced map[uuid.UUID]bool
}

func newMockExamRepo() *mockExamRepo {
	return &mockExamRepo{exams: make(map[uuid.UUID]*Exam), referenced: make(map[uuid.UUID]bool)}
}

func (m *mockExamRepo) Create(_ context.Context, e *Exam) error {
	for _, existing := range m.exams {
		if existing.Name == e.Name || existing.Code == e.Code {
			return ErrDuplicate
		}
	}
	e.ID = uuid.New()
	e.CreatedAt = time.Now()
	e.UpdatedAt = time.Now()
	m.exams[e.ID] = e
	return nil
}

func (m *mockExamRepo) GetByID(_ context.Context, id uuid.UUID) (*Exam, error) {
	e, ok := m.exams[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return e, nil
}

func (m *mockExamRepo) GetByCode(_ context.Context, code string) (*Exam, error) {
	for _, e := range m.exams {
		if e.Code == code {
			return e, nil
		}
	}
	return nil, fmt.Errorf("not found")
}

func (m *mockExamRepo) Update(_ context.Context, e *Exam) error {
	if _, ok := m.exams[e.ID]; !ok {
		return fmt.Errorf("not found")
	}
	m.exams[e.ID] = e
	return nil
}

func (m *mockExamRepo) Delete(_ context.Context, id uuid.UUID) error {
	if m.referenced[id] {
		return ErrReferenced
	}
	delete(m.exams, id)
	return nil
}

func (m *mockExamRepo) List(_ context.Context, activeOnly bool, limit, offset int) ([]*Exam, int, error) {
	var result []*Exam
	for _, e := range m.exams {
		if activeOnly && !e.Active {
			continue
		}
		result = append(result, e)
	}
	return result, len(result), nil
}

type mockFieldRepo struct {
	fields map[uuid.UUID]*ExamField
}

func newMockFieldRepo() *mockFieldRepo {
	return &mockFieldRepo{fields: make(map[uuid.UUID]*ExamField)}
}

func (m *mockFieldRepo) Create(_ context.Context, f *ExamField) error {
	f.ID = uuid.New()
	m.fields[f.ID] = f
	return nil
}

func (m *mockFieldRepo) GetByID(_ context.Context, id uuid.UUID) (*ExamField, error) {
	f, ok := m.fields[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return f, nil
}

func (m *mockFieldRepo) Update(_ context.Context, f *ExamField) error {
	m.fields[f.ID] = f
	return nil
}

func (m *mockFieldRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.fields, id)
	return nil
}

func (m *mockFieldRepo) ListByExam(_ context.Context, examID uuid.UUID) ([]*ExamField, error) {
	var result []*ExamField
	for _, f := range m.fields {
		if f.ExamID == examID {
			result = append(result, f)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].DisplayOrder < result[j].DisplayOrder })
	return result, nil
}

// -- Tests --

func TestCreateExam(t *testing.T) {
	svc := NewService(newMockExamRepo(), newMockFieldRepo())
	ctx := context.Background()

	e := &Exam{Name: "Complete Blood Count", Code: "CBC"}
	if err := svc.CreateExam(ctx, e); err != nil {
		t.Fatalf("CreateExam: %v", err)
	}
	if !e.Active {
		t.Error("new exam must be active")
	}
	if e.TurnaroundHours != 24 {
		t.Errorf("expected default turnaround 24h, got %d", e.TurnaroundHours)
	}

	t.Run("DuplicateName", func(t *testing.T) {
		err := svc.CreateExam(ctx, &Exam{Name: "Complete Blood Count", Code: "CBC2"})
		if !errors.Is(err, ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}
	})

	t.Run("MissingCode", func(t *testing.T) {
		if err := svc.CreateExam(ctx, &Exam{Name: "No Code"}); err == nil {
			t.Fatal("expected validation error")
		}
	})
}

func TestDisableExamKeepsRow(t *testing.T) {
	repo := newMockExamRepo()
	svc := NewService(repo, newMockFieldRepo())
	ctx := context.Background()

	e := &Exam{Name: "Urinalysis", Code: "UA"}
	if err := svc.CreateExam(ctx, e); err != nil {
		t.Fatalf("CreateExam: %v", err)
	}
	if err := svc.DisableExam(ctx, e.ID); err != nil {
		t.Fatalf("DisableExam: %v", err)
	}

	got, _ := repo.GetByID(ctx, e.ID)
	if got.Active {
		t.Fatal("exam should be inactive after disable")
	}
	active, _, _ := svc.ListExams(ctx, true, 20, 0)
	if len(active) != 0 {
		t.Fatalf("disabled exam must not appear in active listing, got %d", len(active))
	}
	all, _, _ := svc.ListExams(ctx, false, 20, 0)
	if len(all) != 1 {
		t.Fatalf("disabled exam must still exist, got %d", len(all))
	}
}

func TestDeleteReferencedExam(t *testing.T) {
	repo := newMockExamRepo()
	svc := NewService(repo, newMockFieldRepo())
	ctx := context.Background()

	e := &Exam{Name: "Basic Metabolic Panel", Code: "BMP"}
	if err := svc.CreateExam(ctx, e); err != nil {
		t.Fatalf("CreateExam: %v", err)
	}
	repo.referenced[e.ID] = true

	if err := svc.DeleteExam(ctx, e.ID); !errors.Is(err, ErrReferenced) {
		t.Fatalf("expected ErrReferenced, got %v", err)
	}
	if _, err := repo.GetByID(ctx, e.ID); err != nil {
		t.Fatal("referenced exam must survive a failed delete")
	}
}

func TestCreateField(t *testing.T) {
	svc := NewService(newMockExamRepo(), newMockFieldRepo())
	ctx := context.Background()

	e := &Exam{Name: "CBC", Code: "CBC"}
	if err := svc.CreateExam(ctx, e); err != nil {
		t.Fatalf("CreateExam: %v", err)
	}

	f := &ExamField{ExamID: e.ID, FieldName: "Hemoglobin", ValueType: ValueTypeNumeric,
		Unit: "g/dL", ReferenceRange: "12.0-17.5"}
	if err := svc.CreateField(ctx, f); err != nil {
		t.Fatalf("CreateField: %v", err)
	}

	t.Run("DefaultsToText", func(t *testing.T) {
		f := &ExamField{ExamID: e.ID, FieldName: "Comment"}
		if err := svc.CreateField(ctx, f); err != nil {
			t.Fatalf("CreateField: %v", err)
		}
		if f.ValueType != ValueTypeText {
			t.Fatalf("expected text default, got %s", f.ValueType)
		}
	})

	t.Run("RejectsBadValueType", func(t *testing.T) {
		f := &ExamField{ExamID: e.ID, FieldName: "Bad", ValueType: "picture"}
		if err := svc.CreateField(ctx, f); err == nil {
			t.Fatal("expected invalid value_type error")
		}
	})

	t.Run("RejectsUnknownExam", func(t *testing.T) {
		f := &ExamField{ExamID: uuid.New(), FieldName: "Orphan", ValueType: ValueTypeNumeric}
		if err := svc.CreateField(ctx, f); err == nil {
			t.Fatal("expected unknown exam error")
		}
	})
}

func TestListFieldsInDisplayOrder(t *testing.T) {
	svc := NewService(newMockExamRepo(), newMockFieldRepo())
	ctx := context.Background()

	e := &Exam{Name: "CBC", Code: "CBC"}
	if err := svc.CreateExam(ctx, e); err != nil {
		t.Fatalf("CreateExam: %v", err)
	}
	for i, name := range []string{"Platelets", "Hemoglobin", "Hematocrit"} {
		f := &ExamField{ExamID: e.ID, FieldName: name, ValueType: ValueTypeNumeric, DisplayOrder: 3 - i}
		if err := svc.CreateField(ctx, f); err != nil {
			t.Fatalf("CreateField %s: %v", name, err)
		}
	}

	fields, err := svc.ListFields(ctx, e.ID)
	if err != nil {
		t.Fatalf("ListFields: %v", err)
	}
	if len(fields) != 3 {
		t.Fatalf("expected 3 fields, got %d", len(fields))
	}
	for i := 1; i < len(fields); i++ {
		if fields[i-1].DisplayOrder > fields[i].DisplayOrder {
			t.Fatal("fields not sorted by display order")
		}
	}
}

func TestFieldSnapshot(t *testing.T) {
	f := &ExamField{Unit: "g/dL", ReferenceRange: "12.0-17.5"}
	snap := f.Snapshot()

	f.Unit = "mmol/L"
	f.ReferenceRange = "8.0-11.0"
	if snap.Unit != "g/dL" || snap.ReferenceRange != "12.0-17.5" {
		t.Fatalf("snapshot must be an independent copy: %+v", snap)
	}
}
