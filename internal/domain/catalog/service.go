package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Service struct {
	exams  ExamRepository
	fields ExamFieldRepository
}

func NewService(exams ExamRepository, fields ExamFieldRepository) *Service {
	return &Service{exams: exams, fields: fields}
}

var validValueTypes = map[string]bool{
	ValueTypeNumeric: true, ValueTypeText: true,
	ValueTypePercentage: true, ValueTypeChoice: true,
}

func (s *Service) CreateExam(ctx context.Context, e *Exam) error {
	if e.Name == "" {
		return fmt.Errorf("name is required")
	}
	if e.Code == "" {
		return fmt.Errorf("code is required")
	}
	if e.TurnaroundHours <= 0 {
		e.TurnaroundHours = 24
	}
	e.Active = true
	return s.exams.Create(ctx, e)
}

func (s *Service) GetExam(ctx context.Context, id uuid.UUID) (*Exam, error) {
	return s.exams.GetByID(ctx, id)
}

func (s *Service) GetExamByCode(ctx context.Context, code string) (*Exam, error) {
	return s.exams.GetByCode(ctx, code)
}

func (s *Service) UpdateExam(ctx context.Context, e *Exam) error {
	if e.Name == "" {
		return fmt.Errorf("name is required")
	}
	if e.Code == "" {
		return fmt.Errorf("code is required")
	}
	return s.exams.Update(ctx, e)
}

// DisableExam soft-disables an exam so it no longer appears in active
// listings. Requisitions that already reference it are unaffected.
func (s *Service) DisableExam(ctx context.Context, id uuid.UUID) error {
	e, err := s.exams.GetByID(ctx, id)
	if err != nil {
		return err
	}
	e.Active = false
	return s.exams.Update(ctx, e)
}

// DeleteExam hard-deletes an exam. It fails with ErrReferenced once any
// requisition references the exam; callers should fall back to DisableExam.
func (s *Service) DeleteExam(ctx context.Context, id uuid.UUID) error {
	return s.exams.Delete(ctx, id)
}

func (s *Service) ListExams(ctx context.Context, activeOnly bool, limit, offset int) ([]*Exam, int, error) {
	return s.exams.List(ctx, activeOnly, limit, offset)
}

func (s *Service) CreateField(ctx context.Context, f *ExamField) error {
	if f.ExamID == uuid.Nil {
		return fmt.Errorf("exam_id is required")
	}
	if f.FieldName == "" {
		return fmt.Errorf("field_name is required")
	}
	if f.ValueType == "" {
		f.ValueType = ValueTypeText
	}
	if !validValueTypes[f.ValueType] {
		return fmt.Errorf("invalid value_type: %s", f.ValueType)
	}
	if _, err := s.exams.GetByID(ctx, f.ExamID); err != nil {
		return fmt.Errorf("exam %s: %w", f.ExamID, err)
	}
	return s.fields.Create(ctx, f)
}

func (s *Service) GetField(ctx context.Context, id uuid.UUID) (*ExamField, error) {
	return s.fields.GetByID(ctx, id)
}

func (s *Service) UpdateField(ctx context.Context, f *ExamField) error {
	if f.FieldName == "" {
		return fmt.Errorf("field_name is required")
	}
	if !validValueTypes[f.ValueType] {
		return fmt.Errorf("invalid value_type: %s", f.ValueType)
	}
	return s.fields.Update(ctx, f)
}

func (s *Service) DeleteField(ctx context.Context, id uuid.UUID) error {
	return s.fields.Delete(ctx, id)
}

// ListFields returns an exam's fields in display order.
func (s *Service) ListFields(ctx context.Context, examID uuid.UUID) ([]*ExamField, error) {
	return s.fields.ListByExam(ctx, examID)
}
