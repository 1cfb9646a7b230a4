package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrDuplicate is returned when a unique constraint (exam name or code)
// would be violated.
var ErrDuplicate = errors.New("duplicate value")

// ErrReferenced is returned when deleting an exam that requisitions
// already reference.
var ErrReferenced = errors.New("exam is referenced by requisitions")

type ExamRepository interface {
	Create(ctx context.Context, e *Exam) error
	GetByID(ctx context.Context, id uuid.UUID) (*Exam, error)
	GetByCode(ctx context.Context, code string) (*Exam, error)
	Update(ctx context.Context, e *Exam) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, activeOnly bool, limit, offset int) ([]*Exam, int, error)
}

type ExamFieldRepository interface {
	Create(ctx context.Context, f *ExamField) error
	GetByID(ctx context.Context, id uuid.UUID) (*ExamField, error)
	Update(ctx context.Context, f *ExamField) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByExam(ctx context.Context, examID uuid.UUID) ([]*ExamField, error)
}
