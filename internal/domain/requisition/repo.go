package requisition

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a requisition or result item does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition is returned when a status change is not allowed.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrAlreadyValidated is returned when writing to a validated result item.
	ErrAlreadyValidated = errors.New("result already validated")
	// ErrEmptyValue is returned when validating a result with no value entered.
	ErrEmptyValue = errors.New("result has no value")
	// ErrUnfilledResults is returned when closing a requisition that still has
	// results awaiting entry or validation.
	ErrUnfilledResults = errors.New("requisition has unvalidated results")
	// ErrFieldGone is returned when materializing a result for a field that was
	// deleted after its definitions were loaded. Callers skip the row.
	ErrFieldGone = errors.New("exam field no longer exists")
)

// Repository persists requisitions and their exam join rows.
type Repository interface {
	Create(ctx context.Context, r *Requisition) error
	GetByID(ctx context.Context, id uuid.UUID) (*Requisition, error)
	Update(ctx context.Context, r *Requisition) error
	List(ctx context.Context, status string, patientID *uuid.UUID, limit, offset int) ([]*Requisition, int, error)

	// AddExam links an exam to a requisition. Adding an exam that is already
	// linked is a no-op and reports added=false.
	AddExam(ctx context.Context, reqID, examID uuid.UUID) (added bool, err error)
	RemoveExam(ctx context.Context, reqID, examID uuid.UUID) error
	ListExams(ctx context.Context, reqID uuid.UUID) ([]*ExamRef, error)
}

// ResultRepository persists materialized result items.
type ResultRepository interface {
	// CreateIfAbsent inserts the item unless a row for the same
	// (requisition, exam field) pair already exists. Existing rows are left
	// untouched and created=false is reported. A field deleted since its
	// definitions were loaded yields ErrFieldGone.
	CreateIfAbsent(ctx context.Context, item *ResultItem) (created bool, err error)
	GetByID(ctx context.Context, id uuid.UUID) (*ResultItem, error)
	SetValue(ctx context.Context, item *ResultItem) error
	// MarkValidated stamps the item validated. Items that are already
	// validated are skipped and updated=false is reported.
	MarkValidated(ctx context.Context, id uuid.UUID, by string) (updated bool, err error)
	ListByRequisition(ctx context.Context, reqID uuid.UUID) ([]*ResultRow, error)
	CountUnvalidated(ctx context.Context, reqID uuid.UUID) (int, error)
}
