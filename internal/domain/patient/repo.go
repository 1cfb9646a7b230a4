package patient

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no patient matches the lookup.
var ErrNotFound = errors.New("patient not found")

// ErrDuplicateNationalID is returned when another patient already holds the
// same identification document number.
var ErrDuplicateNationalID = errors.New("national id already registered")

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByNationalID(ctx context.Context, nationalID string) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)
	SearchByName(ctx context.Context, name string, limit, offset int) ([]*Patient, int, error)
}

// SequenceRepository hands out per-day admission sequence numbers. The
// increment must be atomic so concurrent registrations on the same day can
// never receive the same number.
type SequenceRepository interface {
	Next(ctx context.Context, day time.Time) (int, error)
}
