package audit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Service appends to and reads the operation log. There is deliberately no
// update or delete path.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Record(ctx context.Context, e *Entry) error {
	if e.Action == "" {
		return fmt.Errorf("action is required")
	}
	return s.repo.Create(ctx, e)
}

func (s *Service) ListByRequisition(ctx context.Context, requisitionID uuid.UUID, limit, offset int) ([]*Entry, int, error) {
	return s.repo.ListByRequisition(ctx, requisitionID, limit, offset)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Entry, int, error) {
	return s.repo.List(ctx, limit, offset)
}
