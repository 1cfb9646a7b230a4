package patient

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/anabiolink/lims/internal/platform/db"
)

type Service struct {
	repo Repository
	seq  SequenceRepository
	tx   db.TxRunner
}

func NewService(repo Repository, seq SequenceRepository, tx db.TxRunner) *Service {
	return &Service{repo: repo, seq: seq, tx: tx}
}

var validSexes = map[string]bool{"M": true, "F": true}

// Register admits a new patient. The admission number is drawn from the
// per-day sequence and the patient row written in the same transaction, so
// a failed insert never burns a visible number gap across the two tables.
func (s *Service) Register(ctx context.Context, p *Patient) error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if p.NationalID == "" {
		return fmt.Errorf("national_id is required")
	}
	if p.Sex != "" && !validSexes[p.Sex] {
		return fmt.Errorf("invalid sex: %s", p.Sex)
	}
	if p.BirthDate != nil && p.BirthDate.After(time.Now()) {
		return fmt.Errorf("birth_date cannot be in the future")
	}

	return s.tx(ctx, func(ctx context.Context) error {
		if p.AdmissionNo == "" {
			day := time.Now()
			seq, err := s.seq.Next(ctx, day)
			if err != nil {
				return fmt.Errorf("allocate admission number: %w", err)
			}
			p.AdmissionNo = FormatAdmissionNo(day, seq)
		}
		return s.repo.Create(ctx, p)
	})
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByNationalID(ctx context.Context, nationalID string) (*Patient, error) {
	return s.repo.GetByNationalID(ctx, nationalID)
}

// Update edits demographics. The admission number and creation time are
// immutable and never touched here.
func (s *Service) Update(ctx context.Context, p *Patient) error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if p.Sex != "" && !validSexes[p.Sex] {
		return fmt.Errorf("invalid sex: %s", p.Sex)
	}
	if p.BirthDate != nil && p.BirthDate.After(time.Now()) {
		return fmt.Errorf("birth_date cannot be in the future")
	}
	return s.repo.Update(ctx, p)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) SearchByName(ctx context.Context, name string, limit, offset int) ([]*Patient, int, error) {
	return s.repo.SearchByName(ctx, name, limit, offset)
}
