package requisition

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/anabiolink/lims/internal/domain/audit"
	"github.com/anabiolink/lims/internal/domain/catalog"
	"github.com/anabiolink/lims/internal/platform/db"
)

// transitions is the forward-only status machine. A requisition never moves
// back to an earlier state.
var transitions = map[string][]string{
	StatusPending:    {StatusProcessing},
	StatusProcessing: {StatusCompleted},
	StatusCompleted:  {StatusValidated},
	StatusValidated:  {},
}

func canTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// FieldSource resolves the field definitions of an exam at materialization
// time.
type FieldSource interface {
	ListByExam(ctx context.Context, examID uuid.UUID) ([]*catalog.ExamField, error)
}

// Recorder appends operation log entries.
type Recorder interface {
	Record(ctx context.Context, e *audit.Entry) error
}

type Service struct {
	repo    Repository
	results ResultRepository
	fields  FieldSource
	log     Recorder
	tx      db.TxRunner
	logger  zerolog.Logger
}

func NewService(repo Repository, results ResultRepository, fields FieldSource, rec Recorder, tx db.TxRunner, logger zerolog.Logger) *Service {
	return &Service{repo: repo, results: results, fields: fields, log: rec, tx: tx, logger: logger}
}

// record appends an operation log entry. Logging failures are reported but
// never fail the business operation they describe.
func (s *Service) record(ctx context.Context, reqID uuid.UUID, actor, action, detail string) {
	err := s.log.Record(ctx, &audit.Entry{
		RequisitionID: &reqID,
		Actor:         actor,
		Action:        action,
		Detail:        detail,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("action", action).Msg("operation log write failed")
	}
}

// Create opens a requisition in pending status and materializes result rows
// for every field of the requested exams, all in one transaction.
func (s *Service) Create(ctx context.Context, actor string, req *Requisition, examIDs []uuid.UUID) (*Requisition, error) {
	if req.PatientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}
	if len(examIDs) == 0 {
		return nil, fmt.Errorf("at least one exam is required")
	}
	req.Status = StatusPending

	err := s.tx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, req); err != nil {
			return fmt.Errorf("create requisition: %w", err)
		}
		for _, examID := range examIDs {
			if _, err := s.repo.AddExam(ctx, req.ID, examID); err != nil {
				return fmt.Errorf("add exam %s: %w", examID, err)
			}
		}
		if _, err := s.materialize(ctx, req.ID, examIDs); err != nil {
			return err
		}
		s.record(ctx, req.ID, actor, audit.ActionRequisitionCreated,
			fmt.Sprintf("requisition opened with %d exam(s)", len(examIDs)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Requisition, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, status string, patientID *uuid.UUID, limit, offset int) ([]*Requisition, int, error) {
	if status != "" {
		if _, ok := transitions[status]; !ok {
			return nil, 0, fmt.Errorf("unknown status: %s", status)
		}
	}
	return s.repo.List(ctx, status, patientID, limit, offset)
}

func (s *Service) ListExams(ctx context.Context, id uuid.UUID) ([]*ExamRef, error) {
	return s.repo.ListExams(ctx, id)
}

// AddExams links further exams to an open requisition and materializes the
// missing result rows. Exams already on the requisition are skipped and
// their existing rows left untouched.
func (s *Service) AddExams(ctx context.Context, actor string, reqID uuid.UUID, examIDs []uuid.UUID) error {
	if len(examIDs) == 0 {
		return fmt.Errorf("at least one exam is required")
	}
	req, err := s.repo.GetByID(ctx, reqID)
	if err != nil {
		return err
	}
	if req.Status == StatusValidated {
		return fmt.Errorf("%w: requisition is validated", ErrInvalidTransition)
	}

	return s.tx(ctx, func(ctx context.Context) error {
		added := 0
		for _, examID := range examIDs {
			ok, err := s.repo.AddExam(ctx, reqID, examID)
			if err != nil {
				return fmt.Errorf("add exam %s: %w", examID, err)
			}
			if ok {
				added++
			}
		}
		created, err := s.materialize(ctx, reqID, examIDs)
		if err != nil {
			return err
		}
		if added > 0 {
			s.record(ctx, reqID, actor, audit.ActionExamsAdded,
				fmt.Sprintf("%d exam(s) added, %d result row(s) materialized", added, created))
		}
		return nil
	})
}

// RemoveExam unlinks an exam from the requisition. Result rows already
// materialized for its fields are kept, values included.
func (s *Service) RemoveExam(ctx context.Context, actor string, reqID, examID uuid.UUID) error {
	req, err := s.repo.GetByID(ctx, reqID)
	if err != nil {
		return err
	}
	if req.Status == StatusValidated {
		return fmt.Errorf("%w: requisition is validated", ErrInvalidTransition)
	}

	return s.tx(ctx, func(ctx context.Context) error {
		if err := s.repo.RemoveExam(ctx, reqID, examID); err != nil {
			return err
		}
		s.record(ctx, reqID, actor, audit.ActionExamRemoved,
			fmt.Sprintf("exam %s removed, result rows kept", examID))
		return nil
	})
}

// materialize creates one result row per field of each given exam, copying
// unit and reference range from the field definition. Rows that already
// exist for a (requisition, field) pair are skipped, so calling this twice
// is harmless. A field deleted between listing and insert is skipped too,
// it never fails the surrounding save.
func (s *Service) materialize(ctx context.Context, reqID uuid.UUID, examIDs []uuid.UUID) (int, error) {
	created := 0
	for _, examID := range examIDs {
		fields, err := s.fields.ListByExam(ctx, examID)
		if err != nil {
			return created, fmt.Errorf("load fields for exam %s: %w", examID, err)
		}
		for _, f := range fields {
			snap := f.Snapshot()
			item := &ResultItem{
				RequisitionID:  reqID,
				ExamFieldID:    f.ID,
				Unit:           snap.Unit,
				ReferenceRange: snap.ReferenceRange,
			}
			ok, err := s.results.CreateIfAbsent(ctx, item)
			if errors.Is(err, ErrFieldGone) {
				s.logger.Warn().Str("field_id", f.ID.String()).Msg("field deleted during materialization, row skipped")
				continue
			}
			if err != nil {
				return created, fmt.Errorf("materialize field %s: %w", f.ID, err)
			}
			if ok {
				created++
			}
		}
	}
	return created, nil
}

func (s *Service) ListResults(ctx context.Context, reqID uuid.UUID) ([]*ResultRow, error) {
	return s.results.ListByRequisition(ctx, reqID)
}

// EnterResult records a measured value on a result row. Validated rows are
// immutable.
func (s *Service) EnterResult(ctx context.Context, actor string, itemID uuid.UUID, value string) (*ResultItem, error) {
	item, err := s.results.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.Validated {
		return nil, ErrAlreadyValidated
	}

	now := time.Now()
	item.Value = value
	item.EnteredBy = &actor
	item.EnteredAt = &now

	err = s.tx(ctx, func(ctx context.Context) error {
		if err := s.results.SetValue(ctx, item); err != nil {
			return err
		}
		s.record(ctx, item.RequisitionID, actor, audit.ActionResultEntered,
			fmt.Sprintf("value entered on result %s", item.ID))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// ValidateResult stamps a result row validated. A row without a value cannot
// be validated, and validating an already validated row is a no-op.
func (s *Service) ValidateResult(ctx context.Context, actor string, itemID uuid.UUID) (*ResultItem, error) {
	item, err := s.results.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.Validated {
		return item, nil
	}
	if item.Value == "" {
		return nil, ErrEmptyValue
	}

	err = s.tx(ctx, func(ctx context.Context) error {
		updated, err := s.results.MarkValidated(ctx, itemID, actor)
		if err != nil {
			return err
		}
		if updated {
			s.record(ctx, item.RequisitionID, actor, audit.ActionResultValidated,
				fmt.Sprintf("result %s validated", item.ID))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.results.GetByID(ctx, itemID)
}

// ChangeStatus moves a requisition along the forward-only status machine.
// Moving to validated requires every entered result to be validated first.
func (s *Service) ChangeStatus(ctx context.Context, actor string, reqID uuid.UUID, to string) (*Requisition, error) {
	if _, ok := transitions[to]; !ok {
		return nil, fmt.Errorf("unknown status: %s", to)
	}

	var req *Requisition
	err := s.tx(ctx, func(ctx context.Context) error {
		var err error
		req, err = s.repo.GetByID(ctx, reqID)
		if err != nil {
			return err
		}
		if !canTransition(req.Status, to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, req.Status, to)
		}
		if to == StatusValidated {
			n, err := s.results.CountUnvalidated(ctx, reqID)
			if err != nil {
				return err
			}
			if n > 0 {
				return fmt.Errorf("%w: %d pending", ErrUnfilledResults, n)
			}
		}

		from := req.Status
		req.Status = to
		if err := s.repo.Update(ctx, req); err != nil {
			return err
		}
		s.record(ctx, reqID, actor, audit.ActionStatusChanged,
			fmt.Sprintf("status %s -> %s", from, to))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// UpdateNotes edits the free-text notes and assigned analyst on an open
// requisition.
func (s *Service) UpdateNotes(ctx context.Context, reqID uuid.UUID, notes string, analystID *string) (*Requisition, error) {
	req, err := s.repo.GetByID(ctx, reqID)
	if err != nil {
		return nil, err
	}
	if req.Status == StatusValidated {
		return nil, fmt.Errorf("%w: requisition is validated", ErrInvalidTransition)
	}
	req.Notes = notes
	if analystID != nil {
		req.AnalystID = analystID
	}
	if err := s.repo.Update(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}
