package requisition

import (
	"context"
	"errors"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anabiolink/lims/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func conn(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const reqCols = `id, patient_id, analyst_id, notes, status, created_at, updated_at`

func scanRequisition(row pgx.Row) (*Requisition, error) {
	var r Requisition
	err := row.Scan(&r.ID, &r.PatientID, &r.AnalystID, &r.Notes, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	return &r, notFound(err)
}

func (r *repoPG) Create(ctx context.Context, req *Requisition) error {
	req.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO requisition (id, patient_id, analyst_id, notes, status)
		VALUES ($1,$2,$3,$4,$5)`,
		req.ID, req.PatientID, req.AnalystID, req.Notes, req.Status)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Requisition, error) {
	return scanRequisition(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+reqCols+` FROM requisition WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, req *Requisition) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE requisition SET analyst_id=$2, notes=$3, status=$4, updated_at=NOW()
		WHERE id = $1`,
		req.ID, req.AnalystID, req.Notes, req.Status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, status string, patientID *uuid.UUID, limit, offset int) ([]*Requisition, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	if status != "" {
		args = append(args, status)
		where += ` AND status = $1`
	}
	if patientID != nil {
		args = append(args, *patientID)
		if len(args) == 1 {
			where += ` AND patient_id = $1`
		} else {
			where += ` AND patient_id = $2`
		}
	}

	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM requisition`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	n := len(args)
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+reqCols+` FROM requisition`+where+
			` ORDER BY created_at DESC LIMIT $`+strconv.Itoa(n-1)+` OFFSET $`+strconv.Itoa(n), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Requisition
	for rows.Next() {
		var req Requisition
		if err := rows.Scan(&req.ID, &req.PatientID, &req.AnalystID, &req.Notes,
			&req.Status, &req.CreatedAt, &req.UpdatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, &req)
	}
	return items, total, rows.Err()
}

func (r *repoPG) AddExam(ctx context.Context, reqID, examID uuid.UUID) (bool, error) {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO requisition_exam (requisition_id, exam_id)
		VALUES ($1,$2)
		ON CONFLICT (requisition_id, exam_id) DO NOTHING`,
		reqID, examID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *repoPG) RemoveExam(ctx context.Context, reqID, examID uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx,
		`DELETE FROM requisition_exam WHERE requisition_id = $1 AND exam_id = $2`, reqID, examID)
	return err
}

func (r *repoPG) ListExams(ctx context.Context, reqID uuid.UUID) ([]*ExamRef, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT e.id, e.name, e.code, re.added_at
		FROM requisition_exam re
		JOIN exam e ON e.id = re.exam_id
		WHERE re.requisition_id = $1
		ORDER BY e.name`, reqID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*ExamRef
	for rows.Next() {
		var ref ExamRef
		if err := rows.Scan(&ref.ID, &ref.Name, &ref.Code, &ref.AddedAt); err != nil {
			return nil, err
		}
		items = append(items, &ref)
	}
	return items, rows.Err()
}

type resultRepoPG struct{ pool *pgxpool.Pool }

func NewResultRepoPG(pool *pgxpool.Pool) ResultRepository {
	return &resultRepoPG{pool: pool}
}

const resultCols = `id, requisition_id, exam_field_id, value, unit, reference_range,
	entered_by, entered_at, validated, validated_by, validated_at, created_at, updated_at`

func scanResult(row pgx.Row) (*ResultItem, error) {
	var it ResultItem
	err := row.Scan(&it.ID, &it.RequisitionID, &it.ExamFieldID, &it.Value, &it.Unit,
		&it.ReferenceRange, &it.EnteredBy, &it.EnteredAt, &it.Validated, &it.ValidatedBy,
		&it.ValidatedAt, &it.CreatedAt, &it.UpdatedAt)
	return &it, notFound(err)
}

// CreateIfAbsent inserts a result row unless one already exists for the
// (requisition, field) pair. The insert is guarded on the field still
// existing, so a field deleted after its definitions were listed inserts
// nothing instead of raising a foreign key failure that would poison the
// surrounding transaction. The 23503 mapping covers the remaining race
// between the guard and the insert.
func (r *resultRepoPG) CreateIfAbsent(ctx context.Context, item *ResultItem) (bool, error) {
	item.ID = uuid.New()
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO result_item (id, requisition_id, exam_field_id, value, unit, reference_range)
		SELECT $1, $2, $3, $4, $5, $6
		WHERE EXISTS (SELECT 1 FROM exam_field WHERE id = $3)
		ON CONFLICT (requisition_id, exam_field_id) DO NOTHING`,
		item.ID, item.RequisitionID, item.ExamFieldID, item.Value, item.Unit, item.ReferenceRange)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" &&
			pgErr.ConstraintName == "result_item_exam_field_id_fkey" {
			return false, ErrFieldGone
		}
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *resultRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*ResultItem, error) {
	return scanResult(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+resultCols+` FROM result_item WHERE id = $1`, id))
}

func (r *resultRepoPG) SetValue(ctx context.Context, item *ResultItem) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE result_item SET value=$2, entered_by=$3, entered_at=$4, updated_at=NOW()
		WHERE id = $1 AND NOT validated`,
		item.ID, item.Value, item.EnteredBy, item.EnteredAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyValidated
	}
	return nil
}

func (r *resultRepoPG) MarkValidated(ctx context.Context, id uuid.UUID, by string) (bool, error) {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE result_item SET validated=true, validated_by=$2, validated_at=NOW(), updated_at=NOW()
		WHERE id = $1 AND NOT validated`,
		id, by)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *resultRepoPG) ListByRequisition(ctx context.Context, reqID uuid.UUID) ([]*ResultRow, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT ri.id, ri.requisition_id, ri.exam_field_id, ri.value, ri.unit, ri.reference_range,
			ri.entered_by, ri.entered_at, ri.validated, ri.validated_by, ri.validated_at,
			ri.created_at, ri.updated_at,
			f.field_name, e.id, e.name, e.code
		FROM result_item ri
		JOIN exam_field f ON f.id = ri.exam_field_id
		JOIN exam e ON e.id = f.exam_id
		WHERE ri.requisition_id = $1
		ORDER BY e.name, f.display_order, f.field_name`, reqID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*ResultRow
	for rows.Next() {
		var row ResultRow
		if err := rows.Scan(&row.ID, &row.RequisitionID, &row.ExamFieldID, &row.Value,
			&row.Unit, &row.ReferenceRange, &row.EnteredBy, &row.EnteredAt, &row.Validated,
			&row.ValidatedBy, &row.ValidatedAt, &row.CreatedAt, &row.UpdatedAt,
			&row.FieldName, &row.ExamID, &row.ExamName, &row.ExamCode); err != nil {
			return nil, err
		}
		items = append(items, &row)
	}
	return items, rows.Err()
}

func (r *resultRepoPG) CountUnvalidated(ctx context.Context, reqID uuid.UUID) (int, error) {
	var n int
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM result_item WHERE requisition_id = $1 AND NOT validated AND value <> ''`,
		reqID).Scan(&n)
	return n, err
}
