package catalog

import (
	"context"
	"errors"

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

// translateErr maps Postgres constraint violations onto the repository's
// sentinel errors.
func translateErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return ErrDuplicate
		case "23503":
			return ErrReferenced
		}
	}
	return err
}

type examRepoPG struct{ pool *pgxpool.Pool }

func NewExamRepoPG(pool *pgxpool.Pool) ExamRepository {
	return &examRepoPG{pool: pool}
}

const examCols = `id, name, code, turnaround_hours, method, department, active, created_at, updated_at`

func scanExam(row pgx.Row) (*Exam, error) {
	var e Exam
	err := row.Scan(&e.ID, &e.Name, &e.Code, &e.TurnaroundHours, &e.Method, &e.Department,
		&e.Active, &e.CreatedAt, &e.UpdatedAt)
	return &e, err
}

func (r *examRepoPG) Create(ctx context.Context, e *Exam) error {
	e.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO exam (id, name, code, turnaround_hours, method, department, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		e.ID, e.Name, e.Code, e.TurnaroundHours, e.Method, e.Department, e.Active)
	return translateErr(err)
}

func (r *examRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Exam, error) {
	return scanExam(conn(ctx, r.pool).QueryRow(ctx, `SELECT `+examCols+` FROM exam WHERE id = $1`, id))
}

func (r *examRepoPG) GetByCode(ctx context.Context, code string) (*Exam, error) {
	return scanExam(conn(ctx, r.pool).QueryRow(ctx, `SELECT `+examCols+` FROM exam WHERE code = $1`, code))
}

func (r *examRepoPG) Update(ctx context.Context, e *Exam) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE exam SET name=$2, code=$3, turnaround_hours=$4, method=$5, department=$6,
			active=$7, updated_at=NOW()
		WHERE id = $1`,
		e.ID, e.Name, e.Code, e.TurnaroundHours, e.Method, e.Department, e.Active)
	return translateErr(err)
}

func (r *examRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM exam WHERE id = $1`, id)
	return translateErr(err)
}

func (r *examRepoPG) List(ctx context.Context, activeOnly bool, limit, offset int) ([]*Exam, int, error) {
	where := ``
	if activeOnly {
		where = ` WHERE active`
	}

	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM exam`+where).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+examCols+` FROM exam`+where+` ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, e)
	}
	return items, total, rows.Err()
}

type examFieldRepoPG struct{ pool *pgxpool.Pool }

func NewExamFieldRepoPG(pool *pgxpool.Pool) ExamFieldRepository {
	return &examFieldRepoPG{pool: pool}
}

const fieldCols = `id, exam_id, field_name, value_type, unit, reference_range, display_order, created_at, updated_at`

func scanField(row pgx.Row) (*ExamField, error) {
	var f ExamField
	err := row.Scan(&f.ID, &f.ExamID, &f.FieldName, &f.ValueType, &f.Unit, &f.ReferenceRange,
		&f.DisplayOrder, &f.CreatedAt, &f.UpdatedAt)
	return &f, err
}

func (r *examFieldRepoPG) Create(ctx context.Context, f *ExamField) error {
	f.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO exam_field (id, exam_id, field_name, value_type, unit, reference_range, display_order)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		f.ID, f.ExamID, f.FieldName, f.ValueType, f.Unit, f.ReferenceRange, f.DisplayOrder)
	return translateErr(err)
}

func (r *examFieldRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*ExamField, error) {
	return scanField(conn(ctx, r.pool).QueryRow(ctx, `SELECT `+fieldCols+` FROM exam_field WHERE id = $1`, id))
}

func (r *examFieldRepoPG) Update(ctx context.Context, f *ExamField) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE exam_field SET field_name=$2, value_type=$3, unit=$4, reference_range=$5,
			display_order=$6, updated_at=NOW()
		WHERE id = $1`,
		f.ID, f.FieldName, f.ValueType, f.Unit, f.ReferenceRange, f.DisplayOrder)
	return translateErr(err)
}

func (r *examFieldRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM exam_field WHERE id = $1`, id)
	return err
}

func (r *examFieldRepoPG) ListByExam(ctx context.Context, examID uuid.UUID) ([]*ExamField, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+fieldCols+` FROM exam_field WHERE exam_id = $1 ORDER BY display_order, field_name`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*ExamField
	for rows.Next() {
		f, err := scanField(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, f)
	}
	return items, rows.Err()
}
