package catalog

import (
	"time"

	"github.com/google/uuid"
)

// Exam is a catalog entry describing one laboratory test.
type Exam struct {
	ID              uuid.UUID `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	Code            string    `db:"code" json:"code"`
	TurnaroundHours int       `db:"turnaround_hours" json:"turnaround_hours"`
	Method          *string   `db:"method" json:"method,omitempty"`
	Department      *string   `db:"department" json:"department,omitempty"`
	Active          bool      `db:"active" json:"active"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Field value types.
const (
	ValueTypeNumeric    = "numeric"
	ValueTypeText       = "text"
	ValueTypePercentage = "percentage"
	ValueTypeChoice     = "choice"
)

// ExamField is one measurable parameter of an exam. DisplayOrder fixes the
// order fields appear in entry forms and on reports.
type ExamField struct {
	ID             uuid.UUID `db:"id" json:"id"`
	ExamID         uuid.UUID `db:"exam_id" json:"exam_id"`
	FieldName      string    `db:"field_name" json:"field_name"`
	ValueType      string    `db:"value_type" json:"value_type"`
	Unit           string    `db:"unit" json:"unit"`
	ReferenceRange string    `db:"reference_range" json:"reference_range"`
	DisplayOrder   int       `db:"display_order" json:"display_order"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// FieldSnapshot is the portion of a field copied onto result rows when they
// are materialized. Later catalog edits never touch rows created from an
// earlier snapshot.
type FieldSnapshot struct {
	Unit           string
	ReferenceRange string
}

// Snapshot captures the field's current unit and reference range.
func (f *ExamField) Snapshot() FieldSnapshot {
	return FieldSnapshot{Unit: f.Unit, ReferenceRange: f.ReferenceRange}
}
