package requisition

import (
	"time"

	"github.com/google/uuid"
)

// Requisition statuses. Transitions only ever move forward.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusValidated  = "validated"
)

// Requisition is a request for one or more exams on a patient. The exam set
// lives in an explicit join table so per-item metadata survives.
type Requisition struct {
	ID        uuid.UUID `db:"id" json:"id"`
	PatientID uuid.UUID `db:"patient_id" json:"patient_id"`
	AnalystID *string   `db:"analyst_id" json:"analyst_id,omitempty"`
	Notes     string    `db:"notes" json:"notes"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ExamRef is the requisition's view of one requested exam.
type ExamRef struct {
	ID      uuid.UUID `db:"id" json:"id"`
	Name    string    `db:"name" json:"name"`
	Code    string    `db:"code" json:"code"`
	AddedAt time.Time `db:"added_at" json:"added_at"`
}

// ResultItem records the value for one exam field within one requisition.
// Unit and reference range are copied from the field when the row is
// materialized; later catalog edits never alter them.
type ResultItem struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	RequisitionID  uuid.UUID  `db:"requisition_id" json:"requisition_id"`
	ExamFieldID    uuid.UUID  `db:"exam_field_id" json:"exam_field_id"`
	Value          string     `db:"value" json:"value"`
	Unit           string     `db:"unit" json:"unit"`
	ReferenceRange string     `db:"reference_range" json:"reference_range"`
	EnteredBy      *string    `db:"entered_by" json:"entered_by,omitempty"`
	EnteredAt      *time.Time `db:"entered_at" json:"entered_at,omitempty"`
	Validated      bool       `db:"validated" json:"validated"`
	ValidatedBy    *string    `db:"validated_by" json:"validated_by,omitempty"`
	ValidatedAt    *time.Time `db:"validated_at" json:"validated_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// ResultRow is a ResultItem joined with its field and exam for display and
// report grouping, ordered by exam name then field display order.
type ResultRow struct {
	ResultItem
	FieldName string    `db:"field_name" json:"field_name"`
	ExamID    uuid.UUID `db:"exam_id" json:"exam_id"`
	ExamName  string    `db:"exam_name" json:"exam_name"`
	ExamCode  string    `db:"exam_code" json:"exam_code"`
}
