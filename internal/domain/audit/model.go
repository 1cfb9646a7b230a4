package audit

import (
	"time"

	"github.com/google/uuid"
)

// Actions recorded in the operation log.
const (
	ActionRequisitionCreated = "requisition_created"
	ActionExamsAdded         = "exams_added"
	ActionExamRemoved        = "exam_removed"
	ActionResultEntered      = "result_entered"
	ActionResultValidated    = "result_validated"
	ActionStatusChanged      = "status_changed"
)

// Entry is one append-only operation log record. Entries are never updated
// or deleted.
type Entry struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	RequisitionID *uuid.UUID `db:"requisition_id" json:"requisition_id,omitempty"`
	Actor         string     `db:"actor" json:"actor"`
	Action        string     `db:"action" json:"action"`
	Detail        string     `db:"detail" json:"detail"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}
