package patient

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Patient is one person registered at the laboratory's front desk.
type Patient struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	AdmissionNo    string     `db:"admission_no" json:"admission_no"`
	Name           string     `db:"name" json:"name"`
	BirthDate      *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Sex            string     `db:"sex" json:"sex"`
	Phone          string     `db:"phone" json:"phone"`
	Residence      string     `db:"residence" json:"residence"`
	OriginDept     string     `db:"origin_dept" json:"origin_dept"`
	Nationality    string     `db:"nationality" json:"nationality"`
	NationalID     string     `db:"national_id" json:"national_id"`
	MedicalHistory *string    `db:"medical_history" json:"medical_history,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// Age derives the patient's age in full years; nil when the birth date is
// unknown. Never stored.
func (p *Patient) Age() *int {
	if p.BirthDate == nil {
		return nil
	}
	now := time.Now()
	years := now.Year() - p.BirthDate.Year()
	if now.Month() < p.BirthDate.Month() ||
		(now.Month() == p.BirthDate.Month() && now.Day() < p.BirthDate.Day()) {
		years--
	}
	return &years
}

// FormatAdmissionNo builds the human-readable admission number shown on
// documents: the registration date followed by a 4-digit daily sequence.
func FormatAdmissionNo(day time.Time, seq int) string {
	return fmt.Sprintf("%s%04d", day.Format("20060102"), seq)
}
