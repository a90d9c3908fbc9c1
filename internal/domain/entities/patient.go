package entities

import (
	"time"
)

// Patient represents a patient record within a tenant's data partition
type Patient struct {
	ID          string    `json:"id" db:"id"`
	TenantID    string    `json:"tenant_id" db:"tenant_id"`
	FirstName   string    `json:"first_name" db:"first_name"`
	LastName    string    `json:"last_name" db:"last_name"`
	DateOfBirth time.Time `json:"date_of_birth" db:"date_of_birth"`
	Phone       string    `json:"phone" db:"phone"`
	Email       string    `json:"email" db:"email"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// FullName returns the patient's display name
func (p *Patient) FullName() string {
	if p.LastName == "" {
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// PatientMatchCandidate is a transient identity-resolution result. It is
// never persisted; it only lives for the duration of a single lookup.
type PatientMatchCandidate struct {
	PatientID     string  `json:"patient_id"`
	FullName      string  `json:"full_name"`
	Score         float64 `json:"score"`
	MatchedOnName bool    `json:"matched_on_name"`
	MatchedOnDOB  bool    `json:"matched_on_dob"`
}
