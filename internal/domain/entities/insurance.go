package entities

import (
	"time"
)

// InsurancePolicy represents a patient's insurance coverage on file
type InsurancePolicy struct {
	ID           string    `json:"id" db:"id"`
	TenantID     string    `json:"tenant_id" db:"tenant_id"`
	PatientID    string    `json:"patient_id" db:"patient_id"`
	Carrier      string    `json:"carrier" db:"carrier"`
	PolicyNumber string    `json:"policy_number" db:"policy_number"`
	GroupNumber  string    `json:"group_number" db:"group_number"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}
