package repositories

import (
	"context"
	"time"

	"github.com/crowndesk/receptionist/internal/domain/entities"
)

// PatientRepository defines the interface for patient data operations.
// Every query is scoped by tenant id; cross-tenant reads are a correctness
// violation, not a policy one.
type PatientRepository interface {
	// GetByID retrieves a patient by ID within a tenant
	GetByID(ctx context.Context, tenantID, id string) (*entities.Patient, error)

	// ListByDateOfBirth retrieves all patients in a tenant sharing a date of birth
	ListByDateOfBirth(ctx context.Context, tenantID string, dob time.Time) ([]*entities.Patient, error)
}
