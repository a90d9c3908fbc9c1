package repositories

import (
	"context"

	"github.com/crowndesk/receptionist/internal/domain/entities"
)

// InsuranceRepository defines the interface for insurance policy lookups
type InsuranceRepository interface {
	// ListActiveByPatient retrieves a patient's active policies
	ListActiveByPatient(ctx context.Context, tenantID, patientID string) ([]*entities.InsurancePolicy, error)
}
