package repositories

import (
	"context"
	"time"

	"github.com/crowndesk/receptionist/internal/domain/entities"
)

// AppointmentRepository defines the interface for appointment data
// operations. Writes flow exclusively through the approval resolution path;
// call sessions only ever read.
type AppointmentRepository interface {
	// GetByID retrieves an appointment by ID within a tenant
	GetByID(ctx context.Context, tenantID, id string) (*entities.Appointment, error)

	// ListBlocking retrieves the appointments that occupy a provider's
	// schedule within [from, to)
	ListBlocking(ctx context.Context, tenantID, providerID string, from, to time.Time) ([]*entities.Appointment, error)

	// FindByPatientOnDate finds a patient's most recent blocking appointment
	// on a calendar day
	FindByPatientOnDate(ctx context.Context, tenantID, patientID string, day time.Time) (*entities.Appointment, error)
}
