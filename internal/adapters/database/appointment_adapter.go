package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"

	"github.com/crowndesk/receptionist/internal/domain/entities"
	"github.com/crowndesk/receptionist/internal/domain/repositories"
	"github.com/crowndesk/receptionist/internal/infrastructure/clients/postgres"
	apperrors "github.com/crowndesk/receptionist/pkg/errors"
)

// blockingStatuses are the appointment states that occupy a slot
var blockingStatuses = []interface{}{
	entities.AppointmentStatusScheduled,
	entities.AppointmentStatusConfirmed,
	entities.AppointmentStatusCompleted,
}

// AppointmentAdapter implements the read-only AppointmentRepository
// interface. Appointment writes happen exclusively inside the approval
// resolution transaction in ApprovalAdapter.
type AppointmentAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewAppointmentAdapter creates a new appointment adapter
func NewAppointmentAdapter(client *postgres.Client) *AppointmentAdapter {
	return &AppointmentAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

var _ repositories.AppointmentRepository = (*AppointmentAdapter)(nil)

// GetByID retrieves an appointment by ID
func (a *AppointmentAdapter) GetByID(ctx context.Context, tenantID, id string) (*entities.Appointment, error) {
	query, args, err := a.appointmentSelect().
		Where(goqu.Ex{"tenant_id": tenantID, "id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	appointment, err := scanAppointment(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("appointment with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get appointment", err)
	}

	return appointment, nil
}

// ListBlocking retrieves the appointments occupying a provider's schedule
// within [from, to)
func (a *AppointmentAdapter) ListBlocking(ctx context.Context, tenantID, providerID string, from, to time.Time) ([]*entities.Appointment, error) {
	query, args, err := a.appointmentSelect().
		Where(goqu.Ex{"tenant_id": tenantID, "provider_id": providerID}).
		Where(goqu.C("status").In(blockingStatuses...)).
		Where(goqu.C("start_time").Lt(to)).
		Where(goqu.C("end_time").Gt(from)).
		Order(goqu.I("start_time").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list appointments", err)
	}
	defer rows.Close()

	var appointments []*entities.Appointment
	for rows.Next() {
		appointment, err := scanAppointment(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan appointment", err)
		}
		appointments = append(appointments, appointment)
	}

	return appointments, nil
}

// FindByPatientOnDate finds a patient's most recent blocking appointment on
// a calendar day
func (a *AppointmentAdapter) FindByPatientOnDate(ctx context.Context, tenantID, patientID string, day time.Time) (*entities.Appointment, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	query, args, err := a.appointmentSelect().
		Where(goqu.Ex{"tenant_id": tenantID, "patient_id": patientID}).
		Where(goqu.C("status").In(blockingStatuses...)).
		Where(goqu.C("start_time").Gte(dayStart)).
		Where(goqu.C("start_time").Lt(dayEnd)).
		Order(goqu.I("start_time").Desc()).
		Limit(1).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	appointment, err := scanAppointment(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("no appointment found on that date")
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to find appointment", err)
	}

	return appointment, nil
}

func (a *AppointmentAdapter) appointmentSelect() *goqu.SelectDataset {
	return a.db.Select(
		"id", "tenant_id", "patient_id", "provider_id", "start_time",
		"end_time", "type", "status", "notes", "created_at", "updated_at",
	).From("appointments")
}

func scanAppointment(row rowScanner) (*entities.Appointment, error) {
	appointment := &entities.Appointment{}
	var notes sql.NullString

	err := row.Scan(
		&appointment.ID,
		&appointment.TenantID,
		&appointment.PatientID,
		&appointment.ProviderID,
		&appointment.StartTime,
		&appointment.EndTime,
		&appointment.Type,
		&appointment.Status,
		&notes,
		&appointment.CreatedAt,
		&appointment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	appointment.Notes = notes.String
	return appointment, nil
}
