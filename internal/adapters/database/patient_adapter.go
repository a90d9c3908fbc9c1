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

// PatientAdapter implements the PatientRepository interface
type PatientAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewPatientAdapter creates a new patient adapter
func NewPatientAdapter(client *postgres.Client) repositories.PatientRepository {
	return &PatientAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// GetByID retrieves a patient by ID
func (a *PatientAdapter) GetByID(ctx context.Context, tenantID, id string) (*entities.Patient, error) {
	query, args, err := a.db.Select(
		"id", "tenant_id", "first_name", "last_name", "date_of_birth",
		"phone", "email", "created_at", "updated_at",
	).From("patients").
		Where(goqu.Ex{"tenant_id": tenantID, "id": id}).
		ToSQL()

	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	patient, err := scanPatient(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("patient with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get patient", err)
	}

	return patient, nil
}

// ListByDateOfBirth retrieves all patients in a tenant sharing a date of birth
func (a *PatientAdapter) ListByDateOfBirth(ctx context.Context, tenantID string, dob time.Time) ([]*entities.Patient, error) {
	query, args, err := a.db.Select(
		"id", "tenant_id", "first_name", "last_name", "date_of_birth",
		"phone", "email", "created_at", "updated_at",
	).From("patients").
		Where(goqu.Ex{"tenant_id": tenantID}).
		Where(goqu.L("date_of_birth = ?::date", dob.Format("2006-01-02"))).
		Order(goqu.I("created_at").Asc()).
		ToSQL()

	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list patients", err)
	}
	defer rows.Close()

	var patients []*entities.Patient
	for rows.Next() {
		patient, err := scanPatient(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan patient", err)
		}
		patients = append(patients, patient)
	}

	return patients, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPatient(row rowScanner) (*entities.Patient, error) {
	patient := &entities.Patient{}
	var phone, email sql.NullString

	err := row.Scan(
		&patient.ID,
		&patient.TenantID,
		&patient.FirstName,
		&patient.LastName,
		&patient.DateOfBirth,
		&phone,
		&email,
		&patient.CreatedAt,
		&patient.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	patient.Phone = phone.String
	patient.Email = email.String
	return patient, nil
}
