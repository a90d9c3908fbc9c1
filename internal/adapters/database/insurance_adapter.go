package database

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"

	"github.com/crowndesk/receptionist/internal/domain/entities"
	"github.com/crowndesk/receptionist/internal/domain/repositories"
	"github.com/crowndesk/receptionist/internal/infrastructure/clients/postgres"
	apperrors "github.com/crowndesk/receptionist/pkg/errors"
)

// InsuranceAdapter implements the InsuranceRepository interface
type InsuranceAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewInsuranceAdapter creates a new insurance adapter
func NewInsuranceAdapter(client *postgres.Client) *InsuranceAdapter {
	return &InsuranceAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

var _ repositories.InsuranceRepository = (*InsuranceAdapter)(nil)

// ListActiveByPatient retrieves a patient's active insurance policies
func (a *InsuranceAdapter) ListActiveByPatient(ctx context.Context, tenantID, patientID string) ([]*entities.InsurancePolicy, error) {
	query, args, err := a.db.Select(
		"id", "tenant_id", "patient_id", "carrier", "policy_number",
		"group_number", "is_active", "created_at", "updated_at",
	).From("insurance_policies").
		Where(goqu.Ex{"tenant_id": tenantID, "patient_id": patientID, "is_active": true}).
		Order(goqu.I("created_at").Desc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list insurance policies", err)
	}
	defer rows.Close()

	var policies []*entities.InsurancePolicy
	for rows.Next() {
		policy := &entities.InsurancePolicy{}
		err := rows.Scan(
			&policy.ID,
			&policy.TenantID,
			&policy.PatientID,
			&policy.Carrier,
			&policy.PolicyNumber,
			&policy.GroupNumber,
			&policy.IsActive,
			&policy.CreatedAt,
			&policy.UpdatedAt,
		)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan insurance policy", err)
		}
		policies = append(policies, policy)
	}

	return policies, nil
}
