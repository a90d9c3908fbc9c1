package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"

	"github.com/crowndesk/receptionist/internal/domain/entities"
	"github.com/crowndesk/receptionist/internal/domain/repositories"
	"github.com/crowndesk/receptionist/internal/infrastructure/clients/postgres"
	apperrors "github.com/crowndesk/receptionist/pkg/errors"
)

// ProviderAdapter implements the ProviderRepository interface
type ProviderAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewProviderAdapter creates a new provider adapter
func NewProviderAdapter(client *postgres.Client) repositories.ProviderRepository {
	return &ProviderAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// GetByID retrieves a provider by ID
func (a *ProviderAdapter) GetByID(ctx context.Context, tenantID, id string) (*entities.Provider, error) {
	query, args, err := a.db.Select(
		"id", "tenant_id", "first_name", "last_name", "is_active",
		"working_hours", "created_at", "updated_at",
	).From("providers").
		Where(goqu.Ex{"tenant_id": tenantID, "id": id}).
		ToSQL()

	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	provider, err := scanProvider(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("provider with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get provider", err)
	}

	return provider, nil
}

// ListActive retrieves all active providers for a tenant
func (a *ProviderAdapter) ListActive(ctx context.Context, tenantID string) ([]*entities.Provider, error) {
	query, args, err := a.db.Select(
		"id", "tenant_id", "first_name", "last_name", "is_active",
		"working_hours", "created_at", "updated_at",
	).From("providers").
		Where(goqu.Ex{"tenant_id": tenantID, "is_active": true}).
		Order(goqu.I("created_at").Asc()).
		ToSQL()

	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list providers", err)
	}
	defer rows.Close()

	var providers []*entities.Provider
	for rows.Next() {
		provider, err := scanProvider(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan provider", err)
		}
		providers = append(providers, provider)
	}

	return providers, nil
}

func scanProvider(row rowScanner) (*entities.Provider, error) {
	provider := &entities.Provider{}
	var workingHours []byte

	err := row.Scan(
		&provider.ID,
		&provider.TenantID,
		&provider.FirstName,
		&provider.LastName,
		&provider.IsActive,
		&workingHours,
		&provider.CreatedAt,
		&provider.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(workingHours) > 0 {
		if err := json.Unmarshal(workingHours, &provider.WorkingHours); err != nil {
			return nil, fmt.Errorf("invalid working_hours payload: %w", err)
		}
	}

	return provider, nil
}
