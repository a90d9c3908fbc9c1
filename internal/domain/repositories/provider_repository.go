package repositories

import (
	"context"

	"github.com/crowndesk/receptionist/internal/domain/entities"
)

// ProviderRepository defines the interface for provider data operations
type ProviderRepository interface {
	// GetByID retrieves a provider by ID within a tenant
	GetByID(ctx context.Context, tenantID, id string) (*entities.Provider, error)

	// ListActive retrieves all active providers for a tenant
	ListActive(ctx context.Context, tenantID string) ([]*entities.Provider, error)
}
