package repositories

import (
	"context"

	"github.com/crowndesk/receptionist/internal/domain/entities"
)

// ApprovalRepository defines the interface for approval request persistence
type ApprovalRepository interface {
	// Create inserts a new pending approval request
	Create(ctx context.Context, approval *entities.ApprovalRequest) error

	// GetByID retrieves an approval request by ID within a tenant
	GetByID(ctx context.Context, tenantID, id string) (*entities.ApprovalRequest, error)

	// GetPendingByIdempotencyKey finds an unresolved request with the given
	// idempotency key, or a not-found error
	GetPendingByIdempotencyKey(ctx context.Context, tenantID, key string) (*entities.ApprovalRequest, error)

	// ListByStatus retrieves a tenant's approval requests filtered by status
	ListByStatus(ctx context.Context, tenantID string, status entities.ApprovalStatus, limit, offset int) ([]*entities.ApprovalRequest, error)
}

// ResolveDecision carries a reviewer's verdict on a pending request
type ResolveDecision struct {
	Approve    bool
	ReviewedBy string
	Note       string
}

// ApprovalResolver applies a reviewer decision. Approval runs as a single
// transaction that re-checks slot conflicts against confirmed appointments
// before writing, so two approved proposals can never double-book a slot.
type ApprovalResolver interface {
	Resolve(ctx context.Context, tenantID, approvalID string, decision ResolveDecision) (*entities.ApprovalRequest, error)
}
