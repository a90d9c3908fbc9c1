package providers

import (
	"context"

	"github.com/crowndesk/receptionist/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to
// approval-queue events
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.ApprovalEvent) error

	// Subscribe subscribes to events on a channel
	Subscribe(ctx context.Context, channel string) (<-chan *entities.ApprovalEvent, error)

	// Unsubscribe unsubscribes from a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

// EventChannelApprovalPrefix is the prefix for tenant approval channels
const EventChannelApprovalPrefix = "approvals:"

// GetApprovalChannel returns the channel name for a tenant's approval queue
func GetApprovalChannel(tenantID string) string {
	return EventChannelApprovalPrefix + tenantID
}
