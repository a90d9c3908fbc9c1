package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/crowndesk/receptionist/internal/domain/entities"
	"github.com/crowndesk/receptionist/internal/domain/providers"
	"github.com/crowndesk/receptionist/internal/domain/repositories"
	apperrors "github.com/crowndesk/receptionist/pkg/errors"
)

// ApprovalService is the single choke point for AI-originated appointment
// mutations. Propose creates durable pending requests; Resolve applies a
// reviewer's verdict. Nothing in between touches appointment state.
type ApprovalService struct {
	repo         repositories.ApprovalRepository
	resolver     repositories.ApprovalResolver
	appointments repositories.AppointmentRepository
	eventBus     providers.EventBus
}

// NewApprovalService creates a new approval service
func NewApprovalService(repo repositories.ApprovalRepository, resolver repositories.ApprovalResolver,
	appointments repositories.AppointmentRepository, eventBus providers.EventBus) *ApprovalService {
	return &ApprovalService{
		repo:         repo,
		resolver:     resolver,
		appointments: appointments,
		eventBus:     eventBus,
	}
}

// Propose records a pending mutation and returns it. A retry of the same
// logical mutation within one session returns the existing pending request
// instead of creating a second one.
func (s *ApprovalService) Propose(ctx context.Context, tenantID, sessionID string,
	mutation entities.MutationType, change *entities.AppointmentChange, rationale string) (*entities.ApprovalRequest, error) {

	entityID := change.AppointmentID
	if entityID == "" {
		// A booking has no appointment yet; the target slot stands in for it
		entityID = fmt.Sprintf("%s@%s", change.ProviderID, change.StartTime.UTC().Format(time.RFC3339))
	}
	key := entities.ApprovalIdempotencyKey(sessionID, mutation, entityID)

	existing, err := s.repo.GetPendingByIdempotencyKey(ctx, tenantID, key)
	if err == nil {
		return existing, nil
	}
	if !apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
		return nil, err
	}

	var beforeState json.RawMessage
	if change.AppointmentID != "" {
		current, err := s.appointments.GetByID(ctx, tenantID, change.AppointmentID)
		if err != nil {
			return nil, err
		}
		beforeState, err = json.Marshal(current)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to encode current appointment", err)
		}
	}

	afterState, err := json.Marshal(change)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode proposed change", err)
	}

	now := time.Now()
	approval := &entities.ApprovalRequest{
		ID:             uuid.New().String(),
		TenantID:       tenantID,
		SessionID:      sessionID,
		EntityType:     "appointment",
		EntityID:       entityID,
		MutationType:   mutation,
		IdempotencyKey: key,
		BeforeState:    beforeState,
		AfterState:     afterState,
		Rationale:      rationale,
		Status:         entities.ApprovalStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Create(ctx, approval); err != nil {
		// A concurrent retry may have slipped in between the lookup and
		// the insert; surface its request instead.
		if apperrors.IsType(err, apperrors.ErrorTypeConflict) {
			return s.repo.GetPendingByIdempotencyKey(ctx, tenantID, key)
		}
		return nil, err
	}

	s.publishEvent(ctx, tenantID, approval.ID, entities.ApprovalEventCreated)
	return approval, nil
}

// Resolve applies a reviewer decision and publishes the queue change
func (s *ApprovalService) Resolve(ctx context.Context, tenantID, approvalID string, decision repositories.ResolveDecision) (*entities.ApprovalRequest, error) {
	approval, err := s.resolver.Resolve(ctx, tenantID, approvalID, decision)
	if err != nil {
		return nil, err
	}

	eventType := entities.ApprovalEventRejected
	if approval.Status == entities.ApprovalStatusApproved {
		eventType = entities.ApprovalEventApproved
	}
	s.publishEvent(ctx, tenantID, approval.ID, eventType)

	return approval, nil
}

// GetByID retrieves one approval request
func (s *ApprovalService) GetByID(ctx context.Context, tenantID, id string) (*entities.ApprovalRequest, error) {
	return s.repo.GetByID(ctx, tenantID, id)
}

// List retrieves a tenant's approval requests by status
func (s *ApprovalService) List(ctx context.Context, tenantID string, status entities.ApprovalStatus, limit, offset int) ([]*entities.ApprovalRequest, error) {
	return s.repo.ListByStatus(ctx, tenantID, status, limit, offset)
}

// publishEvent notifies reviewer dashboards. Delivery is best effort;
// the durable record is already written.
func (s *ApprovalService) publishEvent(ctx context.Context, tenantID, approvalID string, eventType entities.ApprovalEventType) {
	if s.eventBus == nil {
		return
	}

	event := &entities.ApprovalEvent{
		ID:         uuid.New().String(),
		TenantID:   tenantID,
		ApprovalID: approvalID,
		EventType:  eventType,
		Timestamp:  time.Now(),
	}
	if err := s.eventBus.Publish(ctx, providers.GetApprovalChannel(tenantID), event); err != nil {
		log.Warn().Err(err).Str("approval_id", approvalID).Msg("failed to publish approval event")
	}
}
