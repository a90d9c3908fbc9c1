package services

import (
	"context"
	"time"

	"github.com/crowndesk/receptionist/internal/domain/entities"
	"github.com/crowndesk/receptionist/internal/domain/repositories"
	apperrors "github.com/crowndesk/receptionist/pkg/errors"
)

// CallAnalysisService owns the call record lifecycle: opened when a session
// connects, finalized on disconnect, and enriched by the post-call analysis
// webhook after the session is gone.
type CallAnalysisService struct {
	repo repositories.CallRepository
}

// NewCallAnalysisService creates a new call analysis service
func NewCallAnalysisService(repo repositories.CallRepository) *CallAnalysisService {
	return &CallAnalysisService{
		repo: repo,
	}
}

// CallStarted ensures the durable call record exists and returns its id
func (s *CallAnalysisService) CallStarted(ctx context.Context, record *entities.CallRecord) (string, error) {
	if record.Status == "" {
		record.Status = entities.CallStatusInProgress
	}
	return s.repo.EnsureRecord(ctx, record)
}

// CallEnded finalizes the record after the session closes
func (s *CallAnalysisService) CallEnded(ctx context.Context, tenantID, externalCallID, disconnectReason string, startedAt, endedAt time.Time) error {
	duration := int(endedAt.Sub(startedAt).Seconds())
	return s.repo.Finalize(ctx, tenantID, externalCallID, &entities.CallRecord{
		EndTime:          &endedAt,
		DurationSecs:     &duration,
		DisconnectReason: disconnectReason,
	})
}

// ApplyAnalysis stores the platform's post-call analysis. An unrecognized
// outcome is conservatively mapped to follow-up required.
func (s *CallAnalysisService) ApplyAnalysis(ctx context.Context, tenantID, externalCallID, summary, sentiment, outcome string) error {
	mapped := entities.CallOutcomeFollowUpRequired
	if outcome == string(entities.CallOutcomeCompleted) {
		mapped = entities.CallOutcomeCompleted
	}
	return s.repo.ApplyAnalysis(ctx, tenantID, externalCallID, summary, sentiment, mapped)
}

// FlagForReview marks a call for manual review
func (s *CallAnalysisService) FlagForReview(ctx context.Context, tenantID, externalCallID, reason string) error {
	return s.repo.FlagForReview(ctx, tenantID, externalCallID, reason)
}

// GetCallWithTranscript retrieves a call record and its ordered transcript
func (s *CallAnalysisService) GetCallWithTranscript(ctx context.Context, tenantID, externalCallID string) (*entities.CallRecord, []*entities.TranscriptEntry, error) {
	record, err := s.repo.GetByExternalID(ctx, tenantID, externalCallID)
	if err != nil {
		return nil, nil, err
	}

	transcript, err := s.repo.ListTranscript(ctx, record.ID)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			return record, nil, nil
		}
		return nil, nil, err
	}

	return record, transcript, nil
}
