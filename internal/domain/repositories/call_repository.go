package repositories

import (
	"context"

	"github.com/crowndesk/receptionist/internal/domain/entities"
)

// CallRepository defines the durable store for call records, transcript
// entries, and tool invocation audit rows.
type CallRepository interface {
	// EnsureRecord creates the call record if it does not exist and returns
	// its id. Safe to call more than once for the same external call.
	EnsureRecord(ctx context.Context, record *entities.CallRecord) (string, error)

	// GetByExternalID retrieves a call record by the platform's call id
	GetByExternalID(ctx context.Context, tenantID, externalCallID string) (*entities.CallRecord, error)

	// Finalize closes out a call record on disconnect
	Finalize(ctx context.Context, tenantID, externalCallID string, record *entities.CallRecord) error

	// ApplyAnalysis stores post-call analysis results
	ApplyAnalysis(ctx context.Context, tenantID, externalCallID string, summary, sentiment string, outcome entities.CallOutcome) error

	// FlagForReview marks a call for manual review
	FlagForReview(ctx context.Context, tenantID, externalCallID, reason string) error

	// FlagForReviewByID marks a call for manual review by record id
	FlagForReviewByID(ctx context.Context, callRecordID, reason string) error

	// AppendTranscript appends transcript entries in sequence order.
	// Re-inserting an existing (call_id, sequence) pair is a no-op.
	AppendTranscript(ctx context.Context, entries []*entities.TranscriptEntry) error

	// ListTranscript retrieves a call's transcript ordered by sequence
	ListTranscript(ctx context.Context, callID string) ([]*entities.TranscriptEntry, error)

	// RecordToolInvocation upserts a tool invocation audit row
	RecordToolInvocation(ctx context.Context, invocation *entities.ToolInvocation) error
}
