package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"

	"github.com/crowndesk/receptionist/internal/domain/entities"
	"github.com/crowndesk/receptionist/internal/domain/repositories"
	"github.com/crowndesk/receptionist/internal/infrastructure/clients/postgres"
	apperrors "github.com/crowndesk/receptionist/pkg/errors"
)

// CallAdapter implements the CallRepository interface backed by the
// call_records, call_transcripts, and tool_invocations tables
type CallAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewCallAdapter creates a new call adapter
func NewCallAdapter(client *postgres.Client) *CallAdapter {
	return &CallAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

var _ repositories.CallRepository = (*CallAdapter)(nil)

// EnsureRecord creates the call record if it does not exist. The unique
// constraint on (tenant_id, external_call_id) makes retries converge on
// the first row; a later call with caller metadata fills in columns the
// connect-time insert left blank.
func (a *CallAdapter) EnsureRecord(ctx context.Context, record *entities.CallRecord) (string, error) {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}

	var id string
	err := a.client.DBX().GetContext(ctx, &id, `
		INSERT INTO call_records (id, tenant_id, external_call_id, phone_number, direction, start_time, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (tenant_id, external_call_id) DO UPDATE SET
			phone_number = CASE WHEN EXCLUDED.phone_number = '' THEN call_records.phone_number ELSE EXCLUDED.phone_number END,
			direction = CASE WHEN EXCLUDED.direction = '' THEN call_records.direction ELSE EXCLUDED.direction END,
			updated_at = EXCLUDED.updated_at
		RETURNING id`,
		record.ID, record.TenantID, record.ExternalCallID, record.PhoneNumber,
		record.Direction, record.StartTime, entities.CallStatusInProgress, time.Now())
	if err != nil {
		return "", apperrors.NewInternalError("failed to ensure call record", err)
	}

	record.ID = id
	return id, nil
}

// GetByExternalID retrieves a call record by the platform's call id
func (a *CallAdapter) GetByExternalID(ctx context.Context, tenantID, externalCallID string) (*entities.CallRecord, error) {
	query, args, err := a.callSelect().
		Where(goqu.Ex{"tenant_id": tenantID, "external_call_id": externalCallID}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	record, err := scanCallRecord(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("call record for %s not found", externalCallID))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get call record", err)
	}

	return record, nil
}

// Finalize closes out a call record on disconnect. A record already flagged
// for review keeps its flagged status.
func (a *CallAdapter) Finalize(ctx context.Context, tenantID, externalCallID string, record *entities.CallRecord) error {
	query, args, err := a.db.Update("call_records").
		Set(goqu.Record{
			"end_time":          record.EndTime,
			"duration_secs":     record.DurationSecs,
			"disconnect_reason": record.DisconnectReason,
			"status": goqu.L("CASE WHEN status = ? THEN status ELSE ? END",
				entities.CallStatusFlagged, entities.CallStatusCompleted),
			"updated_at": time.Now(),
		}).
		Where(goqu.Ex{"tenant_id": tenantID, "external_call_id": externalCallID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build finalize query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to finalize call record", err)
	}

	return requireCallRowsAffected(result, externalCallID)
}

// ApplyAnalysis stores post-call analysis results
func (a *CallAdapter) ApplyAnalysis(ctx context.Context, tenantID, externalCallID string, summary, sentiment string, outcome entities.CallOutcome) error {
	query, args, err := a.db.Update("call_records").
		Set(goqu.Record{
			"summary":    summary,
			"sentiment":  sentiment,
			"outcome":    outcome,
			"updated_at": time.Now(),
		}).
		Where(goqu.Ex{"tenant_id": tenantID, "external_call_id": externalCallID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build analysis query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to apply call analysis", err)
	}

	return requireCallRowsAffected(result, externalCallID)
}

// FlagForReview marks a call for manual review, preserving the reason in
// the disconnect_reason column only when none was recorded
func (a *CallAdapter) FlagForReview(ctx context.Context, tenantID, externalCallID, reason string) error {
	_, err := a.client.DB().ExecContext(ctx, `
		UPDATE call_records
		SET status = $1,
		    summary = CASE WHEN summary = '' OR summary IS NULL THEN $2 ELSE summary END,
		    updated_at = $3
		WHERE tenant_id = $4 AND external_call_id = $5`,
		entities.CallStatusFlagged, reason, time.Now(), tenantID, externalCallID)
	if err != nil {
		return apperrors.NewInternalError("failed to flag call for review", err)
	}
	return nil
}

// FlagForReviewByID marks a call for manual review by record id
func (a *CallAdapter) FlagForReviewByID(ctx context.Context, callRecordID, reason string) error {
	_, err := a.client.DB().ExecContext(ctx, `
		UPDATE call_records
		SET status = $1,
		    summary = CASE WHEN summary = '' OR summary IS NULL THEN $2 ELSE summary END,
		    updated_at = $3
		WHERE id = $4`,
		entities.CallStatusFlagged, reason, time.Now(), callRecordID)
	if err != nil {
		return apperrors.NewInternalError("failed to flag call for review", err)
	}
	return nil
}

// AppendTranscript appends transcript entries. The primary key on
// (call_id, sequence) makes redelivery of a flushed batch a no-op.
func (a *CallAdapter) AppendTranscript(ctx context.Context, entries []*entities.TranscriptEntry) error {
	if len(entries) == 0 {
		return nil
	}

	records := make([]interface{}, 0, len(entries))
	for _, entry := range entries {
		records = append(records, goqu.Record{
			"call_id":       entry.CallID,
			"sequence":      entry.Sequence,
			"role":          entry.Role,
			"content":       entry.Content,
			"invocation_id": entry.InvocationID,
			"created_at":    entry.CreatedAt,
		})
	}

	query, args, err := a.db.Insert("call_transcripts").
		Rows(records...).
		OnConflict(goqu.DoNothing()).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build transcript insert", err)
	}

	_, err = a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to append transcript entries", err)
	}

	return nil
}

// ListTranscript retrieves a call's transcript ordered by sequence
func (a *CallAdapter) ListTranscript(ctx context.Context, callID string) ([]*entities.TranscriptEntry, error) {
	query, args, err := a.db.Select(
		"call_id", "sequence", "role", "content", "invocation_id", "created_at",
	).From("call_transcripts").
		Where(goqu.Ex{"call_id": callID}).
		Order(goqu.I("sequence").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list transcript", err)
	}
	defer rows.Close()

	var entries []*entities.TranscriptEntry
	for rows.Next() {
		entry := &entities.TranscriptEntry{}
		var invocationID sql.NullString
		if err := rows.Scan(&entry.CallID, &entry.Sequence, &entry.Role, &entry.Content, &invocationID, &entry.CreatedAt); err != nil {
			return nil, apperrors.NewInternalError("failed to scan transcript entry", err)
		}
		if invocationID.Valid {
			entry.InvocationID = &invocationID.String
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// RecordToolInvocation upserts a tool invocation audit row. Dispatch writes
// the pending row; completion updates it in place.
func (a *CallAdapter) RecordToolInvocation(ctx context.Context, invocation *entities.ToolInvocation) error {
	_, err := a.client.DB().ExecContext(ctx, `
		INSERT INTO tool_invocations (id, call_id, tool_name, arguments, result, failure_reason, status, dispatched_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			result = EXCLUDED.result,
			failure_reason = EXCLUDED.failure_reason,
			status = EXCLUDED.status,
			completed_at = EXCLUDED.completed_at`,
		invocation.ID, invocation.CallID, invocation.ToolName,
		[]byte(invocation.Arguments), nullableJSON(invocation.Result),
		invocation.FailureReason, invocation.Status,
		invocation.DispatchedAt, invocation.CompletedAt)
	if err != nil {
		return apperrors.NewInternalError("failed to record tool invocation", err)
	}
	return nil
}

func (a *CallAdapter) callSelect() *goqu.SelectDataset {
	return a.db.Select(
		"id", "tenant_id", "external_call_id", "phone_number", "direction",
		"start_time", "end_time", "duration_secs", "status",
		"disconnect_reason", "summary", "sentiment", "outcome",
		"created_at", "updated_at",
	).From("call_records")
}

func requireCallRowsAffected(result sql.Result, externalCallID string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("call record for %s not found", externalCallID))
	}
	return nil
}

func scanCallRecord(row rowScanner) (*entities.CallRecord, error) {
	record := &entities.CallRecord{}
	var endTime sql.NullTime
	var durationSecs sql.NullInt64
	var disconnectReason, summary, sentiment, outcome sql.NullString

	err := row.Scan(
		&record.ID,
		&record.TenantID,
		&record.ExternalCallID,
		&record.PhoneNumber,
		&record.Direction,
		&record.StartTime,
		&endTime,
		&durationSecs,
		&record.Status,
		&disconnectReason,
		&summary,
		&sentiment,
		&outcome,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if endTime.Valid {
		record.EndTime = &endTime.Time
	}
	if durationSecs.Valid {
		secs := int(durationSecs.Int64)
		record.DurationSecs = &secs
	}
	record.DisconnectReason = disconnectReason.String
	record.Summary = summary.String
	record.Sentiment = sentiment.String
	record.Outcome = entities.CallOutcome(outcome.String)

	return record, nil
}
