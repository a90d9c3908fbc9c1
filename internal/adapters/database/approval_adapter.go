package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/crowndesk/receptionist/internal/domain/entities"
	"github.com/crowndesk/receptionist/internal/domain/repositories"
	"github.com/crowndesk/receptionist/internal/infrastructure/clients/postgres"
	apperrors "github.com/crowndesk/receptionist/pkg/errors"
)

// ApprovalAdapter implements ApprovalRepository and ApprovalResolver.
// Resolution runs in a transaction so the conflict re-check and the
// appointment write are atomic.
type ApprovalAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewApprovalAdapter creates a new approval adapter
func NewApprovalAdapter(client *postgres.Client) *ApprovalAdapter {
	return &ApprovalAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

var _ repositories.ApprovalRepository = (*ApprovalAdapter)(nil)
var _ repositories.ApprovalResolver = (*ApprovalAdapter)(nil)

// Create inserts a new pending approval request
func (a *ApprovalAdapter) Create(ctx context.Context, approval *entities.ApprovalRequest) error {
	record := goqu.Record{
		"id":              approval.ID,
		"tenant_id":       approval.TenantID,
		"session_id":      approval.SessionID,
		"entity_type":     approval.EntityType,
		"entity_id":       approval.EntityID,
		"mutation_type":   approval.MutationType,
		"idempotency_key": approval.IdempotencyKey,
		"before_state":    nullableJSON(approval.BeforeState),
		"after_state":     []byte(approval.AfterState),
		"rationale":       approval.Rationale,
		"status":          approval.Status,
		"review_note":     approval.ReviewNote,
		"created_at":      approval.CreatedAt,
		"updated_at":      approval.UpdatedAt,
	}

	query, args, err := a.db.Insert("approval_requests").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	_, err = a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewConflictError("a pending approval request already exists for this mutation")
		}
		return apperrors.NewInternalError("failed to create approval request", err)
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// GetByID retrieves an approval request by ID within a tenant
func (a *ApprovalAdapter) GetByID(ctx context.Context, tenantID, id string) (*entities.ApprovalRequest, error) {
	query, args, err := a.approvalSelect().
		Where(goqu.Ex{"tenant_id": tenantID, "id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	approval, err := scanApproval(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("approval request with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get approval request", err)
	}

	return approval, nil
}

// GetPendingByIdempotencyKey finds an unresolved request carrying the key
func (a *ApprovalAdapter) GetPendingByIdempotencyKey(ctx context.Context, tenantID, key string) (*entities.ApprovalRequest, error) {
	query, args, err := a.approvalSelect().
		Where(goqu.Ex{
			"tenant_id":       tenantID,
			"idempotency_key": key,
			"status":          entities.ApprovalStatusPending,
		}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	approval, err := scanApproval(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("no pending approval request for key")
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get approval request", err)
	}

	return approval, nil
}

// ListByStatus retrieves a tenant's approval requests filtered by status
func (a *ApprovalAdapter) ListByStatus(ctx context.Context, tenantID string, status entities.ApprovalStatus, limit, offset int) ([]*entities.ApprovalRequest, error) {
	query, args, err := a.approvalSelect().
		Where(goqu.Ex{"tenant_id": tenantID, "status": status}).
		Order(goqu.I("created_at").Desc()).
		Limit(uint(limit)).
		Offset(uint(offset)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list approval requests", err)
	}
	defer rows.Close()

	var approvals []*entities.ApprovalRequest
	for rows.Next() {
		approval, err := scanApproval(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan approval request", err)
		}
		approvals = append(approvals, approval)
	}

	return approvals, nil
}

// Resolve applies a reviewer decision to a pending request. The approval row
// is locked for the duration of the transaction, so concurrent reviewers
// serialize here; the second one finds the row no longer pending.
func (a *ApprovalAdapter) Resolve(ctx context.Context, tenantID, approvalID string, decision repositories.ResolveDecision) (*entities.ApprovalRequest, error) {
	tx, err := a.client.BeginTx(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	approval := &entities.ApprovalRequest{}
	err = tx.GetContext(ctx, approval, `
		SELECT id, tenant_id, session_id, entity_type, entity_id, mutation_type,
		       idempotency_key, before_state, after_state, rationale, status,
		       reviewed_by, reviewed_at, review_note, created_at, updated_at
		FROM approval_requests
		WHERE tenant_id = $1 AND id = $2
		FOR UPDATE`, tenantID, approvalID)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("approval request with id %s not found", approvalID))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to lock approval request", err)
	}

	if approval.Status != entities.ApprovalStatusPending {
		return nil, apperrors.NewConflictError(fmt.Sprintf("approval request is already %s", approval.Status))
	}

	now := time.Now()
	if decision.Approve {
		if err := a.applyChange(ctx, tx, approval, now); err != nil {
			return nil, err
		}
		approval.Status = entities.ApprovalStatusApproved
	} else {
		approval.Status = entities.ApprovalStatusRejected
	}

	approval.ReviewedBy = &decision.ReviewedBy
	approval.ReviewedAt = &now
	approval.ReviewNote = decision.Note
	approval.UpdatedAt = now

	_, err = tx.ExecContext(ctx, `
		UPDATE approval_requests
		SET status = $1, reviewed_by = $2, reviewed_at = $3, review_note = $4, updated_at = $5
		WHERE id = $6`,
		approval.Status, decision.ReviewedBy, now, decision.Note, now, approval.ID)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to update approval request", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.NewInternalError("failed to commit resolution", err)
	}

	return approval, nil
}

// applyChange executes the proposed mutation inside the resolution
// transaction. Book and reschedule re-check the target slot against blocking
// appointments before writing.
func (a *ApprovalAdapter) applyChange(ctx context.Context, tx *sqlx.Tx, approval *entities.ApprovalRequest, now time.Time) error {
	var change entities.AppointmentChange
	if err := json.Unmarshal(approval.AfterState, &change); err != nil {
		return apperrors.NewInternalError("failed to decode proposed state", err)
	}

	switch approval.MutationType {
	case entities.MutationTypeBook:
		if err := a.checkSlotFree(ctx, tx, approval.TenantID, change, ""); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO appointments (id, tenant_id, patient_id, provider_id, start_time, end_time, type, status, notes, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`,
			uuid.New().String(), approval.TenantID, change.PatientID, change.ProviderID,
			change.StartTime, change.EndTime, change.Type,
			entities.AppointmentStatusScheduled, change.Notes, now)
		if err != nil {
			return apperrors.NewInternalError("failed to book appointment", err)
		}

	case entities.MutationTypeReschedule:
		if err := a.checkSlotFree(ctx, tx, approval.TenantID, change, change.AppointmentID); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, `
			UPDATE appointments
			SET provider_id = $1, start_time = $2, end_time = $3, updated_at = $4
			WHERE tenant_id = $5 AND id = $6 AND status NOT IN ('cancelled', 'no_show')`,
			change.ProviderID, change.StartTime, change.EndTime, now,
			approval.TenantID, change.AppointmentID)
		if err != nil {
			return apperrors.NewInternalError("failed to reschedule appointment", err)
		}
		if err := requireTxRowsAffected(result, change.AppointmentID); err != nil {
			return err
		}

	case entities.MutationTypeCancel:
		result, err := tx.ExecContext(ctx, `
			UPDATE appointments
			SET status = 'cancelled', notes = CASE WHEN $1 = '' THEN notes ELSE $1 END, updated_at = $2
			WHERE tenant_id = $3 AND id = $4 AND status NOT IN ('cancelled', 'no_show')`,
			change.CancelReason, now, approval.TenantID, change.AppointmentID)
		if err != nil {
			return apperrors.NewInternalError("failed to cancel appointment", err)
		}
		if err := requireTxRowsAffected(result, change.AppointmentID); err != nil {
			return err
		}

	default:
		return apperrors.NewValidationError(fmt.Sprintf("unknown mutation type %q", approval.MutationType))
	}

	return nil
}

// checkSlotFree verifies no blocking appointment overlaps the proposed window.
// excludeID lets a reschedule ignore the appointment being moved.
func (a *ApprovalAdapter) checkSlotFree(ctx context.Context, tx *sqlx.Tx, tenantID string, change entities.AppointmentChange, excludeID string) error {
	var count int
	err := tx.GetContext(ctx, &count, `
		SELECT COUNT(*)
		FROM appointments
		WHERE tenant_id = $1 AND provider_id = $2
		  AND status IN ('scheduled', 'confirmed', 'completed')
		  AND start_time < $3 AND end_time > $4
		  AND id != $5`,
		tenantID, change.ProviderID, change.EndTime, change.StartTime, excludeID)
	if err != nil {
		return apperrors.NewInternalError("failed to check slot conflicts", err)
	}
	if count > 0 {
		return apperrors.NewConflictError("the proposed time slot is no longer available")
	}
	return nil
}

func requireTxRowsAffected(result sql.Result, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("appointment with id %s not found or not modifiable", id))
	}
	return nil
}

func (a *ApprovalAdapter) approvalSelect() *goqu.SelectDataset {
	return a.db.Select(
		"id", "tenant_id", "session_id", "entity_type", "entity_id",
		"mutation_type", "idempotency_key", "before_state", "after_state",
		"rationale", "status", "reviewed_by", "reviewed_at", "review_note",
		"created_at", "updated_at",
	).From("approval_requests")
}

func nullableJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

func scanApproval(row rowScanner) (*entities.ApprovalRequest, error) {
	approval := &entities.ApprovalRequest{}
	var beforeState []byte
	var afterState []byte
	var reviewedBy sql.NullString
	var reviewedAt sql.NullTime
	var reviewNote sql.NullString

	err := row.Scan(
		&approval.ID,
		&approval.TenantID,
		&approval.SessionID,
		&approval.EntityType,
		&approval.EntityID,
		&approval.MutationType,
		&approval.IdempotencyKey,
		&beforeState,
		&afterState,
		&approval.Rationale,
		&approval.Status,
		&reviewedBy,
		&reviewedAt,
		&reviewNote,
		&approval.CreatedAt,
		&approval.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	approval.BeforeState = json.RawMessage(beforeState)
	approval.AfterState = json.RawMessage(afterState)
	if reviewedBy.Valid {
		approval.ReviewedBy = &reviewedBy.String
	}
	if reviewedAt.Valid {
		approval.ReviewedAt = &reviewedAt.Time
	}
	approval.ReviewNote = reviewNote.String

	return approval, nil
}
