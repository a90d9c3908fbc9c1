package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crowndesk/receptionist/internal/api/handlers"
	"github.com/crowndesk/receptionist/internal/application/services"
	"github.com/crowndesk/receptionist/internal/domain/entities"
	"github.com/crowndesk/receptionist/internal/domain/repositories"
	apperrors "github.com/crowndesk/receptionist/pkg/errors"
)

// stubApprovalStore satisfies the approval repository and resolver with
// function fields, so each test wires only what it touches
type stubApprovalStore struct {
	listByStatus func(tenantID string, status entities.ApprovalStatus, limit, offset int) ([]*entities.ApprovalRequest, error)
	getByID      func(tenantID, id string) (*entities.ApprovalRequest, error)
	resolve      func(tenantID, approvalID string, decision repositories.ResolveDecision) (*entities.ApprovalRequest, error)
}

func (s *stubApprovalStore) Create(context.Context, *entities.ApprovalRequest) error {
	return apperrors.NewInternalError("not wired", nil)
}

func (s *stubApprovalStore) GetByID(_ context.Context, tenantID, id string) (*entities.ApprovalRequest, error) {
	return s.getByID(tenantID, id)
}

func (s *stubApprovalStore) GetPendingByIdempotencyKey(context.Context, string, string) (*entities.ApprovalRequest, error) {
	return nil, apperrors.NewNotFoundError("no pending approval")
}

func (s *stubApprovalStore) ListByStatus(_ context.Context, tenantID string, status entities.ApprovalStatus, limit, offset int) ([]*entities.ApprovalRequest, error) {
	return s.listByStatus(tenantID, status, limit, offset)
}

func (s *stubApprovalStore) Resolve(_ context.Context, tenantID, approvalID string, decision repositories.ResolveDecision) (*entities.ApprovalRequest, error) {
	return s.resolve(tenantID, approvalID, decision)
}

func newApprovalHandler(store *stubApprovalStore) *handlers.ApprovalHandler {
	service := services.NewApprovalService(store, store, nil, nil)
	return handlers.NewApprovalHandler(service)
}

func TestListApprovals(t *testing.T) {
	store := &stubApprovalStore{
		listByStatus: func(tenantID string, status entities.ApprovalStatus, limit, offset int) ([]*entities.ApprovalRequest, error) {
			assert.Equal(t, "tenant-1", tenantID)
			assert.Equal(t, entities.ApprovalStatusPending, status)
			assert.Equal(t, 50, limit)
			assert.Equal(t, 0, offset)
			return []*entities.ApprovalRequest{
				{ID: "appr-1", Status: entities.ApprovalStatusPending},
				{ID: "appr-2", Status: entities.ApprovalStatusPending},
			}, nil
		},
	}
	handler := newApprovalHandler(store)

	req := httptest.NewRequest(http.MethodGet, "/api/approvals?tenant_id=tenant-1", nil)
	rec := httptest.NewRecorder()
	handler.ListApprovals(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Approvals []*entities.ApprovalRequest `json:"approvals"`
		Count     int                         `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	require.Len(t, body.Approvals, 2)
}

func TestListApprovals_RequiresTenant(t *testing.T) {
	handler := newApprovalHandler(&stubApprovalStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/approvals", nil)
	rec := httptest.NewRecorder()
	handler.ListApprovals(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListApprovals_RejectsUnknownStatus(t *testing.T) {
	handler := newApprovalHandler(&stubApprovalStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/approvals?tenant_id=tenant-1&status=sideways", nil)
	rec := httptest.NewRecorder()
	handler.ListApprovals(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListApprovals_CapsLimit(t *testing.T) {
	store := &stubApprovalStore{
		listByStatus: func(_ string, _ entities.ApprovalStatus, limit, _ int) ([]*entities.ApprovalRequest, error) {
			// Out-of-range limits keep the default
			assert.Equal(t, 50, limit)
			return nil, nil
		},
	}
	handler := newApprovalHandler(store)

	req := httptest.NewRequest(http.MethodGet, "/api/approvals?tenant_id=tenant-1&limit=5000", nil)
	rec := httptest.NewRecorder()
	handler.ListApprovals(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetApproval_NotFound(t *testing.T) {
	store := &stubApprovalStore{
		getByID: func(string, string) (*entities.ApprovalRequest, error) {
			return nil, apperrors.NewNotFoundError("approval not found")
		},
	}
	handler := newApprovalHandler(store)

	req := httptest.NewRequest(http.MethodGet, "/api/approvals/appr-9?tenant_id=tenant-1", nil)
	req.SetPathValue("id", "appr-9")
	rec := httptest.NewRecorder()
	handler.GetApproval(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestApproveRequest(t *testing.T) {
	store := &stubApprovalStore{
		resolve: func(tenantID, approvalID string, decision repositories.ResolveDecision) (*entities.ApprovalRequest, error) {
			assert.Equal(t, "tenant-1", tenantID)
			assert.Equal(t, "appr-1", approvalID)
			assert.True(t, decision.Approve)
			assert.Equal(t, "dr-patel", decision.ReviewedBy)
			return &entities.ApprovalRequest{ID: approvalID, Status: entities.ApprovalStatusApproved}, nil
		},
	}
	handler := newApprovalHandler(store)

	req := httptest.NewRequest(http.MethodPost, "/api/approvals/appr-1/approve",
		strings.NewReader(`{"tenant_id":"tenant-1","reviewed_by":"dr-patel","note":"ok"}`))
	req.SetPathValue("id", "appr-1")
	rec := httptest.NewRecorder()
	handler.ApproveRequest(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var approval entities.ApprovalRequest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &approval))
	assert.Equal(t, entities.ApprovalStatusApproved, approval.Status)
}

func TestApproveRequest_RequiresReviewer(t *testing.T) {
	handler := newApprovalHandler(&stubApprovalStore{})

	req := httptest.NewRequest(http.MethodPost, "/api/approvals/appr-1/approve",
		strings.NewReader(`{"tenant_id":"tenant-1"}`))
	req.SetPathValue("id", "appr-1")
	rec := httptest.NewRecorder()
	handler.ApproveRequest(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRejectRequest_AlreadyResolvedIsConflict(t *testing.T) {
	store := &stubApprovalStore{
		resolve: func(_, _ string, decision repositories.ResolveDecision) (*entities.ApprovalRequest, error) {
			assert.False(t, decision.Approve)
			return nil, apperrors.NewConflictError("approval already resolved")
		},
	}
	handler := newApprovalHandler(store)

	req := httptest.NewRequest(http.MethodPost, "/api/approvals/appr-1/reject",
		strings.NewReader(`{"tenant_id":"tenant-1","reviewed_by":"dr-patel"}`))
	req.SetPathValue("id", "appr-1")
	rec := httptest.NewRecorder()
	handler.RejectRequest(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}
