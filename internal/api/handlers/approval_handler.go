package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/crowndesk/receptionist/internal/application/services"
	"github.com/crowndesk/receptionist/internal/domain/entities"
	"github.com/crowndesk/receptionist/internal/domain/repositories"
)

// ApprovalHandler exposes the human review queue over HTTP
type ApprovalHandler struct {
	service *services.ApprovalService
}

// NewApprovalHandler creates a new approval handler
func NewApprovalHandler(service *services.ApprovalService) *ApprovalHandler {
	return &ApprovalHandler{service: service}
}

// ListApprovals handles GET /api/approvals
func (h *ApprovalHandler) ListApprovals(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		respondWithError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}

	status := entities.ApprovalStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = entities.ApprovalStatusPending
	}
	switch status {
	case entities.ApprovalStatusPending, entities.ApprovalStatusApproved, entities.ApprovalStatusRejected:
	default:
		respondWithError(w, http.StatusBadRequest, "invalid status filter")
		return
	}

	limit := 50
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= 200 {
		limit = l
	}
	offset := 0
	if o, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && o > 0 {
		offset = o
	}

	approvals, err := h.service.List(r.Context(), tenantID, status, limit, offset)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"approvals": approvals,
		"count":     len(approvals),
	})
}

// GetApproval handles GET /api/approvals/{id}
func (h *ApprovalHandler) GetApproval(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		respondWithError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}

	approval, err := h.service.GetByID(r.Context(), tenantID, r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, approval)
}

type resolveRequest struct {
	TenantID   string `json:"tenant_id"`
	ReviewedBy string `json:"reviewed_by"`
	Note       string `json:"note"`
}

// ApproveRequest handles POST /api/approvals/{id}/approve
func (h *ApprovalHandler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, true)
}

// RejectRequest handles POST /api/approvals/{id}/reject
func (h *ApprovalHandler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, false)
}

func (h *ApprovalHandler) resolve(w http.ResponseWriter, r *http.Request, approve bool) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TenantID == "" {
		respondWithError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}
	if req.ReviewedBy == "" {
		respondWithError(w, http.StatusBadRequest, "reviewed_by is required")
		return
	}

	approval, err := h.service.Resolve(r.Context(), req.TenantID, r.PathValue("id"), repositories.ResolveDecision{
		Approve:    approve,
		ReviewedBy: req.ReviewedBy,
		Note:       req.Note,
	})
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, approval)
}
