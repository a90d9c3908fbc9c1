package handlers

import (
	"net/http"

	"github.com/crowndesk/receptionist/internal/application/services"
)

// CallHandler exposes call records and transcripts for review
type CallHandler struct {
	service *services.CallAnalysisService
}

// NewCallHandler creates a new call handler
func NewCallHandler(service *services.CallAnalysisService) *CallHandler {
	return &CallHandler{service: service}
}

// GetTranscript handles GET /api/calls/{call_id}/transcript
func (h *CallHandler) GetTranscript(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		respondWithError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}

	record, transcript, err := h.service.GetCallWithTranscript(r.Context(), tenantID, r.PathValue("call_id"))
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"call":       record,
		"transcript": transcript,
		"count":      len(transcript),
	})
}
