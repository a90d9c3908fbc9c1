package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/crowndesk/receptionist/internal/application/services"
)

// VoiceWebhookHandler handles post-call webhook events from the voice
// platform. Analysis arrives minutes after the call ends, so these events
// update call records that the session already finalized.
type VoiceWebhookHandler struct {
	db            *sqlx.DB
	analysis      *services.CallAnalysisService
	signingSecret string
}

// NewVoiceWebhookHandler creates a new webhook handler
func NewVoiceWebhookHandler(db *sqlx.DB, analysis *services.CallAnalysisService, signingSecret string) *VoiceWebhookHandler {
	return &VoiceWebhookHandler{
		db:            db,
		analysis:      analysis,
		signingSecret: signingSecret,
	}
}

// VoiceWebhookEvent represents the incoming webhook event
type VoiceWebhookEvent struct {
	EventID string    `json:"event_id"`
	Event   string    `json:"event"`
	Time    time.Time `json:"time"`
	Call    struct {
		CallID           string `json:"call_id"`
		TenantID         string `json:"tenant_id"`
		DisconnectReason string `json:"disconnection_reason"`
		Analysis         struct {
			Summary       string `json:"call_summary"`
			UserSentiment string `json:"user_sentiment"`
			Outcome       string `json:"call_outcome"`
		} `json:"call_analysis"`
	} `json:"call"`
}

// HandleWebhook processes POST /api/webhooks/voice
func (h *VoiceWebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.signingSecret != "" {
		if !h.verifySignature(r) {
			respondWithError(w, http.StatusUnauthorized, "invalid signature")
			return
		}
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	var event VoiceWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if event.Call.CallID == "" || event.Call.TenantID == "" {
		respondWithError(w, http.StatusBadRequest, "call_id and tenant_id are required")
		return
	}

	eventID := event.EventID
	if eventID == "" {
		eventID = uuid.New().String()
	}

	// The platform retries on timeouts, so duplicate deliveries are normal
	if h.isEventProcessed(ctx, eventID) {
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "already_processed"})
		return
	}

	if err := h.storeWebhookEvent(ctx, eventID, &event); err != nil {
		log.Warn().Err(err).Str("event_id", eventID).Msg("failed to store webhook event")
	}

	switch event.Event {
	case "call_analyzed":
		err = h.analysis.ApplyAnalysis(ctx, event.Call.TenantID, event.Call.CallID,
			event.Call.Analysis.Summary, event.Call.Analysis.UserSentiment,
			event.Call.Analysis.Outcome)
	case "call_ended":
		// The session finalizes its own record on disconnect. The webhook is
		// the backstop for calls the platform tore down before a clean close.
		err = h.analysis.CallEnded(ctx, event.Call.TenantID, event.Call.CallID,
			event.Call.DisconnectReason, event.Time, time.Now())
	case "call_flagged":
		err = h.analysis.FlagForReview(ctx, event.Call.TenantID, event.Call.CallID,
			"flagged by voice platform")
	default:
		log.Debug().Str("event", event.Event).Msg("unhandled voice webhook event type")
	}

	if err != nil {
		h.markEventFailed(ctx, eventID, err)
		respondWithAppError(w, err)
		return
	}

	h.markEventProcessed(ctx, eventID)
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}

// verifySignature checks the HMAC signature over the raw body
func (h *VoiceWebhookHandler) verifySignature(r *http.Request) bool {
	signature := r.Header.Get("X-Voice-Signature")
	if signature == "" {
		return false
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return false
	}
	// Reset body for later reading
	r.Body = io.NopCloser(bytes.NewReader(body))

	mac := hmac.New(sha256.New, []byte(h.signingSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(signature), []byte(expected))
}

func (h *VoiceWebhookHandler) isEventProcessed(ctx context.Context, eventID string) bool {
	var count int
	query := `SELECT COUNT(*) FROM webhook_events WHERE id = $1 AND provider = 'voice' AND processed = true`
	if err := h.db.GetContext(ctx, &count, query, eventID); err != nil {
		log.Warn().Err(err).Str("event_id", eventID).Msg("failed to check webhook event dedup, treating as unprocessed")
		return false
	}
	return count > 0
}

func (h *VoiceWebhookHandler) storeWebhookEvent(ctx context.Context, eventID string, event *VoiceWebhookEvent) error {
	payload, _ := json.Marshal(event)
	query := `
		INSERT INTO webhook_events (id, provider, event_type, payload, processed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (provider, id) DO NOTHING
	`
	_, err := h.db.ExecContext(ctx, query, eventID, "voice", event.Event, payload, false, time.Now())
	return err
}

func (h *VoiceWebhookHandler) markEventProcessed(ctx context.Context, eventID string) {
	query := `UPDATE webhook_events SET processed = true, processed_at = $1 WHERE id = $2 AND provider = 'voice'`
	if _, err := h.db.ExecContext(ctx, query, time.Now(), eventID); err != nil {
		log.Warn().Err(err).Str("event_id", eventID).Msg("failed to mark webhook event processed, a redelivery will reprocess it")
	}
}

func (h *VoiceWebhookHandler) markEventFailed(ctx context.Context, eventID string, cause error) {
	query := `UPDATE webhook_events SET error_message = $1 WHERE id = $2 AND provider = 'voice'`
	if _, err := h.db.ExecContext(ctx, query, cause.Error(), eventID); err != nil {
		log.Warn().Err(err).Str("event_id", eventID).Msg("failed to record webhook event failure")
	}
}
