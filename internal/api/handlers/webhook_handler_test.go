package handlers_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/crowndesk/receptionist/internal/api/handlers"
)

func signBody(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestWebhook_RejectsMissingSignature(t *testing.T) {
	handler := handlers.NewVoiceWebhookHandler(nil, nil, "topsecret")

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/voice",
		strings.NewReader(`{"event":"call_analyzed"}`))
	rec := httptest.NewRecorder()
	handler.HandleWebhook(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhook_RejectsBadSignature(t *testing.T) {
	handler := handlers.NewVoiceWebhookHandler(nil, nil, "topsecret")

	body := `{"event":"call_analyzed"}`
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/voice", strings.NewReader(body))
	req.Header.Set("X-Voice-Signature", signBody("wrongsecret", body))
	rec := httptest.NewRecorder()
	handler.HandleWebhook(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhook_RejectsInvalidPayload(t *testing.T) {
	handler := handlers.NewVoiceWebhookHandler(nil, nil, "topsecret")

	for name, body := range map[string]string{
		"malformed json":  `{"event":`,
		"missing call id": `{"event":"call_analyzed","call":{"tenant_id":"tenant-1"}}`,
		"missing tenant":  `{"event":"call_analyzed","call":{"call_id":"ext-1"}}`,
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/webhooks/voice", strings.NewReader(body))
			req.Header.Set("X-Voice-Signature", signBody("topsecret", body))
			rec := httptest.NewRecorder()
			handler.HandleWebhook(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}
