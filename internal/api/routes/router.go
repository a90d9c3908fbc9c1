package routes

import (
	"net/http"

	"github.com/crowndesk/receptionist/internal/api/handlers"
	"github.com/crowndesk/receptionist/internal/api/middleware"
	"github.com/crowndesk/receptionist/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	voiceHandler    *handlers.VoiceHandler
	approvalHandler *handlers.ApprovalHandler
	callHandler     *handlers.CallHandler
	webhookHandler  *handlers.VoiceWebhookHandler
	sseHandler      *handlers.SSEHandler

	cacheMiddleware *middleware.CacheMiddleware
	metrics         *observability.Metrics
}

// NewRouter creates a new router
func NewRouter(
	voiceHandler *handlers.VoiceHandler,
	approvalHandler *handlers.ApprovalHandler,
	callHandler *handlers.CallHandler,
	webhookHandler *handlers.VoiceWebhookHandler,
	sseHandler *handlers.SSEHandler,
	cacheMiddleware *middleware.CacheMiddleware,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:             http.NewServeMux(),
		voiceHandler:    voiceHandler,
		approvalHandler: approvalHandler,
		callHandler:     callHandler,
		webhookHandler:  webhookHandler,
		sseHandler:      sseHandler,
		cacheMiddleware: cacheMiddleware,
		metrics:         metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	// Health check endpoint
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	// Voice session endpoint (websocket upgrade)
	r.mux.HandleFunc("GET /ws/voice/{call_id}", r.voiceHandler.HandleCall)

	// Approval queue endpoints
	r.mux.HandleFunc("GET /api/approvals", r.approvalHandler.ListApprovals)
	r.mux.HandleFunc("GET /api/approvals/{id}", r.approvalHandler.GetApproval)
	r.mux.HandleFunc("POST /api/approvals/{id}/approve", r.approvalHandler.ApproveRequest)
	r.mux.HandleFunc("POST /api/approvals/{id}/reject", r.approvalHandler.RejectRequest)

	// Call record endpoints
	r.mux.HandleFunc("GET /api/calls/{call_id}/transcript", r.callHandler.GetTranscript)

	// Approval stream for front-desk dashboards
	r.mux.HandleFunc("GET /api/stream/approvals", r.sseHandler.StreamApprovals)

	// Post-call webhook from the voice platform
	if r.webhookHandler != nil {
		r.mux.HandleFunc("POST /api/webhooks/voice", r.webhookHandler.HandleWebhook)
	}

	// Apply middleware in reverse order (last middleware wraps first)
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)

	if r.cacheMiddleware != nil {
		handler = r.cacheMiddleware.Middleware(handler)
	}

	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)

	// CORS wraps everything so headers are set even on cache HITs
	handler = middleware.CORSMiddleware(handler)

	return handler
}
