package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/crowndesk/receptionist/internal/infrastructure/observability"
	"github.com/crowndesk/receptionist/internal/voice"
	"github.com/crowndesk/receptionist/pkg/config"
)

// VoiceHandler upgrades inbound voice-platform connections into call
// sessions and tracks them in the registry for graceful shutdown.
type VoiceHandler struct {
	cfg        *config.VoiceConfig
	planner    voice.TurnPlanner
	dispatcher voice.ToolDispatcher
	recorder   voice.TranscriptSink
	lifecycle  voice.CallLifecycle
	registry   *voice.Registry
	metrics    *observability.Metrics
	upgrader   websocket.Upgrader
}

// NewVoiceHandler creates a new voice handler
func NewVoiceHandler(cfg *config.VoiceConfig, planner voice.TurnPlanner,
	dispatcher voice.ToolDispatcher, recorder voice.TranscriptSink,
	lifecycle voice.CallLifecycle, registry *voice.Registry,
	metrics *observability.Metrics) *VoiceHandler {

	return &VoiceHandler{
		cfg:        cfg,
		planner:    planner,
		dispatcher: dispatcher,
		recorder:   recorder,
		lifecycle:  lifecycle,
		registry:   registry,
		metrics:    metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The voice platform connects server-to-server, not from a
			// browser origin
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// HandleCall handles GET /ws/voice/{call_id}
func (h *VoiceHandler) HandleCall(w http.ResponseWriter, r *http.Request) {
	callID := r.PathValue("call_id")
	if callID == "" {
		respondWithError(w, http.StatusBadRequest, "call ID is required")
		return
	}

	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		respondWithError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response
		log.Warn().Err(err).Str("call_id", callID).Msg("websocket upgrade failed")
		return
	}

	conn := &wsConn{ws: ws, writeDeadline: h.cfg.KeepaliveDeadline}
	session := voice.NewSession(tenantID, callID, conn, h.cfg,
		h.planner, h.dispatcher, h.recorder, h.lifecycle, h.metrics)

	h.registry.Add(session)
	defer h.registry.Remove(session.ID)

	session.Run(r.Context())
}

// wsConn adapts a websocket connection to the session transport. Write
// deadlines cap how long a slow peer can hold the session loop.
type wsConn struct {
	ws            *websocket.Conn
	writeDeadline time.Duration
}

func (c *wsConn) ReadFrame() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	return data, err
}

func (c *wsConn) WriteFrame(data []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeDeadline)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	return c.ws.Close()
}
