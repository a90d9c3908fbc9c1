package voice

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/crowndesk/receptionist/internal/domain/entities"
	"github.com/crowndesk/receptionist/internal/infrastructure/observability"
	"github.com/crowndesk/receptionist/pkg/config"
)

// beginMessage is spoken as soon as the connection is established
const beginMessage = "Hello! Thank you for calling. This is the CrownDesk dental practice assistant. How can I help you today?"

// fallbackMessage keeps the conversation alive when a turn cannot be
// planned or a tool fails
const fallbackMessage = "I'm sorry, I'm having a bit of trouble with that right now. Could you say that again, or would you like me to transfer you to our staff?"

// Session owns the protocol state machine for one live call. All frame
// handling runs on a single loop goroutine so transcript sequence numbers
// total-order every event; only tool execution leaves the loop, and its
// result re-enters as a message.
type Session struct {
	ID             string
	TenantID       string
	ExternalCallID string

	conn       Conn
	cfg        *config.VoiceConfig
	planner    TurnPlanner
	dispatcher ToolDispatcher
	recorder   TranscriptSink
	lifecycle  CallLifecycle
	metrics    *observability.Metrics
	logger     zerolog.Logger

	stateMu       sync.RWMutex
	state         entities.SessionState
	recordID      string
	patientID     *string
	seq           int64
	seenUtterance int
	malformed     int
	startedAt     time.Time
	pendingToolID string

	cancel       context.CancelFunc
	frames       chan []byte
	readErr      chan error
	toolDone     chan *toolCompletion
	done         chan struct{}
	shutdownC    chan struct{}
	shutdownOnce sync.Once
}

type toolCompletion struct {
	responseID   int
	invocationID string
	toolName     string
	outcome      *ToolOutcome
}

// NewSession builds a session in the connecting state. Run drives it.
func NewSession(tenantID, externalCallID string, conn Conn, cfg *config.VoiceConfig,
	planner TurnPlanner, dispatcher ToolDispatcher, recorder TranscriptSink,
	lifecycle CallLifecycle, metrics *observability.Metrics) *Session {

	id := uuid.New().String()
	return &Session{
		ID:             id,
		TenantID:       tenantID,
		ExternalCallID: externalCallID,
		conn:           conn,
		cfg:            cfg,
		planner:        planner,
		dispatcher:     dispatcher,
		recorder:       recorder,
		lifecycle:      lifecycle,
		metrics:        metrics,
		logger:         observability.SessionLogger(id, tenantID),
		state:          entities.SessionStateConnecting,
		startedAt:      time.Now(),
		frames:         make(chan []byte, 16),
		readErr:        make(chan error, 1),
		toolDone:       make(chan *toolCompletion, 1),
		done:           make(chan struct{}),
		shutdownC:      make(chan struct{}),
	}
}

// Shutdown asks the session loop to end the call. The loop performs the
// actual teardown, so this is safe to call from any goroutine.
func (s *Session) Shutdown() {
	s.shutdownOnce.Do(func() { close(s.shutdownC) })
}

// State reports the current protocol state. Safe to call from any goroutine.
func (s *Session) State() entities.SessionState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

// Run drives the session until disconnect, idle timeout, or fatal protocol
// error. It blocks for the lifetime of the call.
func (s *Session) Run(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	defer s.cancel()

	recordID, err := s.lifecycle.CallStarted(ctx, &entities.CallRecord{
		TenantID:       s.TenantID,
		ExternalCallID: s.ExternalCallID,
		StartTime:      s.startedAt,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to open call record")
		s.close("record_unavailable")
		return
	}
	s.recordID = recordID

	if err := s.send(NewConfigFrame()); err != nil {
		s.close("connection_error")
		return
	}
	if err := s.send(NewResponseFrame(0, beginMessage, false)); err != nil {
		s.close("connection_error")
		return
	}
	s.appendTranscript(entities.SpeakerRoleAgent, beginMessage, nil)
	s.transition(entities.SessionStateAwaitingCallDetails)

	go s.readLoop()

	idle := time.NewTimer(s.cfg.IdleTimeout)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			s.close("server_shutdown")
			return

		case <-s.shutdownC:
			s.close("server_shutdown")
			return

		case <-idle.C:
			s.logger.Info().Msg("session idle timeout")
			s.close("inactivity")
			return

		case err := <-s.readErr:
			s.logger.Info().Err(err).Msg("connection closed by peer")
			s.close("caller_hangup")
			return

		case data := <-s.frames:
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(s.cfg.IdleTimeout)

			if done := s.handleFrame(ctx, data); done {
				return
			}

		case completion := <-s.toolDone:
			if done := s.finishTool(completion); done {
				return
			}
		}
	}
}

// readLoop pumps raw frames off the transport into the session loop
func (s *Session) readLoop() {
	for {
		data, err := s.conn.ReadFrame()
		if err != nil {
			select {
			case s.readErr <- err:
			case <-s.done:
			}
			return
		}
		select {
		case s.frames <- data:
		case <-s.done:
			return
		}
	}
}

// handleFrame routes one inbound frame. Returns true when the session
// has reached its terminal state.
func (s *Session) handleFrame(ctx context.Context, data []byte) bool {
	frame, err := ParseInboundFrame(data)
	if err != nil {
		return s.protocolError(err)
	}

	switch frame.InteractionType {
	case InteractionPingPong:
		if err := s.send(NewPongFrame(time.Now())); err != nil {
			s.close("connection_error")
			return true
		}
		return false

	case InteractionCallDetails:
		return s.handleCallDetails(ctx, frame.Call)

	case InteractionUpdateOnly:
		s.absorbTranscript(frame.Transcript)
		return false

	case InteractionResponseRequired, InteractionReminderRequired:
		if s.state != entities.SessionStateActive {
			return s.protocolError(fmt.Errorf("turn request in state %s", s.state))
		}
		return s.handleTurn(ctx, frame)
	}

	return false
}

func (s *Session) handleCallDetails(ctx context.Context, details *CallDetails) bool {
	if s.state != entities.SessionStateAwaitingCallDetails {
		return s.protocolError(fmt.Errorf("call_details in state %s", s.state))
	}

	// Re-ensuring fills in the caller metadata the connect-time record
	// did not have.
	_, err := s.lifecycle.CallStarted(ctx, &entities.CallRecord{
		TenantID:       s.TenantID,
		ExternalCallID: s.ExternalCallID,
		PhoneNumber:    details.FromNumber,
		Direction:      details.Direction,
		StartTime:      s.startedAt,
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to store call metadata")
	}

	s.transition(entities.SessionStateActive)
	return false
}

func (s *Session) handleTurn(ctx context.Context, frame *InboundFrame) bool {
	s.absorbTranscript(frame.Transcript)

	// A turn carrying an explicit tool request bypasses planning entirely
	if frame.ToolCall != nil {
		return s.startTool(ctx, frame.ResponseID, &TurnPlan{
			ToolName: frame.ToolCall.Name,
			ToolArgs: frame.ToolCall.Arguments,
		})
	}

	plan, err := s.planner.PlanTurn(ctx, s.callContext(), frame.Transcript,
		frame.InteractionType == InteractionReminderRequired)
	if err != nil {
		s.logger.Warn().Err(err).Msg("turn planning failed")
		return s.speak(frame.ResponseID, fallbackMessage, false)
	}

	if plan.ToolName != "" {
		return s.startTool(ctx, frame.ResponseID, plan)
	}

	return s.speak(frame.ResponseID, plan.Content, plan.EndCall)
}

// startTool suspends the conversational turn and hands execution to the
// dispatcher on its own goroutine. Pings keep being answered while the
// tool runs.
func (s *Session) startTool(ctx context.Context, responseID int, plan *TurnPlan) bool {
	invocationID := uuid.New().String()
	s.pendingToolID = invocationID
	s.transition(entities.SessionStateToolExecuting)

	if err := s.send(NewToolInvocationFrame(invocationID, plan.ToolName, plan.ToolArgs)); err != nil {
		s.close("connection_error")
		return true
	}
	s.appendTranscript(entities.SpeakerRoleSystem,
		fmt.Sprintf("tool %s invoked", plan.ToolName), &invocationID)

	call := s.callContext()
	go func() {
		outcome := s.dispatcher.Dispatch(ctx, call, invocationID, plan.ToolName, plan.ToolArgs)
		s.toolDone <- &toolCompletion{
			responseID:   responseID,
			invocationID: invocationID,
			toolName:     plan.ToolName,
			outcome:      outcome,
		}
	}()

	return false
}

// finishTool re-enters the conversational turn with the tool's outcome.
// Failures and timeouts produce a spoken recovery, never a closed session.
func (s *Session) finishTool(completion *toolCompletion) bool {
	if s.state != entities.SessionStateToolExecuting || completion.invocationID != s.pendingToolID {
		// Stale completion from a session already past this tool
		return false
	}
	s.pendingToolID = ""
	s.transition(entities.SessionStateActive)

	outcome := completion.outcome
	resultContent := string(outcome.Result)
	if outcome.Failed {
		resultContent = fmt.Sprintf(`{"error":%q}`, outcome.FailureReason)
	}

	if err := s.send(NewToolResultFrame(completion.invocationID, resultContent)); err != nil {
		s.close("connection_error")
		return true
	}
	s.appendTranscript(entities.SpeakerRoleSystem,
		fmt.Sprintf("tool %s %s", completion.toolName, toolStatusWord(outcome)), &completion.invocationID)

	if outcome.ResolvedPatientID != "" {
		s.patientID = &outcome.ResolvedPatientID
	}

	speech := outcome.Speech
	if speech == "" {
		speech = fallbackMessage
	}

	if outcome.TransferNumber != "" {
		if err := s.send(NewTransferFrame(completion.responseID, speech, outcome.TransferNumber)); err != nil {
			s.close("connection_error")
			return true
		}
		s.appendTranscript(entities.SpeakerRoleAgent, speech, nil)
		return false
	}

	return s.speak(completion.responseID, speech, outcome.EndCall)
}

// speak sends a complete conversational response and records it
func (s *Session) speak(responseID int, content string, endCall bool) bool {
	if err := s.send(NewResponseFrame(responseID, content, endCall)); err != nil {
		s.close("connection_error")
		return true
	}
	s.appendTranscript(entities.SpeakerRoleAgent, content, nil)

	if endCall {
		s.close("agent_hangup")
		return true
	}
	return false
}

// protocolError counts a soft failure against the malformed-frame budget.
// The session continues until the budget is spent.
func (s *Session) protocolError(err error) bool {
	s.malformed++
	s.logger.Warn().Err(err).Int("malformed_count", s.malformed).Msg("ignoring malformed frame")

	if s.malformed >= s.cfg.MalformedFrameLimit {
		s.logger.Error().Msg("malformed frame limit reached")
		s.close("protocol_error")
		return true
	}
	return false
}

// absorbTranscript records caller utterances the platform has added since
// the last frame. The platform resends the full running transcript, so
// only the tail is new.
func (s *Session) absorbTranscript(transcript []Utterance) {
	for i := s.seenUtterance; i < len(transcript); i++ {
		utterance := transcript[i]
		role := entities.SpeakerRoleCaller
		if utterance.Role == "agent" {
			role = entities.SpeakerRoleAgent
		}
		if role == entities.SpeakerRoleCaller {
			s.appendTranscript(role, utterance.Content, nil)
		}
	}
	if len(transcript) > s.seenUtterance {
		s.seenUtterance = len(transcript)
	}
}

func (s *Session) appendTranscript(role entities.SpeakerRole, content string, invocationID *string) {
	s.seq++
	s.recorder.Append(&entities.TranscriptEntry{
		CallID:       s.recordID,
		Sequence:     s.seq,
		Role:         role,
		Content:      content,
		InvocationID: invocationID,
		CreatedAt:    time.Now(),
	})
}

func (s *Session) transition(to entities.SessionState) {
	s.stateMu.Lock()
	from := s.state
	s.state = to
	s.stateMu.Unlock()
	s.logger.Debug().Str("from", string(from)).Str("to", string(to)).Msg("session state changed")
	if s.recordID != "" {
		s.appendTranscript(entities.SpeakerRoleSystem, fmt.Sprintf("session %s", to), nil)
	}
}

// close performs the CLOSING to CLOSED teardown from any state. Safe to
// call more than once; only the first reason wins.
func (s *Session) close(reason string) {
	if s.state == entities.SessionStateClosed {
		return
	}

	s.transition(entities.SessionStateClosing)
	s.cancel()
	close(s.done)
	_ = s.conn.Close()

	endedAt := time.Now()
	// The session context is already cancelled; finalization gets its own.
	ctx, cancelFinalize := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelFinalize()
	if err := s.lifecycle.CallEnded(ctx, s.TenantID, s.ExternalCallID, reason, s.startedAt, endedAt); err != nil {
		s.logger.Error().Err(err).Msg("failed to finalize call record")
	}

	s.transition(entities.SessionStateClosed)
	observability.RecordSessionClosed(ctx, s.metrics, s.TenantID, endedAt.Sub(s.startedAt))
	s.logger.Info().Str("reason", reason).Dur("duration", endedAt.Sub(s.startedAt)).Msg("session closed")
}

func (s *Session) callContext() CallContext {
	return CallContext{
		SessionID:      s.ID,
		TenantID:       s.TenantID,
		ExternalCallID: s.ExternalCallID,
		RecordID:       s.recordID,
		PatientID:      s.patientID,
	}
}

func (s *Session) send(frame *OutboundFrame) error {
	data, err := frame.Encode()
	if err != nil {
		return err
	}
	if err := s.conn.WriteFrame(data); err != nil {
		s.logger.Warn().Err(err).Str("response_type", string(frame.ResponseType)).Msg("failed to write frame")
		return err
	}
	return nil
}

func toolStatusWord(outcome *ToolOutcome) string {
	switch {
	case outcome.TimedOut:
		return "timed out"
	case outcome.Failed:
		return "failed"
	default:
		return "succeeded"
	}
}
