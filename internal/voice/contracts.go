package voice

import (
	"context"
	"encoding/json"
	"time"

	"github.com/crowndesk/receptionist/internal/domain/entities"
)

// Conn is the framed transport under a session. Implementations own write
// deadlines so a slow peer cannot stall the session loop past the
// keepalive budget.
type Conn interface {
	// ReadFrame blocks until one inbound frame arrives or the connection
	// fails
	ReadFrame() ([]byte, error)

	// WriteFrame sends one outbound frame
	WriteFrame(data []byte) error

	// Close tears down the transport
	Close() error
}

// CallContext identifies the call a tool executes on behalf of. Every
// downstream query is scoped by its TenantID.
type CallContext struct {
	SessionID      string
	TenantID       string
	ExternalCallID string
	RecordID       string
	PatientID      *string
}

// TurnPlan is the conversation layer's decision for one turn: either plain
// speech, or a tool to invoke before speaking.
type TurnPlan struct {
	Content  string
	ToolName string
	ToolArgs json.RawMessage
	EndCall  bool
}

// TurnPlanner classifies caller intent from the running transcript and
// decides what the agent does next. It is the boundary to the language
// model; the session never inspects utterance content itself.
type TurnPlanner interface {
	PlanTurn(ctx context.Context, call CallContext, transcript []Utterance, reminder bool) (*TurnPlan, error)
}

// ToolOutcome is the result of one dispatched tool call, already shaped for
// the conversation: a structured payload for the platform plus caller-facing
// speech.
type ToolOutcome struct {
	Result            json.RawMessage
	Speech            string
	Failed            bool
	TimedOut          bool
	FailureReason     string
	EndCall           bool
	TransferNumber    string
	ResolvedPatientID string
}

// ToolDispatcher executes a named tool. Implementations bound execution
// with their own per-tool timeout and always return an outcome; a dispatch
// never fails in a way the session cannot speak about.
type ToolDispatcher interface {
	Dispatch(ctx context.Context, call CallContext, invocationID, toolName string, args json.RawMessage) *ToolOutcome
}

// TranscriptSink accepts transcript entries and tool invocation audit rows
// without blocking the session loop
type TranscriptSink interface {
	Append(entry *entities.TranscriptEntry)
	RecordInvocation(invocation *entities.ToolInvocation)
}

// CallLifecycle owns the durable call record bracketing a session
type CallLifecycle interface {
	// CallStarted ensures the call record exists and returns its id. Called
	// once at connect and again when call metadata arrives.
	CallStarted(ctx context.Context, record *entities.CallRecord) (string, error)

	// CallEnded finalizes the record after disconnect
	CallEnded(ctx context.Context, tenantID, externalCallID, disconnectReason string, startedAt, endedAt time.Time) error
}
