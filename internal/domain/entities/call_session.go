package entities

import (
	"time"
)

// SessionState represents the protocol state of a live call session
type SessionState string

const (
	SessionStateConnecting          SessionState = "connecting"
	SessionStateAwaitingCallDetails SessionState = "awaiting_call_details"
	SessionStateActive              SessionState = "active"
	SessionStateToolExecuting       SessionState = "tool_executing"
	SessionStateClosing             SessionState = "closing"
	SessionStateClosed              SessionState = "closed"
)

// CallSession is the stateful context of one live voice interaction.
// It is owned exclusively by its session loop for its lifetime and is
// destroyed on disconnect or idle timeout.
type CallSession struct {
	ID              string       `json:"id"`
	TenantID        string       `json:"tenant_id"`
	ExternalCallID  string       `json:"external_call_id"`
	State           SessionState `json:"state"`
	PatientID       *string      `json:"patient_id,omitempty"`
	PendingToolID   *string      `json:"pending_tool_id,omitempty"`
	StartedAt       time.Time    `json:"started_at"`
	LastActivityAt  time.Time    `json:"last_activity_at"`
	MalformedFrames int          `json:"malformed_frames"`
}

// Terminal reports whether the session has reached its final state
func (s SessionState) Terminal() bool {
	return s == SessionStateClosed
}
