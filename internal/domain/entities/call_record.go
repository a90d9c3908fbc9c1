package entities

import (
	"time"
)

// CallStatus represents the lifecycle of a call record
type CallStatus string

const (
	CallStatusInProgress CallStatus = "in_progress"
	CallStatusCompleted  CallStatus = "completed"
	CallStatusFlagged    CallStatus = "flagged_for_review"
)

// CallOutcome is the post-call analysis verdict
type CallOutcome string

const (
	CallOutcomeCompleted        CallOutcome = "completed"
	CallOutcomeFollowUpRequired CallOutcome = "follow_up_required"
)

// CallRecord is the durable record of one call, keyed by the platform's
// external call id within a tenant. It is created when call details arrive,
// finalized on disconnect, and enriched by the post-call analysis webhook.
type CallRecord struct {
	ID               string      `json:"id" db:"id"`
	TenantID         string      `json:"tenant_id" db:"tenant_id"`
	ExternalCallID   string      `json:"external_call_id" db:"external_call_id"`
	PhoneNumber      string      `json:"phone_number" db:"phone_number"`
	Direction        string      `json:"direction" db:"direction"`
	StartTime        time.Time   `json:"start_time" db:"start_time"`
	EndTime          *time.Time  `json:"end_time,omitempty" db:"end_time"`
	DurationSecs     *int        `json:"duration_secs,omitempty" db:"duration_secs"`
	Status           CallStatus  `json:"status" db:"status"`
	DisconnectReason string      `json:"disconnect_reason,omitempty" db:"disconnect_reason"`
	Summary          string      `json:"summary,omitempty" db:"summary"`
	Sentiment        string      `json:"sentiment,omitempty" db:"sentiment"`
	Outcome          CallOutcome `json:"outcome,omitempty" db:"outcome"`
	CreatedAt        time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at" db:"updated_at"`
}
