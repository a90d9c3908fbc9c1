package entities

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// ApprovalStatus represents the review status of a proposed mutation
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusRejected ApprovalStatus = "rejected"
)

// MutationType classifies the appointment change being proposed
type MutationType string

const (
	MutationTypeBook       MutationType = "book"
	MutationTypeReschedule MutationType = "reschedule"
	MutationTypeCancel     MutationType = "cancel"
)

// ApprovalRequest is a durable record of one AI-proposed appointment
// mutation. Appointment state changes only after the request transitions to
// approved; the call session that created it never writes directly.
type ApprovalRequest struct {
	ID             string          `json:"id" db:"id"`
	TenantID       string          `json:"tenant_id" db:"tenant_id"`
	SessionID      string          `json:"session_id" db:"session_id"`
	EntityType     string          `json:"entity_type" db:"entity_type"`
	EntityID       string          `json:"entity_id" db:"entity_id"`
	MutationType   MutationType    `json:"mutation_type" db:"mutation_type"`
	IdempotencyKey string          `json:"idempotency_key" db:"idempotency_key"`
	BeforeState    json.RawMessage `json:"before_state,omitempty" db:"before_state"`
	AfterState     json.RawMessage `json:"after_state" db:"after_state"`
	Rationale      string          `json:"rationale" db:"rationale"`
	Status         ApprovalStatus  `json:"status" db:"status"`
	ReviewedBy     *string         `json:"reviewed_by,omitempty" db:"reviewed_by"`
	ReviewedAt     *time.Time      `json:"reviewed_at,omitempty" db:"reviewed_at"`
	ReviewNote     string          `json:"review_note,omitempty" db:"review_note"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// ApprovalIdempotencyKey derives the deterministic duplicate-detection key
// for a proposal. A platform retry of the same logical mutation within one
// session produces the same key.
func ApprovalIdempotencyKey(sessionID string, mutation MutationType, entityID string) string {
	sum := sha256.Sum256([]byte(sessionID + "|" + string(mutation) + "|" + entityID))
	return hex.EncodeToString(sum[:])
}

// AppointmentChange is the proposed-state payload carried by an
// ApprovalRequest targeting an appointment.
type AppointmentChange struct {
	AppointmentID string          `json:"appointment_id"`
	PatientID     string          `json:"patient_id"`
	ProviderID    string          `json:"provider_id"`
	StartTime     time.Time       `json:"start_time"`
	EndTime       time.Time       `json:"end_time"`
	Type          AppointmentType `json:"type"`
	Notes         string          `json:"notes,omitempty"`
	CancelReason  string          `json:"cancel_reason,omitempty"`
}

// ApprovalEventType identifies a change on the approval queue
type ApprovalEventType string

const (
	ApprovalEventCreated  ApprovalEventType = "approval_created"
	ApprovalEventApproved ApprovalEventType = "approval_approved"
	ApprovalEventRejected ApprovalEventType = "approval_rejected"
)

// ApprovalEvent is published on the event bus whenever the approval queue
// changes, so reviewer dashboards can update in real time.
type ApprovalEvent struct {
	ID         string            `json:"id"`
	TenantID   string            `json:"tenant_id"`
	ApprovalID string            `json:"approval_id"`
	EventType  ApprovalEventType `json:"event_type"`
	Timestamp  time.Time         `json:"timestamp"`
}
