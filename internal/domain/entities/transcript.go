package entities

import (
	"time"
)

// SpeakerRole identifies who produced a transcript entry
type SpeakerRole string

const (
	SpeakerRoleAgent  SpeakerRole = "agent"
	SpeakerRoleCaller SpeakerRole = "caller"
	SpeakerRoleSystem SpeakerRole = "system"
)

// TranscriptEntry is one immutable, ordered record of an utterance or tool
// event within a call. Sequence numbers are strictly increasing per session.
type TranscriptEntry struct {
	CallID       string      `json:"call_id" db:"call_id"`
	Sequence     int64       `json:"sequence" db:"sequence"`
	Role         SpeakerRole `json:"role" db:"role"`
	Content      string      `json:"content" db:"content"`
	InvocationID *string     `json:"invocation_id,omitempty" db:"invocation_id"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
}
