package entities

import (
	"encoding/json"
	"time"
)

// ToolInvocationStatus represents the lifecycle of a dispatched tool call
type ToolInvocationStatus string

const (
	ToolInvocationStatusPending   ToolInvocationStatus = "pending"
	ToolInvocationStatusSucceeded ToolInvocationStatus = "succeeded"
	ToolInvocationStatusFailed    ToolInvocationStatus = "failed"
	ToolInvocationStatusTimedOut  ToolInvocationStatus = "timed_out"
)

// ToolInvocation is the audit record of one tool call requested by the
// voice platform. It is owned by the session that created it.
type ToolInvocation struct {
	ID            string               `json:"id" db:"id"`
	CallID        string               `json:"call_id" db:"call_id"`
	ToolName      string               `json:"tool_name" db:"tool_name"`
	Arguments     json.RawMessage      `json:"arguments" db:"arguments"`
	Result        json.RawMessage      `json:"result,omitempty" db:"result"`
	FailureReason string               `json:"failure_reason,omitempty" db:"failure_reason"`
	Status        ToolInvocationStatus `json:"status" db:"status"`
	DispatchedAt  time.Time            `json:"dispatched_at" db:"dispatched_at"`
	CompletedAt   *time.Time           `json:"completed_at,omitempty" db:"completed_at"`
}
