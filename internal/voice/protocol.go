package voice

import (
	"encoding/json"
	"fmt"
	"time"
)

// InteractionType identifies an inbound frame from the voice platform
type InteractionType string

const (
	InteractionCallDetails      InteractionType = "call_details"
	InteractionResponseRequired InteractionType = "response_required"
	InteractionReminderRequired InteractionType = "reminder_required"
	InteractionUpdateOnly       InteractionType = "update_only"
	InteractionPingPong         InteractionType = "ping_pong"
)

// ResponseType identifies an outbound frame to the voice platform
type ResponseType string

const (
	ResponseTypeResponse           ResponseType = "response"
	ResponseTypeConfig             ResponseType = "config"
	ResponseTypePingPong           ResponseType = "ping_pong"
	ResponseTypeToolCallInvocation ResponseType = "tool_call_invocation"
	ResponseTypeToolCallResult     ResponseType = "tool_call_result"
)

// Utterance is one turn of conversation in the platform's running transcript
type Utterance struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CallDetails is the metadata payload of a call_details frame
type CallDetails struct {
	CallID         string            `json:"call_id"`
	FromNumber     string            `json:"from_number,omitempty"`
	ToNumber       string            `json:"to_number,omitempty"`
	Direction      string            `json:"direction,omitempty"`
	StartTimestamp int64             `json:"start_timestamp,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// ToolCall is a function invocation requested by the platform inside a
// conversational turn
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// InboundFrame is one JSON-framed event received from the voice platform
type InboundFrame struct {
	InteractionType InteractionType `json:"interaction_type"`
	ResponseID      int             `json:"response_id,omitempty"`
	Transcript      []Utterance     `json:"transcript,omitempty"`
	TurnTaking      string          `json:"turntaking,omitempty"`
	Call            *CallDetails    `json:"call,omitempty"`
	ToolCall        *ToolCall       `json:"tool_call,omitempty"`
	Timestamp       int64           `json:"timestamp,omitempty"`
}

// ConfigPayload is the capability negotiation sent on connect
type ConfigPayload struct {
	AutoReconnect           bool `json:"auto_reconnect"`
	CallDetails             bool `json:"call_details"`
	TranscriptWithToolCalls bool `json:"transcript_with_tool_calls"`
}

// OutboundFrame is one JSON-framed event sent to the voice platform.
// Pointer fields keep absent keys off the wire so each response_type
// carries only its own shape.
type OutboundFrame struct {
	ResponseType    ResponseType   `json:"response_type"`
	ResponseID      *int           `json:"response_id,omitempty"`
	Content         string         `json:"content,omitempty"`
	ContentComplete *bool          `json:"content_complete,omitempty"`
	EndCall         *bool          `json:"end_call,omitempty"`
	TransferNumber  string         `json:"transfer_number,omitempty"`
	Config          *ConfigPayload `json:"config,omitempty"`
	Timestamp       int64          `json:"timestamp,omitempty"`
	ToolCallID      string         `json:"tool_call_id,omitempty"`
	Name            string         `json:"name,omitempty"`
	Arguments       string         `json:"arguments,omitempty"`
}

// ParseInboundFrame decodes and validates one frame off the wire. A frame
// with an unrecognized or missing interaction type is malformed.
func ParseInboundFrame(data []byte) (*InboundFrame, error) {
	var frame InboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("invalid frame encoding: %w", err)
	}

	switch frame.InteractionType {
	case InteractionCallDetails:
		if frame.Call == nil || frame.Call.CallID == "" {
			return nil, fmt.Errorf("call_details frame missing call metadata")
		}
	case InteractionResponseRequired, InteractionReminderRequired, InteractionUpdateOnly, InteractionPingPong:
	case "":
		return nil, fmt.Errorf("frame missing interaction_type")
	default:
		return nil, fmt.Errorf("unrecognized interaction_type %q", frame.InteractionType)
	}

	return &frame, nil
}

// NewConfigFrame builds the capability frame sent immediately after the
// connection is established
func NewConfigFrame() *OutboundFrame {
	return &OutboundFrame{
		ResponseType: ResponseTypeConfig,
		Config: &ConfigPayload{
			AutoReconnect:           true,
			CallDetails:             true,
			TranscriptWithToolCalls: true,
		},
	}
}

// NewResponseFrame builds a complete conversational response for a turn
func NewResponseFrame(responseID int, content string, endCall bool) *OutboundFrame {
	complete := true
	return &OutboundFrame{
		ResponseType:    ResponseTypeResponse,
		ResponseID:      &responseID,
		Content:         content,
		ContentComplete: &complete,
		EndCall:         &endCall,
	}
}

// NewTransferFrame builds a response that hands the caller to a human
func NewTransferFrame(responseID int, content, transferNumber string) *OutboundFrame {
	frame := NewResponseFrame(responseID, content, false)
	frame.TransferNumber = transferNumber
	return frame
}

// NewPongFrame answers a keepalive ping
func NewPongFrame(now time.Time) *OutboundFrame {
	return &OutboundFrame{
		ResponseType: ResponseTypePingPong,
		Timestamp:    now.UnixMilli(),
	}
}

// NewToolInvocationFrame announces that a tool is being executed
func NewToolInvocationFrame(toolCallID, name string, arguments json.RawMessage) *OutboundFrame {
	return &OutboundFrame{
		ResponseType: ResponseTypeToolCallInvocation,
		ToolCallID:   toolCallID,
		Name:         name,
		Arguments:    string(arguments),
	}
}

// NewToolResultFrame delivers a tool's result back to the platform
func NewToolResultFrame(toolCallID, content string) *OutboundFrame {
	return &OutboundFrame{
		ResponseType: ResponseTypeToolCallResult,
		ToolCallID:   toolCallID,
		Content:      content,
	}
}

// Encode serializes an outbound frame for the wire
func (f *OutboundFrame) Encode() ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to encode outbound frame: %w", err)
	}
	return data, nil
}
