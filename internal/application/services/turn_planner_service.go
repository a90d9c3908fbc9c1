package services

import (
	"context"
	"strings"

	"github.com/crowndesk/receptionist/internal/voice"
	"github.com/crowndesk/receptionist/pkg/config"
)

// TurnPlannerService decides what the agent does with a conversational
// turn when the platform did not request a tool itself. It classifies the
// caller's latest utterance with keyword rules; anything it cannot place
// gets a clarifying question rather than a guess.
type TurnPlannerService struct {
	cfg *config.VoiceConfig
}

// NewTurnPlannerService creates a new turn planner
func NewTurnPlannerService(cfg *config.VoiceConfig) *TurnPlannerService {
	return &TurnPlannerService{
		cfg: cfg,
	}
}

var _ voice.TurnPlanner = (*TurnPlannerService)(nil)

// PlanTurn maps the latest caller utterance to a reply
func (s *TurnPlannerService) PlanTurn(_ context.Context, call voice.CallContext, transcript []voice.Utterance, reminder bool) (*voice.TurnPlan, error) {
	if reminder {
		return &voice.TurnPlan{Content: "Are you still there? Take your time, I'm happy to help when you're ready."}, nil
	}

	utterance := lastCallerUtterance(transcript)
	if utterance == "" {
		return &voice.TurnPlan{Content: "How can I help you today?"}, nil
	}

	switch {
	case containsAny(utterance, "goodbye", "bye", "that's all", "nothing else", "hang up"):
		return &voice.TurnPlan{Content: "Thank you for calling. Have a great day, goodbye!", EndCall: true}, nil

	case containsAny(utterance, "human", "receptionist", "real person", "someone", "staff", "front desk"):
		return &voice.TurnPlan{
			ToolName: "transfer_to_human",
			ToolArgs: []byte(`{}`),
		}, nil

	case containsAny(utterance, "emergency", "bleeding", "severe pain", "swelling"):
		return &voice.TurnPlan{Content: "If this is a medical emergency, please hang up and call 911 or go to the nearest emergency room. Otherwise, I can transfer you to our staff right away."}, nil

	case containsAny(utterance, "insurance", "coverage", "copay"):
		if call.PatientID == nil {
			return &voice.TurnPlan{Content: "I can check that once I've verified your identity. Could you tell me your full name and date of birth?"}, nil
		}
		return &voice.TurnPlan{
			ToolName: "get_insurance_info",
			ToolArgs: []byte(`{}`),
		}, nil

	case containsAny(utterance, "cancel"):
		return &voice.TurnPlan{Content: "I can help cancel an appointment. Which date is it scheduled for?"}, nil

	case containsAny(utterance, "reschedule", "move my appointment", "change my appointment"):
		return &voice.TurnPlan{Content: "I can help with that. Which date is your current appointment, and when would you like to move it to?"}, nil

	case containsAny(utterance, "book", "appointment", "schedule", "cleaning", "checkup", "come in"):
		return &voice.TurnPlan{Content: "I'd be happy to help schedule that. What day works best for you?"}, nil

	case containsAny(utterance, "hours", "open", "location", "address", "where are you"):
		return &voice.TurnPlan{Content: "We're open weekdays during regular business hours. Is there a day you'd like to come in? I can check what's available."}, nil

	default:
		return &voice.TurnPlan{Content: "I can help with booking, rescheduling, or cancelling appointments, and with insurance questions. What would you like to do?"}, nil
	}
}

func lastCallerUtterance(transcript []voice.Utterance) string {
	for i := len(transcript) - 1; i >= 0; i-- {
		if transcript[i].Role == "user" {
			return strings.ToLower(transcript[i].Content)
		}
	}
	return ""
}

func containsAny(haystack string, needles ...string) bool {
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}
