package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/crowndesk/receptionist/internal/domain/entities"
	"github.com/crowndesk/receptionist/internal/domain/providers"
	"github.com/crowndesk/receptionist/internal/domain/repositories"
	"github.com/crowndesk/receptionist/internal/infrastructure/observability"
	"github.com/crowndesk/receptionist/internal/voice"
	"github.com/crowndesk/receptionist/pkg/config"
	apperrors "github.com/crowndesk/receptionist/pkg/errors"
)

// Spoken recovery lines for the failure tiers the conversation has to
// survive.
const (
	speechToolTrouble     = "I'm sorry, I'm having trouble with that right now. Could we try again in a moment?"
	speechNotVerified     = "Before I can help with that, I need to verify your identity. Could you tell me your full name and date of birth?"
	speechRateLimited     = "I'm sorry, I need a moment to catch up. Could you give me a few seconds and ask again?"
	speechPendingTemplate = "I've sent that request to our staff for confirmation. You'll hear from us shortly; please note the %s is pending confirmation, not finalized yet."
)

type argKind int

const (
	argString argKind = iota
	argNumber
)

// argSpec declares one argument in a tool's schema
type argSpec struct {
	name     string
	kind     argKind
	required bool
}

type toolHandler func(ctx context.Context, call voice.CallContext, args map[string]interface{}) (*voice.ToolOutcome, error)

// toolDefinition binds a tool name to its schema and handler. Mutating
// tools get the longer timeout and must route through the approval gateway.
type toolDefinition struct {
	name     string
	mutating bool
	args     []argSpec
	handler  toolHandler
}

// ToolDispatchService maps named tool invocations to handlers. Unknown
// names, bad arguments, handler failures, and timeouts all come back as
// structured outcomes the session can speak about; a dispatch never
// terminates a call.
type ToolDispatchService struct {
	resolver     *PatientResolverService
	availability *AvailabilityService
	approvals    *ApprovalService
	patients     repositories.PatientRepository
	appointments repositories.AppointmentRepository
	insurance    repositories.InsuranceRepository
	recorder     *TranscriptRecorder
	limiter      providers.RateLimiter
	cfg          *config.VoiceConfig
	metrics      *observability.Metrics
	tools        map[string]*toolDefinition
}

// NewToolDispatchService creates a dispatcher with the full tool table
func NewToolDispatchService(resolver *PatientResolverService, availability *AvailabilityService,
	approvals *ApprovalService, patients repositories.PatientRepository,
	appointments repositories.AppointmentRepository, insurance repositories.InsuranceRepository,
	recorder *TranscriptRecorder, limiter providers.RateLimiter,
	cfg *config.VoiceConfig, metrics *observability.Metrics) *ToolDispatchService {

	s := &ToolDispatchService{
		resolver:     resolver,
		availability: availability,
		approvals:    approvals,
		patients:     patients,
		appointments: appointments,
		insurance:    insurance,
		recorder:     recorder,
		limiter:      limiter,
		cfg:          cfg,
		metrics:      metrics,
	}

	s.tools = map[string]*toolDefinition{
		"search_patient": {
			name: "search_patient",
			args: []argSpec{
				{name: "name", kind: argString, required: true},
				{name: "date_of_birth", kind: argString, required: true},
			},
			handler: s.handleSearchPatient,
		},
		"check_availability": {
			name: "check_availability",
			args: []argSpec{
				{name: "date", kind: argString, required: true},
				{name: "provider_id", kind: argString},
				{name: "duration_minutes", kind: argNumber},
			},
			handler: s.handleCheckAvailability,
		},
		"get_insurance_info": {
			name:    "get_insurance_info",
			handler: s.handleGetInsuranceInfo,
		},
		"book_appointment": {
			name:     "book_appointment",
			mutating: true,
			args: []argSpec{
				{name: "provider_id", kind: argString, required: true},
				{name: "date", kind: argString, required: true},
				{name: "time", kind: argString, required: true},
				{name: "type", kind: argString},
				{name: "notes", kind: argString},
			},
			handler: s.handleBookAppointment,
		},
		"reschedule_appointment": {
			name:     "reschedule_appointment",
			mutating: true,
			args: []argSpec{
				{name: "new_date", kind: argString, required: true},
				{name: "new_time", kind: argString, required: true},
				{name: "appointment_id", kind: argString},
				{name: "date", kind: argString},
			},
			handler: s.handleRescheduleAppointment,
		},
		"cancel_appointment": {
			name:     "cancel_appointment",
			mutating: true,
			args: []argSpec{
				{name: "appointment_id", kind: argString},
				{name: "date", kind: argString},
				{name: "reason", kind: argString},
			},
			handler: s.handleCancelAppointment,
		},
		"transfer_to_human": {
			name: "transfer_to_human",
			args: []argSpec{
				{name: "message", kind: argString},
			},
			handler: s.handleTransferToHuman,
		},
		"end_call": {
			name: "end_call",
			args: []argSpec{
				{name: "message", kind: argString},
			},
			handler: s.handleEndCall,
		},
	}

	return s
}

var _ voice.ToolDispatcher = (*ToolDispatchService)(nil)

// Dispatch executes one tool call, bounded by the tool's timeout, and
// writes the invocation audit trail around it
func (s *ToolDispatchService) Dispatch(ctx context.Context, call voice.CallContext, invocationID, toolName string, rawArgs json.RawMessage) *voice.ToolOutcome {
	started := time.Now()

	s.recorder.RecordInvocation(&entities.ToolInvocation{
		ID:           invocationID,
		CallID:       call.RecordID,
		ToolName:     toolName,
		Arguments:    rawArgs,
		Status:       entities.ToolInvocationStatusPending,
		DispatchedAt: started,
	})

	outcome := s.execute(ctx, call, toolName, rawArgs)

	completed := time.Now()
	status := entities.ToolInvocationStatusSucceeded
	switch {
	case outcome.TimedOut:
		status = entities.ToolInvocationStatusTimedOut
	case outcome.Failed:
		status = entities.ToolInvocationStatusFailed
	}

	s.recorder.RecordInvocation(&entities.ToolInvocation{
		ID:            invocationID,
		CallID:        call.RecordID,
		ToolName:      toolName,
		Arguments:     rawArgs,
		Result:        outcome.Result,
		FailureReason: outcome.FailureReason,
		Status:        status,
		DispatchedAt:  started,
		CompletedAt:   &completed,
	})

	observability.RecordToolMetric(ctx, s.metrics, toolName, string(status), completed.Sub(started))
	return outcome
}

func (s *ToolDispatchService) execute(ctx context.Context, call voice.CallContext, toolName string, rawArgs json.RawMessage) *voice.ToolOutcome {
	def, ok := s.tools[toolName]
	if !ok {
		return failureOutcome(fmt.Sprintf("unsupported tool %q", toolName), speechToolTrouble)
	}

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, call.TenantID, s.cfg.ToolRateLimit)
		if err != nil {
			log.Warn().Err(err).Str("tenant_id", call.TenantID).Msg("rate limiter unavailable, allowing call")
		} else if !allowed {
			return failureOutcome("tool rate limit exceeded", speechRateLimited)
		}
	}

	args, err := decodeArguments(rawArgs)
	if err != nil {
		return failureOutcome(fmt.Sprintf("invalid arguments: %v", err), speechToolTrouble)
	}
	if err := validateArguments(def, args); err != nil {
		return failureOutcome(err.Error(), speechToolTrouble)
	}

	toolCtx, cancel := context.WithTimeout(ctx, s.cfg.ToolTimeout(def.mutating))
	defer cancel()

	results := make(chan *voice.ToolOutcome, 1)
	go func() {
		outcome, err := def.handler(toolCtx, call, args)
		if err != nil {
			log.Warn().Err(err).Str("tool", def.name).Msg("tool handler failed")
			outcome = failureOutcome(err.Error(), speechToolTrouble)
		}
		results <- outcome
	}()

	select {
	case outcome := <-results:
		return outcome
	case <-toolCtx.Done():
		if ctx.Err() != nil {
			// Session disconnected mid-execution
			return failureOutcome("invocation cancelled", speechToolTrouble)
		}
		return &voice.ToolOutcome{
			Failed:        true,
			TimedOut:      true,
			FailureReason: fmt.Sprintf("tool %s exceeded its deadline", def.name),
			Speech:        speechToolTrouble,
		}
	}
}

func (s *ToolDispatchService) handleSearchPatient(ctx context.Context, call voice.CallContext, args map[string]interface{}) (*voice.ToolOutcome, error) {
	resolution, err := s.resolver.Resolve(ctx, call.TenantID, stringArg(args, "name"), stringArg(args, "date_of_birth"))
	if err != nil {
		return nil, err
	}

	switch resolution.Outcome {
	case ResolutionMatched:
		result, err := json.Marshal(map[string]interface{}{
			"status":     "verified",
			"patient_id": resolution.Match.PatientID,
			"full_name":  resolution.Match.FullName,
			"score":      resolution.Match.Score,
		})
		if err != nil {
			return nil, err
		}
		return &voice.ToolOutcome{
			Result:            result,
			Speech:            fmt.Sprintf("Thank you, %s, I've verified your information. How can I help you today?", resolution.Match.FullName),
			ResolvedPatientID: resolution.Match.PatientID,
		}, nil

	case ResolutionAmbiguous:
		result, err := json.Marshal(map[string]interface{}{
			"status":          "ambiguous",
			"candidate_count": len(resolution.Candidates),
		})
		if err != nil {
			return nil, err
		}
		return &voice.ToolOutcome{
			Result: result,
			Speech: "I found more than one record close to that. Could you spell your full name for me, please?",
		}, nil

	default:
		return &voice.ToolOutcome{
			Result: json.RawMessage(`{"status":"not_found"}`),
			Speech: "I couldn't find a record matching that name and date of birth. Could you repeat them for me?",
		}, nil
	}
}

func (s *ToolDispatchService) handleCheckAvailability(ctx context.Context, call voice.CallContext, args map[string]interface{}) (*voice.ToolOutcome, error) {
	date, ok := parseSchedulingDate(stringArg(args, "date"))
	if !ok {
		return &voice.ToolOutcome{
			Result: json.RawMessage(`{"status":"invalid_date"}`),
			Speech: "I didn't catch that date. Could you give it to me again, like March 5th?",
		}, nil
	}

	slots, err := s.availability.FindSlots(ctx, call.TenantID, stringArg(args, "provider_id"), date, intArg(args, "duration_minutes"))
	if err != nil {
		return nil, err
	}

	payload := make([]map[string]interface{}, 0, len(slots))
	for _, slot := range slots {
		payload = append(payload, map[string]interface{}{
			"provider_id":   slot.ProviderID,
			"provider_name": slot.ProviderName,
			"start_time":    slot.StartTime.Format(time.RFC3339),
			"end_time":      slot.EndTime.Format(time.RFC3339),
		})
	}
	result, err := json.Marshal(map[string]interface{}{"slots": payload})
	if err != nil {
		return nil, err
	}

	return &voice.ToolOutcome{
		Result: result,
		Speech: describeSlots(slots, date),
	}, nil
}

func (s *ToolDispatchService) handleGetInsuranceInfo(ctx context.Context, call voice.CallContext, _ map[string]interface{}) (*voice.ToolOutcome, error) {
	if call.PatientID == nil {
		return failureOutcome("identity not verified", speechNotVerified), nil
	}

	policies, err := s.insurance.ListActiveByPatient(ctx, call.TenantID, *call.PatientID)
	if err != nil && !apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
		return nil, err
	}

	if len(policies) == 0 {
		return &voice.ToolOutcome{
			Result: json.RawMessage(`{"policies":[]}`),
			Speech: "I don't see any active insurance on file for you. Our staff can add one when you come in.",
		}, nil
	}

	result, err := json.Marshal(map[string]interface{}{"policies": policies})
	if err != nil {
		return nil, err
	}
	return &voice.ToolOutcome{
		Result: result,
		Speech: fmt.Sprintf("We have your %s policy on file. Please remember coverage amounts are confirmed by the carrier, not by us.", policies[0].Carrier),
	}, nil
}

func (s *ToolDispatchService) handleBookAppointment(ctx context.Context, call voice.CallContext, args map[string]interface{}) (*voice.ToolOutcome, error) {
	if call.PatientID == nil {
		return failureOutcome("identity not verified", speechNotVerified), nil
	}

	start, ok := parseDateAndTime(stringArg(args, "date"), stringArg(args, "time"))
	if !ok {
		return &voice.ToolOutcome{
			Result: json.RawMessage(`{"status":"invalid_time"}`),
			Speech: "I didn't catch that date and time. Could you give them to me again?",
		}, nil
	}
	end := start.Add(time.Duration(s.cfg.DefaultSlotMinutes) * time.Minute)

	change := &entities.AppointmentChange{
		PatientID:  *call.PatientID,
		ProviderID: stringArg(args, "provider_id"),
		StartTime:  start,
		EndTime:    end,
		Type:       appointmentType(stringArg(args, "type")),
		Notes:      stringArg(args, "notes"),
	}

	approval, err := s.approvals.Propose(ctx, call.TenantID, call.SessionID, entities.MutationTypeBook, change,
		fmt.Sprintf("caller requested a %s on %s", change.Type, start.Format("Monday, January 2 at 3:04 PM")))
	if err != nil {
		return nil, err
	}

	return pendingOutcome(approval, "booking")
}

func (s *ToolDispatchService) handleRescheduleAppointment(ctx context.Context, call voice.CallContext, args map[string]interface{}) (*voice.ToolOutcome, error) {
	if call.PatientID == nil {
		return failureOutcome("identity not verified", speechNotVerified), nil
	}

	appointment, outcome, err := s.locateAppointment(ctx, call, args)
	if outcome != nil || err != nil {
		return outcome, err
	}

	start, ok := parseDateAndTime(stringArg(args, "new_date"), stringArg(args, "new_time"))
	if !ok {
		return &voice.ToolOutcome{
			Result: json.RawMessage(`{"status":"invalid_time"}`),
			Speech: "I didn't catch the new date and time. Could you give them to me again?",
		}, nil
	}

	change := &entities.AppointmentChange{
		AppointmentID: appointment.ID,
		PatientID:     appointment.PatientID,
		ProviderID:    appointment.ProviderID,
		StartTime:     start,
		EndTime:       start.Add(appointment.EndTime.Sub(appointment.StartTime)),
		Type:          appointment.Type,
		Notes:         appointment.Notes,
	}

	approval, err := s.approvals.Propose(ctx, call.TenantID, call.SessionID, entities.MutationTypeReschedule, change,
		fmt.Sprintf("caller asked to move their appointment to %s", start.Format("Monday, January 2 at 3:04 PM")))
	if err != nil {
		return nil, err
	}

	return pendingOutcome(approval, "reschedule")
}

func (s *ToolDispatchService) handleCancelAppointment(ctx context.Context, call voice.CallContext, args map[string]interface{}) (*voice.ToolOutcome, error) {
	if call.PatientID == nil {
		return failureOutcome("identity not verified", speechNotVerified), nil
	}

	appointment, outcome, err := s.locateAppointment(ctx, call, args)
	if outcome != nil || err != nil {
		return outcome, err
	}

	change := &entities.AppointmentChange{
		AppointmentID: appointment.ID,
		PatientID:     appointment.PatientID,
		ProviderID:    appointment.ProviderID,
		StartTime:     appointment.StartTime,
		EndTime:       appointment.EndTime,
		Type:          appointment.Type,
		CancelReason:  stringArg(args, "reason"),
	}

	approval, err := s.approvals.Propose(ctx, call.TenantID, call.SessionID, entities.MutationTypeCancel, change,
		"caller asked to cancel their appointment")
	if err != nil {
		return nil, err
	}

	return pendingOutcome(approval, "cancellation")
}

func (s *ToolDispatchService) handleTransferToHuman(_ context.Context, _ voice.CallContext, args map[string]interface{}) (*voice.ToolOutcome, error) {
	speech := stringArg(args, "message")
	if speech == "" {
		speech = "Of course, let me transfer you to our staff now. Please hold."
	}
	if s.cfg.TransferNumber == "" {
		return failureOutcome("no transfer number configured", speechToolTrouble), nil
	}
	return &voice.ToolOutcome{
		Result:         json.RawMessage(`{"status":"transferring"}`),
		Speech:         speech,
		TransferNumber: s.cfg.TransferNumber,
	}, nil
}

func (s *ToolDispatchService) handleEndCall(_ context.Context, _ voice.CallContext, args map[string]interface{}) (*voice.ToolOutcome, error) {
	speech := stringArg(args, "message")
	if speech == "" {
		speech = "Thank you for calling. Have a great day, goodbye!"
	}
	return &voice.ToolOutcome{
		Result:  json.RawMessage(`{"status":"ending"}`),
		Speech:  speech,
		EndCall: true,
	}, nil
}

// locateAppointment finds the appointment a mutation targets, by explicit
// id or by the verified patient's appointment on a spoken date. A non-nil
// outcome means the caller needs to clarify.
func (s *ToolDispatchService) locateAppointment(ctx context.Context, call voice.CallContext, args map[string]interface{}) (*entities.Appointment, *voice.ToolOutcome, error) {
	if id := stringArg(args, "appointment_id"); id != "" {
		appointment, err := s.appointments.GetByID(ctx, call.TenantID, id)
		if err != nil {
			if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
				return nil, &voice.ToolOutcome{
					Result: json.RawMessage(`{"status":"not_found"}`),
					Speech: "I couldn't find that appointment. Could you tell me the date it was scheduled for?",
				}, nil
			}
			return nil, nil, err
		}
		if appointment.PatientID != *call.PatientID {
			return nil, failureOutcome("appointment belongs to a different patient", speechToolTrouble), nil
		}
		return appointment, nil, nil
	}

	day, ok := parseSchedulingDate(stringArg(args, "date"))
	if !ok {
		return nil, &voice.ToolOutcome{
			Result: json.RawMessage(`{"status":"invalid_date"}`),
			Speech: "Which date is that appointment on?",
		}, nil
	}

	appointment, err := s.appointments.FindByPatientOnDate(ctx, call.TenantID, *call.PatientID, day)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			return nil, &voice.ToolOutcome{
				Result: json.RawMessage(`{"status":"not_found"}`),
				Speech: "I don't see an appointment for you on that date. Could you double-check the date?",
			}, nil
		}
		return nil, nil, err
	}
	return appointment, nil, nil
}

// decodeArguments accepts either a JSON object or a JSON string containing
// one, which is how some platforms double-encode tool arguments
func decodeArguments(raw json.RawMessage) (map[string]interface{}, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return map[string]interface{}{}, nil
	}

	if trimmed[0] == '"' {
		var inner string
		if err := json.Unmarshal(trimmed, &inner); err != nil {
			return nil, err
		}
		trimmed = []byte(inner)
	}

	args := map[string]interface{}{}
	if err := json.Unmarshal(trimmed, &args); err != nil {
		return nil, err
	}
	return args, nil
}

func validateArguments(def *toolDefinition, args map[string]interface{}) error {
	for _, spec := range def.args {
		value, present := args[spec.name]
		if !present || value == nil {
			if spec.required {
				return fmt.Errorf("tool %s missing required argument %q", def.name, spec.name)
			}
			continue
		}

		switch spec.kind {
		case argString:
			if _, ok := value.(string); !ok {
				return fmt.Errorf("tool %s argument %q must be a string", def.name, spec.name)
			}
		case argNumber:
			if _, ok := value.(float64); !ok {
				return fmt.Errorf("tool %s argument %q must be a number", def.name, spec.name)
			}
		}
	}
	return nil
}

func stringArg(args map[string]interface{}, key string) string {
	if value, ok := args[key].(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func intArg(args map[string]interface{}, key string) int {
	if value, ok := args[key].(float64); ok {
		return int(value)
	}
	return 0
}

// schedulingLayouts are yearless forms callers use for upcoming dates
var schedulingLayouts = []string{
	"January 2",
	"Jan 2",
	"1/2",
	"01/02",
}

// parseSchedulingDate resolves caller phrasing for an upcoming date.
// Yearless dates roll forward to their next occurrence so "March 5th"
// spoken in April means next year.
func parseSchedulingDate(raw string) (time.Time, bool) {
	if day, ok := ParseSpokenDate(raw); ok {
		return day, true
	}

	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "today":
		return today, true
	case "tomorrow":
		return today.AddDate(0, 0, 1), true
	}

	cleaned := normalizeSpokenDate(raw)
	for _, layout := range schedulingLayouts {
		parsed, err := time.Parse(layout, cleaned)
		if err != nil {
			continue
		}
		day := time.Date(today.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC)
		if day.Before(today) {
			day = day.AddDate(1, 0, 0)
		}
		return day, true
	}
	return time.Time{}, false
}

// parseDateAndTime combines a spoken date with a wall-clock time
func parseDateAndTime(rawDate, rawTime string) (time.Time, bool) {
	day, ok := parseSchedulingDate(rawDate)
	if !ok {
		return time.Time{}, false
	}

	cleaned := strings.ToUpper(strings.TrimSpace(rawTime))
	for _, layout := range []string{"15:04", "3:04 PM", "3:04PM", "3 PM", "3PM"} {
		if parsed, err := time.Parse(layout, cleaned); err == nil {
			return time.Date(day.Year(), day.Month(), day.Day(),
				parsed.Hour(), parsed.Minute(), 0, 0, day.Location()), true
		}
	}
	return time.Time{}, false
}

func appointmentType(raw string) entities.AppointmentType {
	switch entities.AppointmentType(strings.ToLower(raw)) {
	case entities.AppointmentTypeCleaning, entities.AppointmentTypeCheckup,
		entities.AppointmentTypeEmergency, entities.AppointmentTypeConsultation,
		entities.AppointmentTypeFollowUp:
		return entities.AppointmentType(strings.ToLower(raw))
	default:
		return entities.AppointmentTypeOther
	}
}

func describeSlots(slots []*entities.AvailabilitySlot, date time.Time) string {
	if len(slots) == 0 {
		return fmt.Sprintf("I'm sorry, I don't see any openings on %s. Would another day work?", date.Format("Monday, January 2"))
	}

	shown := slots
	if len(shown) > 3 {
		shown = shown[:3]
	}
	times := make([]string, 0, len(shown))
	for _, slot := range shown {
		times = append(times, slot.StartTime.Format("3:04 PM"))
	}
	return fmt.Sprintf("On %s I have openings at %s. Would any of those work for you?",
		date.Format("Monday, January 2"), strings.Join(times, ", "))
}

func failureOutcome(reason, speech string) *voice.ToolOutcome {
	return &voice.ToolOutcome{
		Failed:        true,
		FailureReason: reason,
		Speech:        speech,
	}
}

func pendingOutcome(approval *entities.ApprovalRequest, noun string) (*voice.ToolOutcome, error) {
	result, err := json.Marshal(map[string]interface{}{
		"status":      "pending_approval",
		"approval_id": approval.ID,
	})
	if err != nil {
		return nil, err
	}
	return &voice.ToolOutcome{
		Result: result,
		Speech: fmt.Sprintf(speechPendingTemplate, noun),
	}, nil
}
