package entities

import (
	"time"
)

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusNoShow    AppointmentStatus = "no_show"
)

// AppointmentType classifies the kind of visit
type AppointmentType string

const (
	AppointmentTypeCleaning     AppointmentType = "cleaning"
	AppointmentTypeCheckup      AppointmentType = "checkup"
	AppointmentTypeEmergency    AppointmentType = "emergency"
	AppointmentTypeConsultation AppointmentType = "consultation"
	AppointmentTypeFollowUp     AppointmentType = "follow_up"
	AppointmentTypeOther        AppointmentType = "other"
)

// Appointment represents a scheduled appointment within a tenant
type Appointment struct {
	ID         string            `json:"id" db:"id"`
	TenantID   string            `json:"tenant_id" db:"tenant_id"`
	PatientID  string            `json:"patient_id" db:"patient_id"`
	ProviderID string            `json:"provider_id" db:"provider_id"`
	StartTime  time.Time         `json:"start_time" db:"start_time"`
	EndTime    time.Time         `json:"end_time" db:"end_time"`
	Type       AppointmentType   `json:"type" db:"type"`
	Status     AppointmentStatus `json:"status" db:"status"`
	Notes      string            `json:"notes" db:"notes"`
	CreatedAt  time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at" db:"updated_at"`
}

// Blocks reports whether the appointment still occupies its slot
func (a *Appointment) Blocks() bool {
	return a.Status != AppointmentStatusCancelled && a.Status != AppointmentStatusNoShow
}

// AvailabilitySlot is a computed (never stored) bookable interval for a
// provider. Intervals are half-open: [StartTime, EndTime).
type AvailabilitySlot struct {
	ProviderID   string    `json:"provider_id"`
	ProviderName string    `json:"provider_name"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
}

// Overlaps applies the half-open interval test against another interval
func (s AvailabilitySlot) Overlaps(start, end time.Time) bool {
	return s.StartTime.Before(end) && start.Before(s.EndTime)
}
