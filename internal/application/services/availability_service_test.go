package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/crowndesk/receptionist/internal/application/services"
	"github.com/crowndesk/receptionist/internal/domain/entities"
	"github.com/crowndesk/receptionist/pkg/config"
)

func availabilityConfig() *config.VoiceConfig {
	return &config.VoiceConfig{
		SlotStepMinutes:    30,
		DefaultSlotMinutes: 30,
	}
}

// monday returns a fixed Monday so weekday-keyed working hours resolve
func monday() time.Time {
	return time.Date(2026, time.September, 7, 0, 0, 0, 0, time.UTC)
}

func at(day time.Time, hour, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location())
}

func drPatel() *entities.Provider {
	return &entities.Provider{
		ID:        "prov-1",
		TenantID:  "tenant-1",
		FirstName: "Anita",
		LastName:  "Patel",
		IsActive:  true,
		WorkingHours: entities.WeeklyHours{
			"monday": {Start: "09:00", End: "11:00"},
		},
	}
}

func TestAvailability_SkipsSlotsOverlappingAppointments(t *testing.T) {
	providers := new(MockProviderRepository)
	appointments := new(MockAppointmentRepository)
	svc := services.NewAvailabilityService(providers, appointments, availabilityConfig())

	day := monday()
	providers.On("GetByID", mock.Anything, "tenant-1", "prov-1").Return(drPatel(), nil)
	appointments.On("ListBlocking", mock.Anything, "tenant-1", "prov-1", at(day, 9, 0), at(day, 11, 0)).
		Return([]*entities.Appointment{
			{ID: "appt-1", ProviderID: "prov-1", StartTime: at(day, 9, 30), EndTime: at(day, 10, 30)},
		}, nil)

	slots, err := svc.FindSlots(context.Background(), "tenant-1", "prov-1", day, 30)

	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, at(day, 9, 0), slots[0].StartTime)
	assert.Equal(t, at(day, 9, 30), slots[0].EndTime)
	assert.Equal(t, at(day, 10, 30), slots[1].StartTime)
	assert.Equal(t, at(day, 11, 0), slots[1].EndTime)
	assert.Equal(t, "Anita Patel", slots[0].ProviderName)
}

func TestAvailability_SlotsNeverExtendPastWorkingHours(t *testing.T) {
	providers := new(MockProviderRepository)
	appointments := new(MockAppointmentRepository)
	svc := services.NewAvailabilityService(providers, appointments, availabilityConfig())

	day := monday()
	providers.On("GetByID", mock.Anything, "tenant-1", "prov-1").Return(drPatel(), nil)
	appointments.On("ListBlocking", mock.Anything, "tenant-1", "prov-1", at(day, 9, 0), at(day, 11, 0)).
		Return([]*entities.Appointment{}, nil)

	slots, err := svc.FindSlots(context.Background(), "tenant-1", "prov-1", day, 90)

	require.NoError(t, err)
	// 90 minutes only fits starting at 09:00 or 09:30 within a 2h window
	require.Len(t, slots, 2)
	assert.Equal(t, at(day, 9, 0), slots[0].StartTime)
	assert.Equal(t, at(day, 9, 30), slots[1].StartTime)
	for _, slot := range slots {
		assert.False(t, slot.EndTime.After(at(day, 11, 0)))
	}
}

func TestAvailability_BackToBackAppointmentsDoNotConflict(t *testing.T) {
	providers := new(MockProviderRepository)
	appointments := new(MockAppointmentRepository)
	svc := services.NewAvailabilityService(providers, appointments, availabilityConfig())

	day := monday()
	providers.On("GetByID", mock.Anything, "tenant-1", "prov-1").Return(drPatel(), nil)
	// Booked 09:00-10:00; a slot starting exactly at 10:00 touches but does
	// not overlap
	appointments.On("ListBlocking", mock.Anything, "tenant-1", "prov-1", at(day, 9, 0), at(day, 11, 0)).
		Return([]*entities.Appointment{
			{ID: "appt-1", ProviderID: "prov-1", StartTime: at(day, 9, 0), EndTime: at(day, 10, 0)},
		}, nil)

	slots, err := svc.FindSlots(context.Background(), "tenant-1", "prov-1", day, 30)

	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, at(day, 10, 0), slots[0].StartTime)
	assert.Equal(t, at(day, 10, 30), slots[1].StartTime)
}

func TestAvailability_DayOffYieldsNoSlots(t *testing.T) {
	providers := new(MockProviderRepository)
	appointments := new(MockAppointmentRepository)
	svc := services.NewAvailabilityService(providers, appointments, availabilityConfig())

	sunday := monday().AddDate(0, 0, -1)
	providers.On("GetByID", mock.Anything, "tenant-1", "prov-1").Return(drPatel(), nil)

	slots, err := svc.FindSlots(context.Background(), "tenant-1", "prov-1", sunday, 30)

	require.NoError(t, err)
	assert.Empty(t, slots)
	appointments.AssertNotCalled(t, "ListBlocking", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAvailability_AnyProviderUnionSortsByStartThenProvider(t *testing.T) {
	providers := new(MockProviderRepository)
	appointments := new(MockAppointmentRepository)
	svc := services.NewAvailabilityService(providers, appointments, availabilityConfig())

	day := monday()
	patel := drPatel()
	okafor := &entities.Provider{
		ID:        "prov-2",
		TenantID:  "tenant-1",
		FirstName: "Chidi",
		LastName:  "Okafor",
		IsActive:  true,
		WorkingHours: entities.WeeklyHours{
			"monday": {Start: "09:00", End: "10:00"},
		},
	}

	providers.On("ListActive", mock.Anything, "tenant-1").Return([]*entities.Provider{okafor, patel}, nil)
	appointments.On("ListBlocking", mock.Anything, "tenant-1", "prov-1", at(day, 9, 0), at(day, 11, 0)).
		Return([]*entities.Appointment{}, nil)
	appointments.On("ListBlocking", mock.Anything, "tenant-1", "prov-2", at(day, 9, 0), at(day, 10, 0)).
		Return([]*entities.Appointment{}, nil)

	slots, err := svc.FindSlots(context.Background(), "tenant-1", "", day, 60)

	require.NoError(t, err)
	// prov-1 fits starts at 09:00, 09:30 and 10:00; prov-2 only 09:00
	require.Len(t, slots, 4)
	assert.Equal(t, "prov-1", slots[0].ProviderID)
	assert.Equal(t, at(day, 9, 0), slots[0].StartTime)
	assert.Equal(t, "prov-2", slots[1].ProviderID)
	assert.Equal(t, at(day, 9, 0), slots[1].StartTime)
	assert.Equal(t, "prov-1", slots[2].ProviderID)
	assert.Equal(t, at(day, 9, 30), slots[2].StartTime)
	assert.Equal(t, "prov-1", slots[3].ProviderID)
	assert.Equal(t, at(day, 10, 0), slots[3].StartTime)
}

func TestAvailability_ZeroDurationFallsBackToDefault(t *testing.T) {
	providers := new(MockProviderRepository)
	appointments := new(MockAppointmentRepository)
	svc := services.NewAvailabilityService(providers, appointments, availabilityConfig())

	day := monday()
	providers.On("GetByID", mock.Anything, "tenant-1", "prov-1").Return(drPatel(), nil)
	appointments.On("ListBlocking", mock.Anything, "tenant-1", "prov-1", at(day, 9, 0), at(day, 11, 0)).
		Return([]*entities.Appointment{}, nil)

	slots, err := svc.FindSlots(context.Background(), "tenant-1", "prov-1", day, 0)

	require.NoError(t, err)
	require.Len(t, slots, 4)
	assert.Equal(t, 30*time.Minute, slots[0].EndTime.Sub(slots[0].StartTime))
}
