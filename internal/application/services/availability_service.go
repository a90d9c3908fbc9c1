package services

import (
	"context"
	"sort"
	"time"

	"github.com/crowndesk/receptionist/internal/domain/entities"
	"github.com/crowndesk/receptionist/internal/domain/repositories"
	"github.com/crowndesk/receptionist/pkg/config"
)

// AvailabilityService computes bookable slots from configured working hours
// and existing blocking appointments. Slots are computed, never stored.
type AvailabilityService struct {
	providers    repositories.ProviderRepository
	appointments repositories.AppointmentRepository
	cfg          *config.VoiceConfig
}

// NewAvailabilityService creates a new availability service
func NewAvailabilityService(providers repositories.ProviderRepository, appointments repositories.AppointmentRepository, cfg *config.VoiceConfig) *AvailabilityService {
	return &AvailabilityService{
		providers:    providers,
		appointments: appointments,
		cfg:          cfg,
	}
}

// FindSlots returns the open slots of the requested duration on a date.
// An empty providerID unions the slots of every active provider, sorted by
// start time with provider id as the tie-break.
func (s *AvailabilityService) FindSlots(ctx context.Context, tenantID, providerID string, date time.Time, durationMinutes int) ([]*entities.AvailabilitySlot, error) {
	if durationMinutes <= 0 {
		durationMinutes = s.cfg.DefaultSlotMinutes
	}
	duration := time.Duration(durationMinutes) * time.Minute

	var candidates []*entities.Provider
	if providerID != "" {
		provider, err := s.providers.GetByID(ctx, tenantID, providerID)
		if err != nil {
			return nil, err
		}
		candidates = []*entities.Provider{provider}
	} else {
		var err error
		candidates, err = s.providers.ListActive(ctx, tenantID)
		if err != nil {
			return nil, err
		}
	}

	var slots []*entities.AvailabilitySlot
	for _, provider := range candidates {
		providerSlots, err := s.providerSlots(ctx, tenantID, provider, date, duration)
		if err != nil {
			return nil, err
		}
		slots = append(slots, providerSlots...)
	}

	sort.Slice(slots, func(i, j int) bool {
		if !slots[i].StartTime.Equal(slots[j].StartTime) {
			return slots[i].StartTime.Before(slots[j].StartTime)
		}
		return slots[i].ProviderID < slots[j].ProviderID
	})

	return slots, nil
}

// providerSlots generates candidate slots across one provider's working
// window and discards any that overlap a blocking appointment. Candidates
// step on the configured grid regardless of the requested duration.
func (s *AvailabilityService) providerSlots(ctx context.Context, tenantID string, provider *entities.Provider, date time.Time, duration time.Duration) ([]*entities.AvailabilitySlot, error) {
	windowStart, windowEnd, ok := provider.WorkingHours.WindowOn(date)
	if !ok {
		return nil, nil
	}

	booked, err := s.appointments.ListBlocking(ctx, tenantID, provider.ID, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}

	step := time.Duration(s.cfg.SlotStepMinutes) * time.Minute
	var slots []*entities.AvailabilitySlot

	for start := windowStart; !start.Add(duration).After(windowEnd); start = start.Add(step) {
		end := start.Add(duration)

		conflict := false
		for _, appointment := range booked {
			if appointment.StartTime.Before(end) && start.Before(appointment.EndTime) {
				conflict = true
				break
			}
		}
		if conflict {
			continue
		}

		slots = append(slots, &entities.AvailabilitySlot{
			ProviderID:   provider.ID,
			ProviderName: provider.FullName(),
			StartTime:    start,
			EndTime:      end,
		})
	}

	return slots, nil
}
