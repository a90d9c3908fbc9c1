package entities

import (
	"fmt"
	"strings"
	"time"
)

// DayHours is one weekday's working window, as "HH:MM" wall-clock strings
type DayHours struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// WeeklyHours maps lowercase weekday names ("monday", ...) to working
// windows. A missing day means the provider does not work that day.
type WeeklyHours map[string]DayHours

// Provider represents a practitioner who can be booked for appointments
type Provider struct {
	ID           string      `json:"id" db:"id"`
	TenantID     string      `json:"tenant_id" db:"tenant_id"`
	FirstName    string      `json:"first_name" db:"first_name"`
	LastName     string      `json:"last_name" db:"last_name"`
	IsActive     bool        `json:"is_active" db:"is_active"`
	WorkingHours WeeklyHours `json:"working_hours" db:"working_hours"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at" db:"updated_at"`
}

// FullName returns the provider's display name
func (p *Provider) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// WindowOn resolves the provider's working window for a given date, in the
// date's location. Returns ok=false when the provider does not work that day
// or the configured hours cannot be parsed.
func (h WeeklyHours) WindowOn(date time.Time) (start, end time.Time, ok bool) {
	day := strings.ToLower(date.Weekday().String())
	entry, found := h[day]
	if !found {
		return time.Time{}, time.Time{}, false
	}

	start, err := combineDayTime(date, entry.Start)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	end, err = combineDayTime(date, entry.End)
	if err != nil || !end.After(start) {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

func combineDayTime(date time.Time, clock string) (time.Time, error) {
	parsed, err := time.Parse("15:04", strings.TrimSpace(clock))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid working-hours value %q: %w", clock, err)
	}
	return time.Date(
		date.Year(), date.Month(), date.Day(),
		parsed.Hour(), parsed.Minute(), 0, 0, date.Location(),
	), nil
}
