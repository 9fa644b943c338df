package availability

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Schedule is a tenant's weekly availability configuration: a timezone plus
// per-weekday lists of disjoint time windows during which interpreter calls
// may be requested.
//
// Weekday keys are lowercase three-letter names ("mon".."sun"). Windows use
// "HH:MM" wall-clock times in the schedule's timezone; a window whose start
// is later than its end wraps past midnight.
type Schedule struct {
	TenantID string              `json:"tenant_id"`
	Timezone string              `json:"timezone"`
	Windows  map[string][]Window `json:"windows"`

	UpdatedAt time.Time `json:"updated_at"`
}

type Window struct {
	Start string `json:"start"` // "HH:MM"
	End   string `json:"end"`   // "HH:MM"
}

// Contains reports whether now (already in the schedule's timezone) falls
// inside any window configured for now's weekday. Malformed windows are
// skipped; they never make an otherwise-valid schedule error out.
func (s Schedule) Contains(now time.Time) bool {
	day := strings.ToLower(now.Weekday().String()[:3])
	nowMinutes := now.Hour()*60 + now.Minute()

	for _, w := range s.Windows[day] {
		startH, startM, ok := parseHHMM(w.Start)
		if !ok {
			continue
		}
		endH, endM, ok := parseHHMM(w.End)
		if !ok {
			continue
		}

		start := startH*60 + startM
		end := endH*60 + endM

		// Overnight ranges (e.g. 22:00-06:00) wrap past midnight.
		if start > end {
			if nowMinutes >= start || nowMinutes < end {
				return true
			}
			continue
		}
		if nowMinutes >= start && nowMinutes < end {
			return true
		}
	}
	return false
}

// Location resolves the schedule's timezone, defaulting to UTC when unset.
func (s Schedule) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(s.Timezone)
}

// Validate rejects schedules that could never admit a request or that carry
// unparseable windows. Used on admin writes; reads stay permissive.
func (s Schedule) Validate() error {
	if s.TenantID == "" {
		return fmt.Errorf("availability: tenant_id required")
	}
	if _, err := s.Location(); err != nil {
		return fmt.Errorf("availability: invalid timezone %q: %w", s.Timezone, err)
	}
	for day, windows := range s.Windows {
		if !validDay(day) {
			return fmt.Errorf("availability: invalid weekday %q", day)
		}
		for _, w := range windows {
			if _, _, ok := parseHHMM(w.Start); !ok {
				return fmt.Errorf("availability: invalid start %q for %s", w.Start, day)
			}
			if _, _, ok := parseHHMM(w.End); !ok {
				return fmt.Errorf("availability: invalid end %q for %s", w.End, day)
			}
		}
	}
	return nil
}

// parseWindows decodes the stored windows JSON. A decode failure is reported
// to the caller so the gate can treat the tenant as unavailable.
func parseWindows(raw string) (map[string][]Window, error) {
	var windows map[string][]Window
	if err := json.Unmarshal([]byte(raw), &windows); err != nil {
		return nil, err
	}
	return windows, nil
}

func parseHHMM(s string) (int, int, bool) {
	var h, m int
	n, err := fmt.Sscanf(s, "%d:%d", &h, &m)
	if err != nil || n != 2 {
		return 0, 0, false
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, false
	}
	return h, m, true
}

func validDay(day string) bool {
	switch day {
	case "mon", "tue", "wed", "thu", "fri", "sat", "sun":
		return true
	default:
		return false
	}
}
