package models

import (
	"fmt"
	"strings"
	"time"
)

// TimeWindow is one daily activity window of a zone schedule.
// Start after End means the window runs overnight into the next day.
type TimeWindow struct {
	Days  []string `koanf:"days" json:"days,omitempty"`
	Start string   `koanf:"start" json:"start" validate:"required"`
	End   string   `koanf:"end" json:"end" validate:"required"`
}

// ZoneDefinition is a zone as written in the monitoring file
type ZoneDefinition struct {
	ID          string        `koanf:"id" json:"id" validate:"required"`
	Name        string        `koanf:"name" json:"name"`
	Polygon     [][]float64   `koanf:"polygon" json:"polygon" validate:"required,min=3,dive,len=2"`
	Active      *bool         `koanf:"active" json:"active,omitempty"`
	Sensitivity int           `koanf:"sensitivity" json:"sensitivity" validate:"gte=1"`
	Cooldown    time.Duration `koanf:"cooldown" json:"cooldown,omitempty" validate:"gte=0"`
	Schedule    []TimeWindow  `koanf:"schedule" json:"schedule,omitempty" validate:"dive"`
}

// DailyWindow is a parsed TimeWindow, minutes since midnight
type DailyWindow struct {
	Days     map[time.Weekday]bool `json:"-"`
	StartMin int                   `json:"start_min"`
	EndMin   int                   `json:"end_min"`
}

// Covers reports whether t falls inside the window
func (w DailyWindow) Covers(t time.Time) bool {
	minute := t.Hour()*60 + t.Minute()
	day := t.Weekday()
	if w.StartMin <= w.EndMin {
		return w.dayAllowed(day) && minute >= w.StartMin && minute < w.EndMin
	}
	// overnight: the tail after midnight belongs to the previous day's window
	if minute >= w.StartMin {
		return w.dayAllowed(day)
	}
	if minute < w.EndMin {
		return w.dayAllowed((day + 6) % 7)
	}
	return false
}

func (w DailyWindow) dayAllowed(d time.Weekday) bool {
	return len(w.Days) == 0 || w.Days[d]
}

// Zone is a validated monitored region
type Zone struct {
	ID          string        `json:"zone_id"`
	Name        string        `json:"name"`
	Polygon     []Point       `json:"polygon"`
	Active      bool          `json:"active"`
	Sensitivity int           `json:"sensitivity"`
	Cooldown    time.Duration `json:"cooldown,omitempty"`
	Schedule    []DailyWindow `json:"schedule,omitempty"`
}

// ActiveAt reports whether the zone is enabled and inside its schedule at t.
// A zone without schedule is active whenever enabled.
func (z Zone) ActiveAt(t time.Time) bool {
	if !z.Active {
		return false
	}
	if len(z.Schedule) == 0 {
		return true
	}
	for _, w := range z.Schedule {
		if w.Covers(t) {
			return true
		}
	}
	return false
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

// ParseWindow converts a TimeWindow into a DailyWindow
func ParseWindow(w TimeWindow) (DailyWindow, error) {
	start, err := parseClock(w.Start)
	if err != nil {
		return DailyWindow{}, fmt.Errorf("start: %w", err)
	}
	end, err := parseClock(w.End)
	if err != nil {
		return DailyWindow{}, fmt.Errorf("end: %w", err)
	}
	if start == end {
		return DailyWindow{}, fmt.Errorf("empty window %s-%s", w.Start, w.End)
	}
	dw := DailyWindow{StartMin: start, EndMin: end}
	if len(w.Days) > 0 {
		dw.Days = make(map[time.Weekday]bool, len(w.Days))
		for _, d := range w.Days {
			key := strings.ToLower(strings.TrimSpace(d))
			if len(key) > 3 {
				key = key[:3]
			}
			wd, ok := weekdays[key]
			if !ok {
				return DailyWindow{}, fmt.Errorf("unknown day %q", d)
			}
			dw.Days[wd] = true
		}
	}
	return dw, nil
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}
