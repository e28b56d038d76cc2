package escalation

import (
	"fmt"
	"strings"
	"time"

	"facility-maintenance/internal/entities"
)

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

// Calendar measures how much of an interval falls inside working hours.
type Calendar struct {
	loc   *time.Location
	start time.Duration
	end   time.Duration
	days  map[time.Weekday]bool
}

// ParseWorkingHours builds a Calendar from settings. End must be after start;
// shifts spanning midnight are not supported.
func ParseWorkingHours(wh entities.WorkingHours) (Calendar, error) {
	loc, err := time.LoadLocation(wh.Timezone)
	if err != nil {
		return Calendar{}, fmt.Errorf("%w: timezone %q: %v", entities.ErrInvalidSettings, wh.Timezone, err)
	}
	start, err := clock(wh.Start)
	if err != nil {
		return Calendar{}, err
	}
	end, err := clock(wh.End)
	if err != nil {
		return Calendar{}, err
	}
	if end <= start {
		return Calendar{}, fmt.Errorf("%w: working hours end %s must be after start %s", entities.ErrInvalidSettings, wh.End, wh.Start)
	}
	if len(wh.Days) == 0 {
		return Calendar{}, fmt.Errorf("%w: at least one working day is required", entities.ErrInvalidSettings)
	}
	days := make(map[time.Weekday]bool, len(wh.Days))
	for _, d := range wh.Days {
		wd, ok := weekdays[strings.ToLower(strings.TrimSpace(d))]
		if !ok {
			return Calendar{}, fmt.Errorf("%w: unknown working day %q", entities.ErrInvalidSettings, d)
		}
		days[wd] = true
	}
	return Calendar{loc: loc, start: start, end: end, days: days}, nil
}

func clock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: working hours time %q must be HH:MM", entities.ErrInvalidSettings, s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// WorkingTime returns the part of [from, to) that lies inside working hours.
func (c Calendar) WorkingTime(from, to time.Time) time.Duration {
	if !to.After(from) {
		return 0
	}
	from = from.In(c.loc)
	to = to.In(c.loc)

	var total time.Duration
	day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, c.loc)
	for !day.After(to) {
		if c.days[day.Weekday()] {
			// Wall-clock minutes, so DST days keep their local window.
			ws := time.Date(day.Year(), day.Month(), day.Day(), 0, int(c.start/time.Minute), 0, 0, c.loc)
			we := time.Date(day.Year(), day.Month(), day.Day(), 0, int(c.end/time.Minute), 0, 0, c.loc)
			total += overlap(from, to, ws, we)
		}
		day = time.Date(day.Year(), day.Month(), day.Day()+1, 0, 0, 0, 0, c.loc)
	}
	return total
}

func overlap(aStart, aEnd, bStart, bEnd time.Time) time.Duration {
	start := aStart
	if bStart.After(start) {
		start = bStart
	}
	end := aEnd
	if bEnd.Before(end) {
		end = bEnd
	}
	if !end.After(start) {
		return 0
	}
	return end.Sub(start)
}

// ValidateLevels checks that thresholds are positive and strictly increasing.
func ValidateLevels(levels []entities.EscalationLevel) error {
	prev := 0
	for i, l := range levels {
		if l.ThresholdMinutes <= 0 {
			return fmt.Errorf("%w: escalation level %d threshold must be positive", entities.ErrInvalidSettings, i+1)
		}
		if l.ThresholdMinutes <= prev {
			return fmt.Errorf("%w: escalation thresholds must be strictly increasing (level %d: %d <= %d)",
				entities.ErrInvalidSettings, i+1, l.ThresholdMinutes, prev)
		}
		prev = l.ThresholdMinutes
	}
	return nil
}
