package recurring

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule is a job's parsed recurrence. It is either cron-driven (next
// occurrence computed from the expression) or a fixed interval measured
// from the end of the previous arming. The zero value is invalid.
type Schedule struct {
	cron  cron.Schedule
	every time.Duration
	raw   string
}

// Next returns the first occurrence after now.
func (s Schedule) Next(now time.Time) time.Time {
	if s.cron != nil {
		return s.cron.Next(now)
	}
	return now.Add(s.every)
}

// Interval returns the fixed interval, or false for cron schedules.
func (s Schedule) Interval() (time.Duration, bool) {
	return s.every, s.cron == nil && s.every > 0
}

func (s Schedule) String() string { return s.raw }

// hhmm matches clock-style intervals: "02:30" means every two and a half
// hours. Minutes are capped at 59; hours are not.
var hhmm = regexp.MustCompile(`^(\d{1,3}):([0-5]\d)$`)

// parseSchedule accepts the three schedule forms the config documents:
// cron expressions ("*/5 * * * *", "@hourly"), Go durations ("55m",
// "2h30m"), and HH:MM clock intervals ("02:30"). Whitespace or a leading
// '@' routes the string to the cron parser; everything else must be a
// positive interval.
func parseSchedule(p cron.Parser, raw string) (Schedule, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Schedule{}, fmt.Errorf("schedule required")
	}

	if strings.ContainsAny(s, " \t") || strings.HasPrefix(s, "@") {
		cs, err := p.Parse(s)
		if err != nil {
			return Schedule{}, fmt.Errorf("cron %q: %w", s, err)
		}
		return Schedule{cron: cs, raw: s}, nil
	}

	if m := hhmm.FindStringSubmatch(s); m != nil {
		h, _ := strconv.Atoi(m[1])
		min, _ := strconv.Atoi(m[2])
		d := time.Duration(h)*time.Hour + time.Duration(min)*time.Minute
		if d <= 0 {
			return Schedule{}, fmt.Errorf("interval %q must be > 0", s)
		}
		return Schedule{every: d, raw: s}, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return Schedule{}, fmt.Errorf(
			"invalid schedule %q (cron like '*/5 * * * *', duration like '55m', or HH:MM like '02:30')", raw)
	}
	if d <= 0 {
		return Schedule{}, fmt.Errorf("interval %q must be > 0", s)
	}
	return Schedule{every: d, raw: s}, nil
}
