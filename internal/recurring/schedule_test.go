package recurring

import (
	"testing"
	"time"

	"github.com/robfig/cron/v3"
)

func testParser() cron.Parser {
	return cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
}

func TestParseScheduleVariants(t *testing.T) {
	t.Parallel()
	parser := testParser()

	tests := []struct {
		name  string
		raw   string
		every time.Duration // 0 means cron-driven
	}{
		{name: "cron", raw: "*/5 * * * *"},
		{name: "descriptor", raw: "@hourly"},
		{name: "every descriptor", raw: "@every 55m"},
		{name: "duration", raw: "10m", every: 10 * time.Minute},
		{name: "compound duration", raw: "2h30m", every: 2*time.Hour + 30*time.Minute},
		{name: "clock interval", raw: "01:30", every: 90 * time.Minute},
		{name: "padded", raw: "  45s  ", every: 45 * time.Second},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSchedule(parser, tt.raw)
			if err != nil {
				t.Fatalf("parseSchedule(%q): %v", tt.raw, err)
			}
			every, isInterval := got.Interval()
			if tt.every == 0 {
				if isInterval {
					t.Fatalf("parseSchedule(%q) produced an interval, want cron", tt.raw)
				}
			} else if !isInterval || every != tt.every {
				t.Fatalf("Interval() = (%v, %v), want (%v, true)", every, isInterval, tt.every)
			}

			now := time.Now()
			if next := got.Next(now); !next.After(now) {
				t.Fatalf("Next(%v) = %v, not in the future", now, next)
			}
		})
	}
}

func TestParseScheduleIntervalPhase(t *testing.T) {
	t.Parallel()
	s, err := parseSchedule(testParser(), "10m")
	if err != nil {
		t.Fatalf("parseSchedule: %v", err)
	}
	now := time.Now()
	if got := s.Next(now); got != now.Add(10*time.Minute) {
		t.Fatalf("Next = %v, want exactly now+10m", got)
	}
}

func TestParseScheduleInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "whenever", "00:00", "00:77", "-5m", "* * *"} {
		if _, err := parseSchedule(testParser(), raw); err == nil {
			t.Fatalf("parseSchedule(%q): expected error", raw)
		}
	}
}
