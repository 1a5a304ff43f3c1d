package runtime

import (
	"testing"
	"time"
)

func TestParseSchedule(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		schedule string
		wantNext time.Time
	}{
		{"five field cron", "*/15 * * * *", base.Add(15 * time.Minute)},
		{"six field cron", "0 */15 * * * *", base.Add(15 * time.Minute)},
		{"descriptor", "@hourly", base.Add(time.Hour)},
		{"duration", "30m", base.Add(30 * time.Minute)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sched, err := ParseSchedule(tt.schedule)
			if err != nil {
				t.Fatalf("ParseSchedule(%q): %v", tt.schedule, err)
			}
			if got := sched.Next(base); !got.Equal(tt.wantNext) {
				t.Errorf("Next(%v) = %v, want %v", base, got, tt.wantNext)
			}
		})
	}
}

func TestParseSchedule_Invalid(t *testing.T) {
	for _, schedule := range []string{"", "not a schedule", "every day"} {
		if _, err := ParseSchedule(schedule); err == nil {
			t.Errorf("ParseSchedule(%q): expected error", schedule)
		}
	}
}
