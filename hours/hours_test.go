package hours

import (
	"testing"
	"time"
)

func TestTruncateHour(t *testing.T) {
	in := time.Date(2025, 1, 1, 10, 42, 13, 5, time.UTC)
	expected := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	if got := TruncateHour(in); !got.Equal(expected) {
		t.Errorf("TruncateHour() expected %v, got %v", expected, got)
	}
}

func TestTomorrow(t *testing.T) {
	tests := []struct {
		name          string
		timezone      string
		now           time.Time
		expectedStart time.Time
		expectedEnd   time.Time
	}{
		{
			name:          "utc",
			timezone:      "UTC",
			now:           time.Date(2025, 3, 10, 14, 5, 0, 0, time.UTC),
			expectedStart: time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC),
			expectedEnd:   time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC),
		},
		{
			name:          "berlin late evening utc is already next day",
			timezone:      "Europe/Berlin",
			now:           time.Date(2025, 3, 10, 23, 30, 0, 0, time.UTC),
			expectedStart: time.Date(2025, 3, 11, 23, 0, 0, 0, time.UTC),
			expectedEnd:   time.Date(2025, 3, 12, 23, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := SetTimezone(tt.timezone); err != nil {
				t.Fatalf("SetTimezone() failed: %v", err)
			}
			defer SetTimezone("UTC")

			start, end := Tomorrow(tt.now)
			if !start.Equal(tt.expectedStart) {
				t.Errorf("Tomorrow() start expected %v, got %v", tt.expectedStart, start.UTC())
			}
			if !end.Equal(tt.expectedEnd) {
				t.Errorf("Tomorrow() end expected %v, got %v", tt.expectedEnd, end.UTC())
			}
		})
	}
}

func TestDays(t *testing.T) {
	tests := []struct {
		name     string
		start    time.Time
		end      time.Time
		expected []string
	}{
		{
			name:     "window spanning three days",
			start:    time.Date(2025, 3, 10, 22, 0, 0, 0, time.UTC),
			end:      time.Date(2025, 3, 12, 22, 0, 0, 0, time.UTC),
			expected: []string{"2025-03-10", "2025-03-11", "2025-03-12"},
		},
		{
			name:     "end at midnight is exclusive",
			start:    time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
			end:      time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC),
			expected: []string{"2025-03-10"},
		},
		{
			name:  "empty window",
			start: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			days := Days(tt.start, tt.end)
			if len(days) != len(tt.expected) {
				t.Fatalf("Days() expected %d days, got %d", len(tt.expected), len(days))
			}
			for i, d := range days {
				if got := Date(d); got != tt.expected[i] {
					t.Errorf("Days()[%d] expected %q, got %q", i, tt.expected[i], got)
				}
			}
		})
	}
}

func TestCompactUTC(t *testing.T) {
	in := time.Date(2025, 3, 10, 23, 0, 0, 0, time.FixedZone("CET", 3600))
	expected := "202503102200"
	if s := CompactUTC(in); s != expected {
		t.Errorf("CompactUTC() expected %q, got %q", expected, s)
	}
}

func TestFromMillis(t *testing.T) {
	expected := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	if got := FromMillis(expected.UnixMilli()); !got.Equal(expected) {
		t.Errorf("FromMillis() expected %v, got %v", expected, got)
	}
}

func TestFromIso(t *testing.T) {
	if got := FromIso("not a time"); !got.IsZero() {
		t.Errorf("FromIso() expected zero time, got %v", got)
	}
	expected := time.Date(2025, 3, 10, 11, 0, 0, 0, time.UTC)
	if got := FromIso("2025-03-10T12:00:00+01:00"); !got.Equal(expected) {
		t.Errorf("FromIso() expected %v, got %v", expected, got)
	}
}
