package hours

import (
	"fmt"
	"time"
)

const (
	DateLayout    = "2006-01-02"
	compactLayout = "200601021504"
)

var location *time.Location = time.UTC

// SetTimezone sets the location used for calendar days (day-ahead windows, daily rollups).
func SetTimezone(timezone string) error {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return fmt.Errorf("failed to load timezone %s: %v", timezone, err)
	}
	location = loc
	return nil
}

func Location() *time.Location {
	return location
}

func TruncateHour(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}

// StartOfDay returns local midnight of the day t falls on.
func StartOfDay(t time.Time) time.Time {
	l := t.In(location)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, location)
}

// Tomorrow returns local midnight tomorrow and local midnight the day after.
func Tomorrow(now time.Time) (time.Time, time.Time) {
	today := StartOfDay(now)
	return today.AddDate(0, 0, 1), today.AddDate(0, 0, 2)
}

// Days lists the local midnights of every calendar day overlapping [start, end).
func Days(start, end time.Time) []time.Time {
	if !end.After(start) {
		return nil
	}
	var days []time.Time
	for d := StartOfDay(start); d.Before(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

func Date(t time.Time) string {
	return t.In(location).Format(DateLayout)
}

// CompactUTC formats t as yyyyMMddHHmm in UTC.
func CompactUTC(t time.Time) string {
	return t.UTC().Format(compactLayout)
}

func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func FromIso(str string) time.Time {
	t, err := time.Parse(time.RFC3339, str)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
