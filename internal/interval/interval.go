// Package interval resolves wall-clock event boundaries against an IANA
// timezone into absolute UTC instants.
package interval

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	ErrInvalidInterval  = errors.New("end time must be after start time")
)

// Accepted combined-stamp layouts without an explicit offset. Stamps with an
// offset are parsed as RFC3339 and taken as absolute.
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// Normalize composes each date+clock pair into a wall-clock moment, resolves
// it against zone and returns the two instants in UTC with millisecond
// precision. Either boundary may arrive as a single combined stamp in date
// with an empty clock. Ordering of the pair is not checked here; callers run
// ValidateOrdering as an explicit step.
func Normalize(startDate, startTime, endDate, endTime, zone string) (time.Time, time.Time, error) {
	start, err := Resolve(startDate, startTime, zone)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := Resolve(endDate, endTime, zone)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

// Resolve turns one date+clock pair (or a combined stamp in date) into a UTC
// instant. Local times that do not exist in zone because of a forward DST
// jump are rejected; ambiguous times from a backward jump resolve to the
// instant time.Date yields, which is deterministic for a zone database
// version.
func Resolve(date, clock, zone string) (time.Time, error) {
	loc, err := loadZone(zone)
	if err != nil {
		return time.Time{}, err
	}

	if clock == "" {
		return resolveStamp(date, loc)
	}

	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: %w", date, ErrInvalidTimestamp)
	}
	h, m, s, err := parseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return compose(day.Year(), day.Month(), day.Day(), h, m, s, loc)
}

// ValidateOrdering requires the end instant to strictly follow the start
// instant; equal instants are rejected.
func ValidateOrdering(start, end time.Time) error {
	if !end.After(start) {
		return fmt.Errorf("start %s, end %s: %w",
			start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339), ErrInvalidInterval)
	}
	return nil
}

// CheckZone verifies the zone identifier resolves in the IANA database.
func CheckZone(zone string) error {
	_, err := loadZone(zone)
	return err
}

// InZone shifts an instant into the named zone for display.
func InZone(t time.Time, zone string) (time.Time, error) {
	loc, err := loadZone(zone)
	if err != nil {
		return time.Time{}, err
	}
	return t.In(loc), nil
}

func loadZone(zone string) (*time.Location, error) {
	if zone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", zone, ErrInvalidTimestamp)
	}
	return loc, nil
}

func resolveStamp(stamp string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, stamp); err == nil {
		return t.UTC().Truncate(time.Millisecond), nil
	}
	for _, layout := range localLayouts {
		t, err := time.Parse(layout, stamp)
		if err != nil {
			continue
		}
		return compose(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), loc)
	}
	if t, err := time.Parse("2006-01-02", stamp); err == nil {
		return compose(t.Year(), t.Month(), t.Day(), 0, 0, 0, loc)
	}
	return time.Time{}, fmt.Errorf("timestamp %q: %w", stamp, ErrInvalidTimestamp)
}

func parseClock(clock string) (int, int, int, error) {
	layout := "15:04"
	if strings.Count(clock, ":") == 2 {
		layout = "15:04:05"
	}
	t, err := time.Parse(layout, clock)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("time %q: %w", clock, ErrInvalidTimestamp)
	}
	return t.Hour(), t.Minute(), t.Second(), nil
}

// compose builds the wall-clock moment in loc. time.Date normalizes clocks
// that fall into a DST gap, so a changed field after construction means the
// requested local time never occurred in that zone.
func compose(year int, month time.Month, day, hour, min, sec int, loc *time.Location) (time.Time, error) {
	t := time.Date(year, month, day, hour, min, sec, 0, loc)
	if t.Year() != year || t.Month() != month || t.Day() != day ||
		t.Hour() != hour || t.Minute() != min || t.Second() != sec {
		return time.Time{}, fmt.Errorf("local time %04d-%02d-%02dT%02d:%02d:%02d does not exist in %s: %w",
			year, month, day, hour, min, sec, loc, ErrInvalidTimestamp)
	}
	return t.UTC().Truncate(time.Millisecond), nil
}
