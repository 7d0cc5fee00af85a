package ledger

import (
	"fmt"
	"time"
)

// WeekPeriod returns the ISO week id ("2025-07") containing atUnixUTC in location.
func WeekPeriod(atUnixUTC int64, location *time.Location) string {
	year, week := time.Unix(atUnixUTC, 0).In(locationOrUTC(location)).ISOWeek()
	return fmt.Sprintf("%04d%s%02d", year, isoWeekPeriodSeparator, week)
}

// StartOfNextWeek returns Monday 00:00 of the ISO week after the one containing atUnixUTC.
func StartOfNextWeek(atUnixUTC int64, location *time.Location) int64 {
	local := time.Unix(atUnixUTC, 0).In(locationOrUTC(location))
	daysSinceMonday := (int(local.Weekday()) + 6) % daysPerWeek
	monday := time.Date(local.Year(), local.Month(), local.Day()-daysSinceMonday, 0, 0, 0, 0, local.Location())
	return monday.AddDate(0, 0, daysPerWeek).Unix()
}

// LoadLocation resolves an IANA zone name, falling back to Europe/London for empty input.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		name = defaultClaimTimeZone
	}
	location, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: time zone %q: %v", ErrInvalidServiceConfig, name, err)
	}
	return location, nil
}

func locationOrUTC(location *time.Location) *time.Location {
	if location == nil {
		return time.UTC
	}
	return location
}
