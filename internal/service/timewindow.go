package service

import (
	"time"
)

// The scheduling domain operates in a single fixed timezone (WIB, UTC+7);
// dates and times submitted by clients are wall-clock values in that zone.
var TimeZoneWIB = time.FixedZone("Asia/Jakarta", 7*60*60)

// TimeZoneName is the IANA name sent to the calendar provider.
const TimeZoneName = "Asia/Jakarta"

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// TimeWindow is a validated exam slot: a calendar day plus absolute start and
// end instants on that day.
type TimeWindow struct {
	Date  time.Time
	Start time.Time
	End   time.Time
}

// ResolveTimeWindow parses and validates a proposed (date, start, end) triple
// against the reference time `now`. On failure it returns nil and a map of
// per-field messages keyed by "date", "start" or "end".
func ResolveTimeWindow(dateStr, startStr, endStr string, now time.Time) (*TimeWindow, map[string][]string) {
	fields := map[string][]string{}

	date, err := time.ParseInLocation(dateLayout, dateStr, TimeZoneWIB)
	if err != nil {
		fields["date"] = append(fields["date"], "date must be in YYYY-MM-DD format")
	}

	start, err := time.ParseInLocation(timeLayout, startStr, TimeZoneWIB)
	if err != nil {
		fields["start"] = append(fields["start"], "start time must be in HH:MM format")
	}

	end, err := time.ParseInLocation(timeLayout, endStr, TimeZoneWIB)
	if err != nil {
		fields["end"] = append(fields["end"], "end time must be in HH:MM format")
	}

	if len(fields) > 0 {
		return nil, fields
	}

	today := now.In(TimeZoneWIB)
	today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, TimeZoneWIB)
	if date.Before(today) {
		fields["date"] = append(fields["date"], "date must not be in the past")
	}

	startAt := time.Date(date.Year(), date.Month(), date.Day(), start.Hour(), start.Minute(), 0, 0, TimeZoneWIB)
	endAt := time.Date(date.Year(), date.Month(), date.Day(), end.Hour(), end.Minute(), 0, 0, TimeZoneWIB)
	if !endAt.After(startAt) {
		fields["end"] = append(fields["end"], "end time must be after start time")
	}

	if len(fields) > 0 {
		return nil, fields
	}

	return &TimeWindow{Date: date, Start: startAt, End: endAt}, nil
}
