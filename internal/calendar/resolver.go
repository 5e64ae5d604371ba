package calendar

import (
	"time"
)

// DefaultTimezone is the exchange timezone snapshots are dated in.
const DefaultTimezone = "Asia/Kolkata"

// istOffset is used when the zoneinfo database is not available.
var istOffset = time.FixedZone("IST", 5*3600+30*60)

// LoadLocation loads the named timezone, falling back to a fixed +05:30 zone.
// The boolean reports whether the fallback was used.
func LoadLocation(name string) (*time.Location, bool) {
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return istOffset, true
	}
	return loc, false
}

// ResolveTargetDate returns the trading date a run at now is responsible for.
// Weekdays map to themselves, Saturday and Sunday to the preceding Friday.
// Exchange holidays are not modelled.
func ResolveTargetDate(now time.Time, loc *time.Location) Date {
	if loc == nil {
		loc = istOffset
	}
	d := FromTime(now.In(loc))
	switch d.Weekday() {
	case time.Saturday:
		return d.Add(-1)
	case time.Sunday:
		return d.Add(-2)
	}
	return d
}

// Range returns every date from start to end inclusive.
func Range(start, end Date) []Date {
	if end.Before(start) {
		return nil
	}
	var out []Date
	for d := start; !d.After(end); d = d.Add(1) {
		out = append(out, d)
	}
	return out
}
