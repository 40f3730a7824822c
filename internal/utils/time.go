package contextutils

import (
	"time"
	_ "time/tzdata" // zone data for hosts without a system database
)

// TimeInTimezone converts t to the named IANA zone and returns the effective
// zone name. Unknown or empty zones fall back to UTC.
func TimeInTimezone(t time.Time, timezone string) (time.Time, string) {
	if timezone == "" {
		return t.UTC(), "UTC"
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return t.UTC(), "UTC"
	}

	return t.In(loc), timezone
}

// DateStamp formats t as YYYY-MM-DD in the named zone
func DateStamp(t time.Time, timezone string) string {
	local, _ := TimeInTimezone(t, timezone)
	return local.Format("2006-01-02")
}
