package utils

import "time"

// DateLayout is the YYYY-MM-DD wire format used by the rate provider.
const DateLayout = "2006-01-02"

// FormatDate renders a time as YYYY-MM-DD in UTC.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD date string as UTC midnight.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// TrailingWindow returns the (start, end) date bounds for a trailing
// window of the given number of days ending today (UTC).
func TrailingWindow(days int) (time.Time, time.Time) {
	end := time.Now().UTC().Truncate(24 * time.Hour)
	start := end.AddDate(0, 0, -days)
	return start, end
}
