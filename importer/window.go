package importer

import "time"

// Locally stored timestamps have been observed in the future after clock
// mishaps; a future-dated filter makes the feed return nothing forever.
// Windows beyond the ceiling are clamped to a known-good fallback.
var (
	windowCeilingYear = 2024
	fallbackWindow    = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	safeWindow        = time.Date(2024, time.December, 1, 0, 0, 0, 0, time.UTC)
)

// ClampWindow returns the incremental lower bound to use for a stored
// high-water mark, replacing implausible future dates with the fallback.
func ClampWindow(lastModified time.Time) time.Time {
	if lastModified.Year() > windowCeilingYear {
		return fallbackWindow
	}
	return lastModified
}

// CVEWindow computes the lower bound for an incremental CVE sync: the safe
// fixed date when requested, otherwise daysBack before now, clamped like
// any other window.
func CVEWindow(now time.Time, daysBack int, useSafeDate bool) time.Time {
	if useSafeDate {
		return safeWindow
	}
	return ClampWindow(now.AddDate(0, 0, -daysBack))
}
