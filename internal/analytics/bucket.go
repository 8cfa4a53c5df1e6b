// Package analytics turns raw activity events into the dashboard payloads:
// time-bucketed signup/login series, top-IP country breakdowns and
// deduplicated lead rows.
package analytics

import (
	"fmt"
	"time"
)

// Period selects the reporting window and its bucket granularity.
type Period string

const (
	// PeriodToday is 24 hourly buckets starting at local midnight.
	PeriodToday Period = "today"
	// Period7Days is 7 daily buckets ending with today.
	Period7Days Period = "7d"
	// PeriodMonth is daily buckets from the 1st of the month through today.
	PeriodMonth Period = "month"
)

// ParsePeriod normalizes a query value. Anything unrecognized falls back
// to 7d rather than being rejected.
func ParsePeriod(s string) Period {
	switch Period(s) {
	case PeriodToday, Period7Days, PeriodMonth:
		return Period(s)
	default:
		return Period7Days
	}
}

// Bucket is one [Start, End) sub-interval of a reporting period.
type Bucket struct {
	Start time.Time
	End   time.Time
	Label string
}

// Boundaries returns the ordered buckets for period relative to now, in
// now's location. Hourly buckets are labeled "HH:00", daily buckets "MM-DD".
func Boundaries(period Period, now time.Time) []Bucket {
	loc := now.Location()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	switch period {
	case PeriodToday:
		buckets := make([]Bucket, 0, 24)
		for i := 0; i < 24; i++ {
			start := midnight.Add(time.Duration(i) * time.Hour)
			buckets = append(buckets, Bucket{
				Start: start,
				End:   start.Add(time.Hour),
				Label: fmt.Sprintf("%02d:00", start.Hour()),
			})
		}
		return buckets
	case PeriodMonth:
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
		return dailyBuckets(first, now.Day())
	default: // Period7Days
		return dailyBuckets(midnight.AddDate(0, 0, -6), 7)
	}
}

func dailyBuckets(start time.Time, days int) []Bucket {
	buckets := make([]Bucket, 0, days)
	for i := 0; i < days; i++ {
		s := start.AddDate(0, 0, i)
		buckets = append(buckets, Bucket{
			Start: s,
			End:   s.AddDate(0, 0, 1),
			Label: s.Format("01-02"),
		})
	}
	return buckets
}

// IndexFor maps ts to its bucket index for a period starting at start, or -1
// when ts falls before the range or past its fixed upper bound. Out-of-range
// timestamps are dropped, never clamped: callers are expected to query only
// events already filtered to the range.
func IndexFor(period Period, start, ts time.Time) int {
	if ts.Before(start) {
		return -1
	}
	if period == PeriodToday {
		idx := int(ts.Sub(start) / time.Hour)
		if idx >= 24 {
			return -1
		}
		return idx
	}

	// Daily index by calendar date, robust across DST transitions where a
	// day is not exactly 24 hours long.
	t := ts.In(start.Location())
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, start.Location())
	idx := int(day.Sub(start).Hours()/24 + 0.5)

	switch period {
	case Period7Days:
		if idx >= 7 {
			return -1
		}
	case PeriodMonth:
		if t.Month() != start.Month() || t.Year() != start.Year() {
			return -1
		}
	}
	return idx
}
