package domain

import (
	"sort"
	"time"
)

// Nearest returns the point whose date is closest to t, preferring the earlier
// point on a tie. It returns false for an empty series.
func (s Series) Nearest(t time.Time) (TimeSeriesPoint, bool) {
	if len(s) == 0 {
		return TimeSeriesPoint{}, false
	}
	// Index of the first point on or after t.
	i := sort.Search(len(s), func(i int) bool { return !s[i].Date.Before(t) })
	switch {
	case i == 0:
		return s[0], true
	case i == len(s):
		return s[len(s)-1], true
	}
	before, after := s[i-1], s[i]
	if t.Sub(before.Date) > after.Date.Sub(t) {
		return after, true
	}
	return before, true
}

// Max returns the largest value in the series, or 0 when empty.
func (s Series) Max() float64 {
	var m float64
	for _, p := range s {
		m = max(m, p.Value)
	}
	return m
}

// Total sums every value in the series.
func (s Series) Total() float64 {
	var sum float64
	for _, p := range s {
		sum += p.Value
	}
	return sum
}

// IsNonDecreasing reports whether no value is lower than its predecessor,
// i.e. whether BuildDailyDeltaSeries will clamp nothing.
func (s Series) IsNonDecreasing() bool {
	for i := 1; i < len(s); i++ {
		if s[i].Value < s[i-1].Value {
			return false
		}
	}
	return true
}

// AccumulateDeltas rebuilds a cumulative series from its first point and a
// daily-delta series. It inverts BuildDailyDeltaSeries exactly when no delta
// was clamped.
func AccumulateDeltas(first TimeSeriesPoint, deltas Series) Series {
	out := make(Series, 0, len(deltas)+1)
	out = append(out, first)
	running := first.Value
	for _, d := range deltas {
		running += d.Value
		out = append(out, TimeSeriesPoint{Date: d.Date, Value: running})
	}
	return out
}
