package domain

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"time"
)

// ErrInvalidTimeframe is returned for admissions timeframe names that cannot
// be mapped to a data file.
var ErrInvalidTimeframe = errors.New("invalid timeframe")

var timeframeRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// ParseTimeframe validates an admissions timeframe name. The name selects the
// file <timeframe>_data.csv, so path separators and dots are rejected.
func ParseTimeframe(s string) (string, error) {
	if !timeframeRe.MatchString(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTimeframe, s)
	}
	return s, nil
}

// AdmissionsFile returns the source file name for a timeframe.
func AdmissionsFile(timeframe string) string {
	return timeframe + "_data.csv"
}

// AgeBand is one column of the admissions dataset.
type AgeBand struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// AgeBands lists the admissions columns in chart order.
var AgeBands = []AgeBand{
	{Key: "under_18", Label: "<18"},
	{Key: "18_29", Label: "18-29"},
	{Key: "30_49", Label: "30-49"},
	{Key: "50_59", Label: "50-59"},
	{Key: "60_69", Label: "60-69"},
	{Key: "70_79", Label: "70-79"},
	{Key: "80_plus", Label: "80+"},
}

// BandSeries is one age band's line.
type BandSeries struct {
	AgeBand
	Points Series `json:"points"`
}

// AgeBandSeries holds one series per age band over a shared set of dates.
type AgeBandSeries struct {
	Timeframe string       `json:"timeframe"`
	Bands     []BandSeries `json:"bands"`
}

// BuildAgeBandSeries reshapes admissions rows into one series per band. Rows
// without a date are skipped, rows are sorted by date, and a missing or
// non-numeric band value counts as 0. If a date repeats, the later row wins.
func BuildAgeBandSeries(timeframe string, records []RawRecord) AgeBandSeries {
	byDate := make(map[time.Time]RawRecord, len(records))
	for _, rec := range records {
		if rec.HasDate() {
			byDate[rec.Date] = rec
		}
	}
	dates := make([]time.Time, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	out := AgeBandSeries{Timeframe: timeframe, Bands: make([]BandSeries, 0, len(AgeBands))}
	for _, band := range AgeBands {
		points := make(Series, 0, len(dates))
		for _, d := range dates {
			points = append(points, TimeSeriesPoint{Date: d, Value: parseFloatOrZero(byDate[d].Field(band.Key))})
		}
		out.Bands = append(out.Bands, BandSeries{AgeBand: band, Points: points})
	}
	return out
}

// BandValues are the per-band values on one date, with their range, as shown
// by the admissions hover line.
type BandValues struct {
	Date   time.Time          `json:"-"`
	Values map[string]float64 `json:"values"`
	Min    float64            `json:"min"`
	Max    float64            `json:"max"`
}

// At returns the band values on the last date not after t. Dates before the
// first point snap to the first point.
func (a AgeBandSeries) At(t time.Time) (BandValues, bool) {
	if len(a.Bands) == 0 || len(a.Bands[0].Points) == 0 {
		return BandValues{}, false
	}
	points := a.Bands[0].Points
	i := sort.Search(len(points), func(i int) bool { return points[i].Date.After(t) })
	if i > 0 {
		i--
	}

	bv := BandValues{Date: points[i].Date, Values: make(map[string]float64, len(a.Bands))}
	for n, band := range a.Bands {
		v := band.Points[i].Value
		bv.Values[band.Key] = v
		if n == 0 || v < bv.Min {
			bv.Min = v
		}
		if n == 0 || v > bv.Max {
			bv.Max = v
		}
	}
	return bv, true
}
