package domain

import (
	"encoding/json"
	"sort"
	"time"
)

// DateLayout is the ISO date format used by every source file and API payload.
const DateLayout = "2006-01-02"

// RawRecord is one row of an ingested dataset.
type RawRecord struct {
	Date    time.Time          // zero when the row has no parseable date
	Fields  map[string]string  // raw column values keyed by header name
	Metrics map[string]float64 // numeric columns only; non-numeric values are absent
}

// NewRawRecord builds a record from a header-keyed row. The "date" column is
// parsed into Date and every column that parses as a number is copied into
// Metrics.
func NewRawRecord(fields map[string]string) RawRecord {
	rec := RawRecord{
		Fields:  fields,
		Metrics: make(map[string]float64, len(fields)),
	}
	if d, ok := ParseDate(fields["date"]); ok {
		rec.Date = d
	}
	for name, raw := range fields {
		if v, ok := ParseNumber(raw); ok {
			rec.Metrics[name] = v
		}
	}
	return rec
}

// HasDate reports whether the record carries a usable date.
func (r RawRecord) HasDate() bool {
	return !r.Date.IsZero()
}

// Metric returns the named numeric value and whether it was present.
func (r RawRecord) Metric(name string) (float64, bool) {
	v, ok := r.Metrics[name]
	return v, ok
}

// Field returns the raw column value, or "" when the column is missing.
func (r RawRecord) Field(name string) string {
	return r.Fields[name]
}

// TimeSeriesPoint is one dated value in a series.
type TimeSeriesPoint struct {
	Date  time.Time
	Value float64
}

type timeSeriesPointJSON struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// MarshalJSON renders the date in DateLayout so the browser can parse it with
// the same format string it uses for the CSV files.
func (p TimeSeriesPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(timeSeriesPointJSON{Date: p.Date.Format(DateLayout), Value: p.Value})
}

func (p *TimeSeriesPoint) UnmarshalJSON(data []byte) error {
	var v timeSeriesPointJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	d, err := time.Parse(DateLayout, v.Date)
	if err != nil {
		return err
	}
	p.Date = d
	p.Value = v.Value
	return nil
}

// Series is an ordered sequence of points with unique, strictly increasing
// dates.
type Series []TimeSeriesPoint

// RegionValue is a metric value with the labels needed for a map tooltip.
type RegionValue struct {
	Code  string  `json:"code"`
	Value float64 `json:"value"`
	Name  string  `json:"name,omitempty"`  // county name
	State string  `json:"state,omitempty"` // state name or abbreviation, as reported
}

// RegionCell is a region resolved against a table. NoData is set when the
// table has no entry for the code; Value is then meaningless.
type RegionCell struct {
	RegionValue
	NoData bool `json:"no_data"`
}

// RegionMetricTable maps region codes to scaled metric values. It is built
// once and not modified afterwards.
type RegionMetricTable struct {
	metric string
	scale  float64
	values map[string]RegionValue
}

func newRegionMetricTable(metric string, scale float64, size int) RegionMetricTable {
	return RegionMetricTable{
		metric: metric,
		scale:  scale,
		values: make(map[string]RegionValue, size),
	}
}

// Metric is the source column the table was built from.
func (t RegionMetricTable) Metric() string { return t.metric }

// Scale is the divisor applied to raw values.
func (t RegionMetricTable) Scale() float64 { return t.scale }

// Len returns the number of regions with data.
func (t RegionMetricTable) Len() int { return len(t.values) }

// Lookup returns the value for a region code. The boolean is false when the
// region has no data, which callers must not treat as zero.
func (t RegionMetricTable) Lookup(code string) (RegionValue, bool) {
	v, ok := t.values[NormalizeRegionCode(code)]
	return v, ok
}

// Codes returns the region codes with data in ascending order.
func (t RegionMetricTable) Codes() []string {
	codes := make([]string, 0, len(t.values))
	for c := range t.values {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

// Resolve looks up every code, marking those without data.
func (t RegionMetricTable) Resolve(codes []string) []RegionCell {
	cells := make([]RegionCell, 0, len(codes))
	for _, code := range codes {
		v, ok := t.Lookup(code)
		if !ok {
			cells = append(cells, RegionCell{RegionValue: RegionValue{Code: NormalizeRegionCode(code)}, NoData: true})
			continue
		}
		cells = append(cells, RegionCell{RegionValue: v})
	}
	return cells
}
