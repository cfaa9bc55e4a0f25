package domain

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ErrUnknownMetric is returned when a metric name is not in the catalogue.
var ErrUnknownMetric = errors.New("unknown metric")

// Metric names a dashboard measure.
type Metric string

const (
	MetricCases        Metric = "cases"
	MetricDeaths       Metric = "deaths"
	MetricVaccinations Metric = "vaccinations"
	MetricHospitalized Metric = "hospitalized"
)

// JoinKind selects how a map metric's region codes are matched to counties.
type JoinKind int

const (
	// JoinNone: the source is keyed by county FIPS already.
	JoinNone JoinKind = iota
	// JoinFIPSReference: county-keyed, but only counties present in the FIPS
	// reference file are kept and labelled from it.
	JoinFIPSReference
	// JoinStatePropagation: the source is keyed by state abbreviation and each
	// state's value is copied to all of its counties.
	JoinStatePropagation
)

// NoDataColor fills regions without data.
const NoDataColor = "#ECEBE3"

// Legend describes the threshold color scale and captions for a map metric.
type Legend struct {
	Title   string    `json:"title"`
	Caption string    `json:"caption"`
	Extent  []float64 `json:"extent"`     // axis domain of the legend bar
	Domain  []float64 `json:"thresholds"` // ascending thresholds
	Colors  []string  `json:"colors"`     // len(Domain)+1 colors
}

// MetricSpec configures how one metric is built and presented.
type MetricSpec struct {
	Metric      Metric
	Field       string  // numeric column holding the metric
	RegionField string  // column holding the region code
	Scale       float64 // divisor applied to raw values
	Join        JoinKind
	Legend      Legend
	// Series reports whether the metric also has a national time-series chart.
	Series bool
}

var metricSpecs = map[Metric]MetricSpec{
	MetricCases: {
		Metric:      MetricCases,
		Field:       "cases",
		RegionField: "fips",
		Scale:       10000,
		Join:        JoinNone,
		Series:      true,
		Legend: Legend{
			Title:   "Cases per capita",
			Caption: "AVERAGE DAILY CASES PER 10,000 PERSONS IN 2023",
			Extent:  []float64{1, 10},
			Domain:  thresholds(2, 10),
			Colors:  []string{"#F2DF91", "#F9C467", "#FFA83D", "#FF8B23", "#FC6A0C", "#F04F09", "#D8382E", "#AF1B43", "#8a1739"},
		},
	},
	MetricDeaths: {
		Metric:      MetricDeaths,
		Field:       "deaths",
		RegionField: "fips",
		Scale:       100,
		Join:        JoinNone,
		Series:      true,
		Legend: Legend{
			Title:   "Deaths per capita",
			Caption: "AVERAGE DAILY DEATHS PER 100 PERSONS IN 2023",
			Extent:  []float64{1, 10},
			Domain:  thresholds(2, 10),
			Colors:  []string{"#f2cccb", "#f98080", "#fa3333", "#fd0000", "#ce0000", "#990000", "#770000", "#550000", "#440000"},
		},
	},
	MetricVaccinations: {
		Metric:      MetricVaccinations,
		Field:       "Completeness_pct",
		RegionField: "FIPS",
		Scale:       10,
		Join:        JoinFIPSReference,
		Legend: Legend{
			Title:   "Vaccinations",
			Caption: "PCT. OF RESIDENTS THAT ARE FULLY VACCINATED IN 2023",
			Extent:  []float64{4, 10},
			Domain:  thresholds(5, 10),
			Colors:  []string{"#C27560", "#DBA788", "#EFDBCB", "#B3D0C8", "#6FA194", "#2f7264"},
		},
	},
	MetricHospitalized: {
		Metric:      MetricHospitalized,
		Field:       "hospital_onset_covid",
		RegionField: "state",
		Scale:       1,
		Join:        JoinStatePropagation,
		Legend: Legend{
			Title:   "Current hospitalizations",
			Caption: "HOSPITAL ONSET COVID IN 2023",
			Extent:  []float64{1, 10},
			Domain:  thresholds(2, 10),
			Colors:  []string{"#cce5ff", "#99ccff", "#66b2ff", "#3392ff", "#0089ff", "#0066cc", "#004c99", "#003366", "#112933"},
		},
	},
}

// thresholds returns the integers in [start, stop).
func thresholds(start, stop int) []float64 {
	out := make([]float64, 0, stop-start)
	for i := start; i < stop; i++ {
		out = append(out, float64(i))
	}
	return out
}

// ParseMetric validates a metric name (case-insensitive).
func ParseMetric(s string) (Metric, error) {
	m := Metric(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := metricSpecs[m]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownMetric, s)
	}
	return m, nil
}

// Spec returns the catalogue entry for m.
func (m Metric) Spec() (MetricSpec, error) {
	spec, ok := metricSpecs[m]
	if !ok {
		return MetricSpec{}, fmt.Errorf("%w: %q", ErrUnknownMetric, string(m))
	}
	return spec, nil
}

// Metrics lists every catalogued metric in name order.
func Metrics() []Metric {
	out := make([]Metric, 0, len(metricSpecs))
	for m := range metricSpecs {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Color maps a scaled value onto the legend's threshold scale: values below
// the first threshold take the first color, values at or above the last
// threshold take the last.
func (s MetricSpec) Color(value float64) string {
	colors := s.Legend.Colors
	if len(colors) == 0 {
		return NoDataColor
	}
	i := sort.Search(len(s.Legend.Domain), func(i int) bool { return s.Legend.Domain[i] > value })
	if i >= len(colors) {
		i = len(colors) - 1
	}
	return colors[i]
}

// Tooltip is the text shown when hovering a region.
type Tooltip struct {
	Heading string `json:"heading,omitempty"`
	Detail  string `json:"detail"`
}

// Tooltip formats a resolved cell for display. Values are un-scaled back to
// the source unit.
func (s MetricSpec) Tooltip(cell RegionCell) Tooltip {
	if cell.NoData {
		return Tooltip{Detail: "No data available"}
	}
	raw := unscale(cell.Value, s.Scale)
	switch s.Metric {
	case MetricCases:
		return Tooltip{Heading: countyHeading(cell, true), Detail: "Cases: " + formatCount(raw)}
	case MetricDeaths:
		return Tooltip{Heading: countyHeading(cell, true), Detail: "Deaths: " + formatCount(raw)}
	case MetricVaccinations:
		return Tooltip{Heading: countyHeading(cell, false), Detail: "Vaccinations: " + strconv.FormatFloat(raw, 'f', -1, 64) + "%"}
	case MetricHospitalized:
		return Tooltip{Heading: cell.State, Detail: "Hospitalized: " + formatCount(raw)}
	}
	return Tooltip{Detail: strconv.FormatFloat(raw, 'f', -1, 64)}
}

// unscale multiplies back by the divisor and rounds away the float noise the
// division introduced (12345/10000*10000 is 12345.000000000002).
func unscale(v, scale float64) float64 {
	return math.Round(v*scale*1e6) / 1e6
}

func formatCount(v float64) string {
	return strconv.FormatFloat(math.Ceil(v), 'f', 0, 64)
}

func countyHeading(cell RegionCell, suffix bool) string {
	name := cell.Name
	if name == "" {
		return cell.State
	}
	if suffix {
		name += " County"
	}
	if cell.State == "" {
		return name
	}
	return name + ", " + cell.State
}
