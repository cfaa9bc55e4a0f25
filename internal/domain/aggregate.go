package domain

import (
	"sort"
	"time"
)

// BuildCumulativeSeries sums the named metric per distinct date across all
// records and returns the totals sorted by date. Negative and missing values
// contribute nothing. Records without a date are skipped. The result is never
// nil.
func BuildCumulativeSeries(records []RawRecord, metric string) Series {
	sums := make(map[time.Time]float64)
	for _, rec := range records {
		if !rec.HasDate() {
			continue
		}
		v, _ := rec.Metric(metric)
		// A date with only negative or missing values still gets a point.
		sums[rec.Date] += max(v, 0)
	}

	series := make(Series, 0, len(sums))
	for date, total := range sums {
		series = append(series, TimeSeriesPoint{Date: date, Value: total})
	}
	sort.Slice(series, func(i, j int) bool {
		return series[i].Date.Before(series[j].Date)
	})
	return series
}

// BuildDailyDeltaSeries converts a cumulative series (sorted by date) into
// day-over-day changes. The first date has no delta, so the result has one
// point fewer than the input. Negative changes are reported as 0.
func BuildDailyDeltaSeries(cumulative Series) Series {
	if len(cumulative) < 2 {
		return Series{}
	}
	daily := make(Series, 0, len(cumulative)-1)
	for i := 1; i < len(cumulative); i++ {
		delta := cumulative[i].Value - cumulative[i-1].Value
		daily = append(daily, TimeSeriesPoint{Date: cumulative[i].Date, Value: max(delta, 0)})
	}
	return daily
}

// BuildRegionMetricTable keys each record's metric by its region code,
// dividing the raw value by scaleFactor. Later rows overwrite earlier rows for
// the same code. Rows without a region code or a numeric metric are skipped. A
// zero scaleFactor is treated as 1.
func BuildRegionMetricTable(records []RawRecord, metricField, regionCodeField string, scaleFactor float64) RegionMetricTable {
	if scaleFactor == 0 {
		scaleFactor = 1
	}
	table := newRegionMetricTable(metricField, scaleFactor, len(records))
	for _, rec := range records {
		code := NormalizeRegionCode(rec.Field(regionCodeField))
		if code == "" {
			continue
		}
		raw, ok := rec.Metric(metricField)
		if !ok {
			continue
		}
		table.values[code] = RegionValue{
			Code:  code,
			Value: raw / scaleFactor,
			Name:  rec.Field("county"),
			State: rec.Field("state"),
		}
	}
	return table
}

// PropagateStateMetric applies a state-level table to county codes. Each
// county is mapped to its state through the 2-digit FIPS prefix, the prefix is
// translated with stateAbbrevByFIPS, and the state's value is copied to the
// county. Counties whose state is unknown or has no data are left out so they
// resolve to no data.
func PropagateStateMetric(stateTable RegionMetricTable, countyCodes []string, stateAbbrevByFIPS map[string]string) RegionMetricTable {
	table := newRegionMetricTable(stateTable.metric, stateTable.scale, len(countyCodes))

	countyToState := make(map[string]string, len(countyCodes))
	for _, county := range countyCodes {
		county = NormalizeRegionCode(county)
		if prefix := StateFIPS(county); prefix != "" {
			countyToState[county] = prefix
		}
	}

	for county, stateFIPS := range countyToState {
		abbrev, ok := stateAbbrevByFIPS[stateFIPS]
		if !ok {
			continue
		}
		v, ok := stateTable.Lookup(abbrev)
		if !ok {
			continue
		}
		table.values[county] = RegionValue{
			Code:  county,
			Value: v.Value,
			Name:  v.Name,
			State: abbrev,
		}
	}
	return table
}

// BuildReference indexes a reference dataset (such as fips-by-state.csv) by
// region code for use with JoinFIPSReference.
func BuildReference(records []RawRecord, codeField, nameField, stateField string) map[string]RegionValue {
	ref := make(map[string]RegionValue, len(records))
	for _, rec := range records {
		code := NormalizeRegionCode(rec.Field(codeField))
		if code == "" {
			continue
		}
		ref[code] = RegionValue{Code: code, Name: rec.Field(nameField), State: rec.Field(stateField)}
	}
	return ref
}

// JoinReference keeps only the regions present in the reference and takes
// their labels from it.
func JoinReference(table RegionMetricTable, reference map[string]RegionValue) RegionMetricTable {
	joined := newRegionMetricTable(table.metric, table.scale, len(table.values))
	for code, v := range table.values {
		ref, ok := reference[code]
		if !ok {
			continue
		}
		v.Name = ref.Name
		v.State = ref.State
		joined.values[code] = v
	}
	return joined
}
