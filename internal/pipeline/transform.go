package pipeline

import (
	"github.com/couchcryptid/covid-dashboard-service/internal/domain"
)

// seriesSnapshot aggregates the concatenated series files into the
// cumulative and daily series for one metric.
func seriesSnapshot(metric domain.Metric, gen uint64, records []domain.RawRecord) domain.Snapshot {
	snap := domain.NewSnapshot(domain.KindSeries, string(metric), gen)
	ts := domain.BuildTimeSeries(metric, records)
	snap.Series = &ts
	return snap
}

// mapSnapshot builds the region table for spec, applies its join and resolves
// every geometry county against it.
func mapSnapshot(spec domain.MetricSpec, gen uint64, in domain.MapInputs) domain.Snapshot {
	snap := domain.NewSnapshot(domain.KindMap, string(spec.Metric), gen)
	table := domain.BuildMetricTable(spec, in)
	choropleth := domain.BuildChoropleth(spec, table, in.CountyCodes)
	snap.Map = &choropleth
	return snap
}

func admissionsSnapshot(timeframe string, gen uint64, records []domain.RawRecord) domain.Snapshot {
	snap := domain.NewSnapshot(domain.KindAdmissions, timeframe, gen)
	bands := domain.BuildAgeBandSeries(timeframe, records)
	snap.Admissions = &bands
	return snap
}
