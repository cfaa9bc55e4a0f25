package domain

import "time"

// SnapshotKind identifies which view a snapshot feeds.
type SnapshotKind string

const (
	KindSeries     SnapshotKind = "series"
	KindMap        SnapshotKind = "map"
	KindAdmissions SnapshotKind = "admissions"
)

// TimeSeries pairs a metric's cumulative series with its daily deltas so a
// chart toggle never needs a rebuild.
type TimeSeries struct {
	Metric     Metric `json:"metric"`
	Cumulative Series `json:"cumulative"`
	Daily      Series `json:"daily"`
}

// BuildTimeSeries runs both series operations for a metric.
func BuildTimeSeries(metric Metric, records []RawRecord) TimeSeries {
	cumulative := BuildCumulativeSeries(records, string(metric))
	return TimeSeries{
		Metric:     metric,
		Cumulative: cumulative,
		Daily:      BuildDailyDeltaSeries(cumulative),
	}
}

// Snapshot is the immutable result of one build. Exactly one of Series, Map
// and Admissions is set, according to Kind.
type Snapshot struct {
	Kind       SnapshotKind   `json:"kind"`
	Key        string         `json:"key"` // metric name or admissions timeframe
	Generation uint64         `json:"generation"`
	BuiltAt    time.Time      `json:"built_at"`
	Series     *TimeSeries    `json:"series,omitempty"`
	Map        *Choropleth    `json:"map,omitempty"`
	Admissions *AgeBandSeries `json:"admissions,omitempty"`
}

// NewSnapshot starts a snapshot stamped with the current time.
func NewSnapshot(kind SnapshotKind, key string, generation uint64) Snapshot {
	return Snapshot{
		Kind:       kind,
		Key:        key,
		Generation: generation,
		BuiltAt:    clock.Now().UTC(),
	}
}

// ViewKey identifies the view a snapshot belongs to, e.g. "map:cases".
func (s Snapshot) ViewKey() string {
	return ViewKey(s.Kind, s.Key)
}

// ViewKey joins a kind and key into the identifier used for generation
// tracking and as the published message key.
func ViewKey(kind SnapshotKind, key string) string {
	return string(kind) + ":" + key
}
