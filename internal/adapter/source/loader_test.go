package source

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/covid-dashboard-service/internal/domain"
	"github.com/couchcryptid/covid-dashboard-service/internal/observability"
)

const countiesCSV = `date,county,state,fips,cases,deaths
2020-01-21,Snohomish,Washington,53061,1,0
2020-01-22,Snohomish,Washington,53061,1,0
`

func testLoader(t *testing.T, dir string, cacheSize int) (*Loader, *observability.Metrics) {
	t.Helper()
	m := observability.NewMetricsForTesting()
	return NewLoader(dir, 5*time.Second, cacheSize, m, slog.New(slog.NewTextHandler(io.Discard, nil))), m
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestLoader_LoadRecords_PathOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.csv", countiesCSV)
	writeFile(t, dir, "b.csv", "date,cases\n2021-06-01,9\n")

	l, m := testLoader(t, dir, 0)
	records, err := l.LoadRecords(context.Background(), []string{"b.csv", "a.csv"})
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC), records[0].Date)
	assert.Equal(t, "Snohomish", records[1].Field("county"))
	assert.InDelta(t, 3, testutil.ToFloat64(m.RowsIngested), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.SourceLoads.WithLabelValues("success")), 0)
}

func TestLoader_LoadRecords_OneFailureFailsAll(t *testing.T) {
	dir := t.TempDir()
	paths := []string{"missing.csv"}
	for _, name := range []string{"a.csv", "b.csv", "c.csv", "d.csv"} {
		writeFile(t, dir, name, countiesCSV)
		paths = append(paths, name)
	}

	l, m := testLoader(t, dir, 0)
	records, err := l.LoadRecords(context.Background(), paths)
	require.Error(t, err)
	assert.Nil(t, records)
	assert.Contains(t, err.Error(), "missing.csv")
	// Siblings either finish or are cancelled; only the missing file counts.
	assert.InDelta(t, 1, testutil.ToFloat64(m.SourceLoads.WithLabelValues("error")), 0)
}

func TestLoader_LoadRecords_Empty(t *testing.T) {
	l, _ := testLoader(t, t.TempDir(), 0)
	records, err := l.LoadRecords(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestLoader_LoadRecords_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/us-counties-2020.csv", r.URL.Path)
		w.Header().Set("Content-Type", "text/csv")
		_, _ = io.WriteString(w, countiesCSV)
	}))
	defer srv.Close()

	l, _ := testLoader(t, "", 0)
	records, err := l.LoadRecords(context.Background(), []string{srv.URL + "/us-counties-2020.csv"})
	require.NoError(t, err)
	require.Len(t, records, 2)

	v, ok := records[0].Metric("cases")
	assert.True(t, ok)
	assert.InDelta(t, 1, v, 0)
}

func TestLoader_LoadRecords_HTTPStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	l, _ := testLoader(t, "", 0)
	_, err := l.LoadRecords(context.Background(), []string{srv.URL + "/x.csv"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestLoader_LoadRecords_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.csv", countiesCSV)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	l, m := testLoader(t, dir, 0)
	_, err := l.LoadRecords(ctx, []string{"a.csv"})
	require.ErrorIs(t, err, context.Canceled)
	assert.InDelta(t, 0, testutil.ToFloat64(m.SourceLoads.WithLabelValues("error")), 0)
}

func TestLoader_Cache(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, countiesCSV)
	}))
	defer srv.Close()

	l, m := testLoader(t, "", 4)
	path := srv.URL + "/a.csv"

	first, err := l.LoadRecords(context.Background(), []string{path})
	require.NoError(t, err)
	second, err := l.LoadRecords(context.Background(), []string{path})
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load(), "second load should be served from cache")
	assert.Equal(t, first, second)
	assert.InDelta(t, 1, testutil.ToFloat64(m.SourceCache.WithLabelValues("hit")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.SourceCache.WithLabelValues("miss")), 0)

	l.Refresh()
	_, err = l.LoadRecords(context.Background(), []string{path})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load(), "refresh should force a re-read")
}

func TestLoader_CacheDisabled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.csv", countiesCSV)

	l, m := testLoader(t, dir, 0)
	for range 2 {
		_, err := l.LoadRecords(context.Background(), []string{"a.csv"})
		require.NoError(t, err)
	}
	assert.InDelta(t, 2, testutil.ToFloat64(m.SourceLoads.WithLabelValues("success")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.SourceCache.WithLabelValues("hit")), 0)
}

func TestLoader_Resolve(t *testing.T) {
	l, _ := testLoader(t, "data", 0)

	assert.Equal(t, filepath.Join("data", "a.csv"), l.resolve("a.csv"))
	assert.Equal(t, "/abs/a.csv", l.resolve("/abs/a.csv"))
	assert.Equal(t, "https://d3js.org/us-10m.v1.json", l.resolve("https://d3js.org/us-10m.v1.json"))
}

func TestLoader_LoadCountyCodes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "us-10m.json", `{"type":"Topology","objects":{"counties":{"type":"GeometryCollection","geometries":[
		{"type":"Polygon","id":"06037","arcs":[[0]]},
		{"type":"Polygon","id":1001,"arcs":[[1]]}
	]}}}`)

	l, _ := testLoader(t, dir, 0)
	codes, err := l.LoadCountyCodes(context.Background(), "us-10m.json")
	require.NoError(t, err)
	assert.Equal(t, []string{"06037", "01001"}, codes)
}

func TestLoader_LoadCountyCodes_Cache(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, `{"objects":{"counties":{"geometries":[{"id":"06037"}]}}}`)
	}))
	defer srv.Close()

	l, m := testLoader(t, "", 4)
	path := srv.URL + "/us-10m.v1.json"

	for range 3 {
		codes, err := l.LoadCountyCodes(context.Background(), path)
		require.NoError(t, err)
		assert.Equal(t, []string{"06037"}, codes)
	}
	assert.Equal(t, int32(1), calls.Load(), "geometry should be fetched once")
	assert.InDelta(t, 2, testutil.ToFloat64(m.SourceCache.WithLabelValues("hit")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.SourceCache.WithLabelValues("miss")), 0)

	l.Refresh()
	_, err := l.LoadCountyCodes(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load(), "refresh should force a re-fetch")
}

func TestLoader_LoadCountyCodes_CacheDisabled(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, `{"objects":{"counties":{"geometries":[{"id":"06037"}]}}}`)
	}))
	defer srv.Close()

	l, _ := testLoader(t, "", 0)
	for range 2 {
		_, err := l.LoadCountyCodes(context.Background(), srv.URL+"/us-10m.v1.json")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), calls.Load())
}

func TestLoader_LoadCountyCodes_Missing(t *testing.T) {
	l, _ := testLoader(t, t.TempDir(), 0)
	_, err := l.LoadCountyCodes(context.Background(), "nope.json")
	require.Error(t, err)
}

func TestLoader_RecordsFeedAggregation(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.csv", `date,fips,cases
2020-03-01,06037,5
2020-03-01,36061,3
2020-03-02,06037,9
`)
	l, _ := testLoader(t, dir, 0)
	records, err := l.LoadRecords(context.Background(), []string{"a.csv"})
	require.NoError(t, err)

	series := domain.BuildCumulativeSeries(records, "cases")
	require.Len(t, series, 2)
	assert.InDelta(t, 8, series[0].Value, 0)
	assert.InDelta(t, 9, series[1].Value, 0)
}
