//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/covid-dashboard-service/internal/adapter/kafka"
	"github.com/couchcryptid/covid-dashboard-service/internal/adapter/source"
	"github.com/couchcryptid/covid-dashboard-service/internal/config"
	"github.com/couchcryptid/covid-dashboard-service/internal/domain"
	"github.com/couchcryptid/covid-dashboard-service/internal/observability"
	"github.com/couchcryptid/covid-dashboard-service/internal/pipeline"
)

const testSinkTopic = "test-snapshots"

// publishedSnapshot holds a deserialized message read from the sink topic.
type publishedSnapshot struct {
	Snapshot domain.Snapshot
	Key      string
	Headers  map[string]string
}

// readSnapshot reads a single message from the sink consumer and deserializes it.
func readSnapshot(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedSnapshot {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sink topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var snap domain.Snapshot
	require.NoError(t, json.Unmarshal(msg.Value, &snap), "unmarshal sink message")

	return publishedSnapshot{Snapshot: snap, Key: string(msg.Key), Headers: headers}
}

func newConsumer(t *testing.T, broker string) *kafkago.Reader {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })
	return consumer
}

// TestWriterPublish verifies that kafka.Writer round-trips a snapshot with its
// key and headers.
func TestWriterPublish(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSinkTopic)

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaSinkTopic: testSinkTopic}
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	cumulative := domain.Series{
		{Date: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), Value: 8},
		{Date: time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC), Value: 10},
	}
	snap := domain.NewSnapshot(domain.KindSeries, "cases", 7)
	snap.Series = &domain.TimeSeries{
		Metric:     domain.MetricCases,
		Cumulative: cumulative,
		Daily:      domain.BuildDailyDeltaSeries(cumulative),
	}
	require.NoError(t, writer.Publish(ctx, snap))

	got := readSnapshot(ctx, t, newConsumer(t, broker))
	assert.Equal(t, "series:cases", got.Key)
	assert.Equal(t, "series", got.Headers["snapshot_kind"])
	assert.Equal(t, "7", got.Headers["generation"])
	_, err := time.Parse(time.RFC3339, got.Headers["built_at"])
	assert.NoError(t, err, "built_at should be valid RFC3339")

	require.NotNil(t, got.Snapshot.Series)
	assert.Equal(t, cumulative, got.Snapshot.Series.Cumulative)
	assert.Len(t, got.Snapshot.Series.Daily, 1)
}

// TestPipelineEndToEnd wires the loader, pipeline and Kafka writer against a
// data directory and verifies every view is published once.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSinkTopic)

	dataDir := writeDataDir(t)
	cfg := &config.Config{
		DataDir:              dataDir,
		SeriesFiles:          []string{"us-counties-2020.csv", "us-counties-2021.csv"},
		MapFile:              "us-counties-2023.csv",
		GeometryURL:          "us-10m.v1.json",
		AdmissionsTimeframes: []string{"weekly"},
		DefaultMetric:        domain.MetricCases,
		SourceTimeout:        5 * time.Second,
		SourceCacheSize:      8,
		KafkaBrokers:         []string{broker},
		KafkaSinkTopic:       testSinkTopic,
	}

	metrics := observability.NewMetricsForTesting()
	loader := source.NewLoader(cfg.DataDir, cfg.SourceTimeout, cfg.SourceCacheSize, metrics, discardLogger())
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	p := pipeline.New(loader, writer, pipeline.SettingsFromConfig(cfg), nil, discardLogger(), metrics)
	require.NoError(t, p.Run(ctx))
	require.NoError(t, p.CheckReadiness(ctx))

	consumer := newConsumer(t, broker)
	received := make(map[string]publishedSnapshot, 4)
	for len(received) < 4 {
		got := readSnapshot(ctx, t, consumer)
		received[got.Key] = got
	}

	require.Contains(t, received, "series:cases")
	require.Contains(t, received, "series:deaths")
	require.Contains(t, received, "map:cases")
	require.Contains(t, received, "admissions:weekly")

	cases := received["series:cases"].Snapshot.Series
	require.NotNil(t, cases)
	require.Len(t, cases.Cumulative, 3)
	assert.InDelta(t, 2, cases.Cumulative[1].Value, 0)
	assert.InDelta(t, 500, cases.Cumulative[2].Value, 0)
	assert.Equal(t, "map", received["map:cases"].Headers["snapshot_kind"])

	choropleth := received["map:cases"].Snapshot.Map
	require.NotNil(t, choropleth)
	require.Len(t, choropleth.Cells, 3)
	assert.Equal(t, 1, choropleth.Missing, "06037 has no row in the map file")
	assert.Equal(t, "Snohomish County, Washington", choropleth.Cells[0].Tooltip.Heading)
	assert.Equal(t, "Cases: 200000", choropleth.Cells[0].Tooltip.Detail)

	weekly := received["admissions:weekly"].Snapshot.Admissions
	require.NotNil(t, weekly)
	assert.Len(t, weekly.Bands, len(domain.AgeBands))
}
