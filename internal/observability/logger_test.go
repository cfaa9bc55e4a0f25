package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "info", "json")

	logger.Debug("hidden")
	logger.Info("snapshot applied", "metric", "cases")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "snapshot applied", entry["msg"])
	assert.Equal(t, "cases", entry["metric"])
	assert.Equal(t, "covid-dashboard", entry["service"])
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "debug", "text")

	logger.Debug("loading source", "path", "data/us-counties-2020.csv")

	assert.Contains(t, buf.String(), "level=DEBUG")
	assert.Contains(t, buf.String(), "path=data/us-counties-2020.csv")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}

func TestNewMetricsForTesting_Independent(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.RowsIngested.Add(3)
	assert.NotSame(t, a.RowsIngested, b.RowsIngested)
}

func TestNewUnregisteredMetrics_NotRegistered(t *testing.T) {
	m := NewUnregisteredMetrics()
	// Registering succeeds only if the collector is not already registered.
	require.NoError(t, prometheus.Register(m.RowsIngested))
	prometheus.Unregister(m.RowsIngested)
}
