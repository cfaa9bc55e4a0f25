//go:build integration

package integration_test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node Kafka container and returns its broker address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("covid-dashboard-test"),
	)
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminate kafka container: %v", err)
		}
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates a single-partition topic through the cluster controller.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	ctrlConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrlConn.Close()

	require.NoError(t, ctrlConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// writeDataDir lays out a small data directory with every source the
// dashboard reads.
func writeDataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	files := map[string]string{
		"us-counties-2020.csv": "date,county,state,fips,cases,deaths\n" +
			"2020-01-21,Snohomish,Washington,53061,1,0\n" +
			"2020-01-22,Snohomish,Washington,53061,1,0\n" +
			"2020-01-22,Cook,Illinois,17031,1,0\n",
		"us-counties-2021.csv": "date,county,state,fips,cases,deaths\n" +
			"2021-01-01,Snohomish,Washington,53061,500,10\n",
		"us-counties-2023.csv": "date,county,state,fips,cases,deaths\n" +
			"2023-03-23,Snohomish,Washington,53061,200000,1500\n" +
			"2023-03-23,Cook,Illinois,17031,1500000,15000\n",
		"weekly_data.csv": "date,under_18,18_29,30_49,50_59,60_69,70_79,80_plus\n" +
			"2023-01-07,1.1,2.0,3.5,6.2,10.4,18.9,28.0\n" +
			"2023-01-14,1.5,2.2,3.1,5.9,11.0,19.5,30.2\n",
		"us-10m.v1.json": `{"type":"Topology","objects":{"counties":{"type":"GeometryCollection","geometries":[` +
			`{"type":"Polygon","id":"53061","arcs":[[0]]},{"type":"Polygon","id":"17031","arcs":[[1]]},{"type":"Polygon","id":"06037","arcs":[[2]]}]}}}`,
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}
	return dir
}
