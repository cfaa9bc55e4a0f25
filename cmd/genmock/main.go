// Command genmock runs every dashboard build once over a local data directory
// and writes the resulting snapshots as JSON fixtures, one file per view. It
// drives the real pipeline with a fixed clock so fixtures are reproducible
// and match what the service publishes.
//
// Usage:
//
//	DATA_DIR=data GEOMETRY_URL=us-10m.v1.json \
//	  go run ./cmd/genmock -out data/mock
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/covid-dashboard-service/internal/adapter/source"
	"github.com/couchcryptid/covid-dashboard-service/internal/config"
	"github.com/couchcryptid/covid-dashboard-service/internal/domain"
	"github.com/couchcryptid/covid-dashboard-service/internal/observability"
	"github.com/couchcryptid/covid-dashboard-service/internal/pipeline"
)

var builtAt = time.Date(2023, time.March, 24, 6, 0, 0, 0, time.UTC)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out", "", "output directory for snapshot fixtures")
	dataDir := flag.String("data-dir", "", "directory containing the source files (overrides DATA_DIR)")
	flag.Parse()

	if *outDir == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	snapshots, err := generate(context.Background(), cfg)
	if err != nil {
		return err
	}

	for _, s := range snapshots {
		path := filepath.Join(*outDir, fixtureName(s))
		if err := writeJSON(path, s); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		log.Printf("wrote %s", path)
	}

	printStats(snapshots)
	return nil
}

// generate builds every series, every map and every admissions timeframe and
// returns the snapshots sorted by view key.
func generate(ctx context.Context, cfg *config.Config) ([]domain.Snapshot, error) {
	// Fixed clock for reproducible BuiltAt timestamps.
	clock := clockwork.NewFakeClockAt(builtAt)
	domain.SetClock(clock)
	defer domain.SetClock(nil)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewUnregisteredMetrics()
	loader := source.NewLoader(cfg.DataDir, cfg.SourceTimeout, 0, metrics, logger)

	collector := &collector{}
	settings := pipeline.SettingsFromConfig(cfg)
	settings.RefreshInterval = 0
	p := pipeline.New(loader, collector, settings, clock, logger, metrics)

	if failed := p.BuildAll(ctx); failed > 0 {
		return nil, fmt.Errorf("%d builds failed", failed)
	}
	for _, m := range domain.Metrics() {
		if m == settings.DefaultMetric {
			continue
		}
		if _, err := p.BuildMap(ctx, m); err != nil {
			return nil, err
		}
	}
	return collector.sorted(), nil
}

// collector is a pipeline.Publisher that keeps the latest snapshot per view.
type collector struct {
	mu    sync.Mutex
	views map[string]domain.Snapshot
}

func (c *collector) Publish(_ context.Context, s domain.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.views == nil {
		c.views = make(map[string]domain.Snapshot)
	}
	c.views[s.ViewKey()] = s
	return nil
}

func (c *collector) sorted() []domain.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Snapshot, 0, len(c.views))
	for _, s := range c.views {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ViewKey() < out[j].ViewKey() })
	return out
}

// fixtureName maps a view key such as "map:cases" to "map_cases.json".
func fixtureName(s domain.Snapshot) string {
	return strings.ReplaceAll(s.ViewKey(), ":", "_") + ".json"
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func printStats(snapshots []domain.Snapshot) {
	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Snapshots: %d\n", len(snapshots))
	for _, s := range snapshots {
		switch s.Kind {
		case domain.KindSeries:
			c := s.Series.Cumulative
			fmt.Printf("%-24s points=%d max=%.0f daily_max=%.0f non_decreasing=%t\n",
				s.ViewKey(), len(c), c.Max(), s.Series.Daily.Max(), c.IsNonDecreasing())
		case domain.KindMap:
			fmt.Printf("%-24s cells=%d missing=%d\n", s.ViewKey(), len(s.Map.Cells), s.Map.Missing)
		case domain.KindAdmissions:
			dates := 0
			if len(s.Admissions.Bands) > 0 {
				dates = len(s.Admissions.Bands[0].Points)
			}
			fmt.Printf("%-24s bands=%d dates=%d\n", s.ViewKey(), len(s.Admissions.Bands), dates)
		}
	}
}
