package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/covid-dashboard-service/internal/config"
	"github.com/couchcryptid/covid-dashboard-service/internal/domain"
	"github.com/couchcryptid/covid-dashboard-service/internal/observability"
)

// Source loads datasets. A failed load is fatal to the build that asked for it.
type Source interface {
	LoadRecords(ctx context.Context, paths []string) ([]domain.RawRecord, error)
	LoadCountyCodes(ctx context.Context, path string) ([]string, error)
	// Refresh drops any cached datasets before a scheduled rebuild.
	Refresh()
}

// Publisher forwards applied snapshots downstream.
type Publisher interface {
	Publish(ctx context.Context, s domain.Snapshot) error
}

// NopPublisher discards snapshots. It is used when Kafka publishing is off.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, domain.Snapshot) error { return nil }

// Settings names the source files each view is built from.
type Settings struct {
	SeriesFiles          []string
	MapFile              string
	VaccinationFile      string
	FIPSReferenceFile    string
	HospitalFile         string
	Geometry             string
	AdmissionsTimeframes []string
	DefaultMetric        domain.Metric
	RefreshInterval      time.Duration
}

// SettingsFromConfig copies the pipeline settings out of the service config.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		SeriesFiles:          cfg.SeriesFiles,
		MapFile:              cfg.MapFile,
		VaccinationFile:      cfg.VaccinationFile,
		FIPSReferenceFile:    cfg.FIPSReferenceFile,
		HospitalFile:         cfg.HospitalFile,
		Geometry:             cfg.GeometryURL,
		AdmissionsTimeframes: cfg.AdmissionsTimeframes,
		DefaultMetric:        cfg.DefaultMetric,
		RefreshInterval:      cfg.RefreshInterval,
	}
}

// Pipeline orchestrates the load-aggregate-apply cycle for every dashboard view.
type Pipeline struct {
	source    Source
	publisher Publisher
	settings  Settings
	view      *View
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
}

// New creates a Pipeline. A nil publisher disables publishing and a nil clock
// uses the real clock.
func New(src Source, pub Publisher, settings Settings, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	if pub == nil {
		pub = NopPublisher{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Pipeline{
		source:    src,
		publisher: pub,
		settings:  settings,
		view:      NewView(settings.DefaultMetric),
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
	}
}

// View returns the view-model the pipeline applies snapshots to.
func (p *Pipeline) View() *View {
	return p.view
}

// CheckReadiness returns nil once at least one build has been applied.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no dashboard view has been built yet")
	}
	return nil
}

// Run builds every configured view, then rebuilds them each RefreshInterval
// until the context is cancelled. With a zero interval it returns after the
// first pass. Build failures are logged and counted, not retried.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started",
		"refresh_interval", p.settings.RefreshInterval,
		"active_metric", p.view.ActiveMetric(),
	)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	p.BuildAll(ctx)
	if p.settings.RefreshInterval <= 0 {
		return nil
	}

	ticker := p.clock.NewTicker(p.settings.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			p.source.Refresh()
			p.BuildAll(ctx)
		}
	}
}

// BuildAll rebuilds the series charts, the active map and every configured
// admissions timeframe. It returns the number of views that failed.
func (p *Pipeline) BuildAll(ctx context.Context) int {
	failed := 0
	for _, m := range domain.Metrics() {
		spec, _ := m.Spec()
		if !spec.Series {
			continue
		}
		if _, err := p.BuildSeries(ctx, m); err != nil && !errors.Is(err, ErrStaleSnapshot) {
			failed++
		}
	}
	if _, err := p.BuildMap(ctx, p.view.ActiveMetric()); err != nil && !errors.Is(err, ErrStaleSnapshot) {
		failed++
	}
	for _, tf := range p.settings.AdmissionsTimeframes {
		if _, err := p.BuildAdmissions(ctx, tf); err != nil && !errors.Is(err, ErrStaleSnapshot) {
			failed++
		}
	}
	return failed
}

// BuildSeries loads every series file and builds the cumulative and daily
// series for a metric.
func (p *Pipeline) BuildSeries(ctx context.Context, metric domain.Metric) (domain.Snapshot, error) {
	spec, err := metric.Spec()
	if err != nil {
		return domain.Snapshot{}, err
	}
	if !spec.Series {
		return domain.Snapshot{}, fmt.Errorf("%w: %q has no time series", domain.ErrUnknownMetric, metric)
	}

	gen := p.view.Begin(domain.KindSeries, string(metric))
	start := time.Now()

	records, err := p.source.LoadRecords(ctx, p.settings.SeriesFiles)
	if err != nil {
		return domain.Snapshot{}, p.buildFailed(domain.KindSeries, string(metric), err)
	}

	snap := seriesSnapshot(metric, gen, records)
	return snap, p.apply(ctx, snap, start)
}

// BuildMap loads the metric's sources together with the county geometry and
// builds the choropleth.
func (p *Pipeline) BuildMap(ctx context.Context, metric domain.Metric) (domain.Snapshot, error) {
	spec, err := metric.Spec()
	if err != nil {
		return domain.Snapshot{}, err
	}
	gen := p.view.Begin(domain.KindMap, string(metric))
	return p.buildMap(ctx, spec, gen, p.view.Apply)
}

// SwitchMetric makes metric the active map metric and rebuilds the map. If
// another switch starts before this one is applied, this one returns
// ErrStaleSnapshot.
func (p *Pipeline) SwitchMetric(ctx context.Context, metric domain.Metric) (domain.Snapshot, error) {
	spec, err := metric.Spec()
	if err != nil {
		return domain.Snapshot{}, err
	}
	gen := p.view.BeginSwitch(metric)
	p.logger.Info("active metric switched", "metric", metric, "generation", gen)
	return p.buildMap(ctx, spec, gen, p.view.ApplySwitch)
}

func (p *Pipeline) buildMap(ctx context.Context, spec domain.MetricSpec, gen uint64, store func(domain.Snapshot) error) (domain.Snapshot, error) {
	start := time.Now()

	in, err := p.loadMapInputs(ctx, spec)
	if err != nil {
		return domain.Snapshot{}, p.buildFailed(domain.KindMap, string(spec.Metric), err)
	}

	snap := mapSnapshot(spec, gen, in)
	return snap, p.applyWith(ctx, snap, start, store)
}

// BuildAdmissions loads <timeframe>_data.csv and builds the age-band series.
func (p *Pipeline) BuildAdmissions(ctx context.Context, timeframe string) (domain.Snapshot, error) {
	tf, err := domain.ParseTimeframe(timeframe)
	if err != nil {
		return domain.Snapshot{}, err
	}

	gen := p.view.Begin(domain.KindAdmissions, tf)
	start := time.Now()

	records, err := p.source.LoadRecords(ctx, []string{domain.AdmissionsFile(tf)})
	if err != nil {
		return domain.Snapshot{}, p.buildFailed(domain.KindAdmissions, tf, err)
	}

	snap := admissionsSnapshot(tf, gen, records)
	return snap, p.apply(ctx, snap, start)
}

// loadMapInputs fetches the metric's records and, in the same all-or-nothing
// join, the geometry's county codes and any reference table the join needs.
func (p *Pipeline) loadMapInputs(ctx context.Context, spec domain.MetricSpec) (domain.MapInputs, error) {
	var (
		in        domain.MapInputs
		reference []domain.RawRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		records, err := p.source.LoadRecords(gctx, []string{p.mapFile(spec.Metric)})
		in.Records = records
		return err
	})
	g.Go(func() error {
		codes, err := p.source.LoadCountyCodes(gctx, p.settings.Geometry)
		in.CountyCodes = codes
		return err
	})
	if spec.Join == domain.JoinFIPSReference {
		g.Go(func() error {
			records, err := p.source.LoadRecords(gctx, []string{p.settings.FIPSReferenceFile})
			reference = records
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return domain.MapInputs{}, err
	}

	if spec.Join == domain.JoinFIPSReference {
		in.Reference = domain.BuildReference(reference, "fips", "name", "state")
	}
	return in, nil
}

func (p *Pipeline) mapFile(m domain.Metric) string {
	switch m {
	case domain.MetricVaccinations:
		return p.settings.VaccinationFile
	case domain.MetricHospitalized:
		return p.settings.HospitalFile
	default:
		return p.settings.MapFile
	}
}

func (p *Pipeline) buildFailed(kind domain.SnapshotKind, key string, err error) error {
	p.metrics.BuildErrors.WithLabelValues(string(kind)).Inc()
	p.logger.Error("build failed", "view", domain.ViewKey(kind, key), "error", err)
	return fmt.Errorf("build %s: %w", domain.ViewKey(kind, key), err)
}

// apply stores the snapshot if it is still current and publishes it. Publish
// failures are logged; the view keeps the snapshot.
func (p *Pipeline) apply(ctx context.Context, snap domain.Snapshot, start time.Time) error {
	return p.applyWith(ctx, snap, start, p.view.Apply)
}

func (p *Pipeline) applyWith(ctx context.Context, snap domain.Snapshot, start time.Time, store func(domain.Snapshot) error) error {
	if err := store(snap); err != nil {
		p.metrics.StaleSnapshots.Inc()
		p.logger.Debug("dropping stale snapshot",
			"view", snap.ViewKey(),
			"generation", snap.Generation,
		)
		return err
	}

	p.metrics.BuildDuration.WithLabelValues(string(snap.Kind)).Observe(time.Since(start).Seconds())
	p.ready.Store(true)
	p.logger.Info("snapshot applied",
		"view", snap.ViewKey(),
		"generation", snap.Generation,
		"duration", time.Since(start),
	)

	if err := p.publisher.Publish(ctx, snap); err != nil {
		p.metrics.PublishErrors.Inc()
		p.logger.Warn("publish snapshot failed", "view", snap.ViewKey(), "error", err)
		return nil
	}
	if _, nop := p.publisher.(NopPublisher); !nop {
		p.metrics.SnapshotsPublished.Inc()
	}
	return nil
}
