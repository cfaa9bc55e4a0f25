package pipeline

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/couchcryptid/covid-dashboard-service/internal/domain"
)

// ErrStaleSnapshot is returned by Apply when a newer build was issued for the
// same view after the snapshot's build began.
var ErrStaleSnapshot = errors.New("stale snapshot")

// View is the dashboard view-model: the latest snapshot per view, the active
// map metric and the cumulative/daily toggle per chart. One View is created
// per service start and shared by reference.
type View struct {
	generation atomic.Uint64

	mu             sync.RWMutex
	issued         map[string]uint64 // latest generation issued per view key
	switchGen      uint64            // generation of the latest metric switch
	snapshots      map[string]domain.Snapshot
	activeMetric   domain.Metric
	showCumulative map[domain.Metric]bool
}

// NewView creates a view-model with the given active map metric. Every chart
// starts in cumulative mode.
func NewView(activeMetric domain.Metric) *View {
	return &View{
		issued:         make(map[string]uint64),
		snapshots:      make(map[string]domain.Snapshot),
		activeMetric:   activeMetric,
		showCumulative: make(map[domain.Metric]bool),
	}
}

// Begin issues a new generation for a view. Only a snapshot carrying the most
// recently issued generation for its view can be applied.
func (v *View) Begin(kind domain.SnapshotKind, key string) uint64 {
	gen := v.generation.Add(1)
	v.mu.Lock()
	v.issue(domain.ViewKey(kind, key), gen)
	v.mu.Unlock()
	return gen
}

// BeginSwitch makes metric the active map metric and issues a generation for
// its map. Every switch supersedes all earlier switches, whatever their
// metric, so only the latest switch can be applied with ApplySwitch.
func (v *View) BeginSwitch(metric domain.Metric) uint64 {
	gen := v.generation.Add(1)
	v.mu.Lock()
	defer v.mu.Unlock()
	v.issue(domain.ViewKey(domain.KindMap, string(metric)), gen)
	if gen > v.switchGen {
		v.switchGen = gen
		v.activeMetric = metric
	}
	return gen
}

// issue records gen for key unless a later generation was already issued.
// Callers hold mu.
func (v *View) issue(key string, gen uint64) {
	if gen > v.issued[key] {
		v.issued[key] = gen
	}
}

// Apply stores a snapshot if its generation is the latest issued for its view,
// and returns ErrStaleSnapshot otherwise.
func (v *View) Apply(s domain.Snapshot) error {
	key := s.ViewKey()
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.issued[key] != s.Generation {
		return ErrStaleSnapshot
	}
	v.snapshots[key] = s
	return nil
}

// ApplySwitch stores a map snapshot started by BeginSwitch. It returns
// ErrStaleSnapshot when a later switch, or a later build of the same map, was
// issued in the meantime.
func (v *View) ApplySwitch(s domain.Snapshot) error {
	key := s.ViewKey()
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.switchGen != s.Generation || v.issued[key] != s.Generation {
		return ErrStaleSnapshot
	}
	v.snapshots[key] = s
	return nil
}

// Snapshot returns the applied snapshot for a view.
func (v *View) Snapshot(kind domain.SnapshotKind, key string) (domain.Snapshot, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	s, ok := v.snapshots[domain.ViewKey(kind, key)]
	return s, ok
}

// Len returns the number of views holding a snapshot.
func (v *View) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.snapshots)
}

// ActiveMetric returns the metric the map currently shows.
func (v *View) ActiveMetric() domain.Metric {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.activeMetric
}

// SetActiveMetric switches the map metric.
func (v *View) SetActiveMetric(m domain.Metric) {
	v.mu.Lock()
	v.activeMetric = m
	v.mu.Unlock()
}

// ShowCumulative reports whether a metric's chart is in cumulative mode.
func (v *View) ShowCumulative(m domain.Metric) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	show, ok := v.showCumulative[m]
	return !ok || show
}

// SetShowCumulative sets a metric's chart mode.
func (v *View) SetShowCumulative(m domain.Metric, show bool) {
	v.mu.Lock()
	v.showCumulative[m] = show
	v.mu.Unlock()
}
