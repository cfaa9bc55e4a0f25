package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/couchcryptid/covid-dashboard-service/internal/domain"
	"github.com/couchcryptid/covid-dashboard-service/internal/pipeline"
)

const (
	modeCumulative = "cumulative"
	modeDaily      = "daily"
)

type catalogEntry struct {
	Metric domain.Metric `json:"metric"`
	Legend domain.Legend `json:"legend"`
	Series bool          `json:"series"`
	Active bool          `json:"active"`
}

type seriesResponse struct {
	Metric     domain.Metric `json:"metric"`
	Mode       string        `json:"mode"`
	Generation uint64        `json:"generation"`
	BuiltAt    time.Time     `json:"built_at"`
	Points     domain.Series `json:"points"`
	Max        float64       `json:"max"`
}

type modeRequest struct {
	Mode string `json:"mode"`
}

type metricRequest struct {
	Metric string `json:"metric"`
}

type activeResponse struct {
	Metric domain.Metric `json:"metric"`
}

func (s *Server) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	active := s.dashboard.View().ActiveMetric()
	metrics := domain.Metrics()
	out := make([]catalogEntry, 0, len(metrics))
	for _, m := range metrics {
		spec, _ := m.Spec()
		out = append(out, catalogEntry{Metric: m, Legend: spec.Legend, Series: spec.Series, Active: m == active})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	metric, ok := seriesMetric(w, r)
	if !ok {
		return
	}
	mode, ok := s.seriesMode(w, r, metric)
	if !ok {
		return
	}
	snap, ok := s.snapshot(w, domain.KindSeries, string(metric))
	if !ok {
		return
	}

	points := pickSeries(snap.Series, mode)
	writeJSON(w, http.StatusOK, seriesResponse{
		Metric:     metric,
		Mode:       mode,
		Generation: snap.Generation,
		BuiltAt:    snap.BuiltAt,
		Points:     points,
		Max:        points.Max(),
	})
}

func (s *Server) handleSeriesMode(w http.ResponseWriter, r *http.Request) {
	metric, ok := seriesMetric(w, r)
	if !ok {
		return
	}
	var req modeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	switch req.Mode {
	case modeCumulative, modeDaily:
	default:
		writeError(w, http.StatusBadRequest, "mode must be cumulative or daily")
		return
	}
	s.dashboard.View().SetShowCumulative(metric, req.Mode == modeCumulative)
	writeJSON(w, http.StatusOK, modeRequest{Mode: req.Mode})
}

func (s *Server) handleSeriesNearest(w http.ResponseWriter, r *http.Request) {
	metric, ok := seriesMetric(w, r)
	if !ok {
		return
	}
	mode, ok := s.seriesMode(w, r, metric)
	if !ok {
		return
	}
	at, ok := domain.ParseDate(r.URL.Query().Get("date"))
	if !ok {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	snap, ok := s.snapshot(w, domain.KindSeries, string(metric))
	if !ok {
		return
	}

	point, found := pickSeries(snap.Series, mode).Nearest(at)
	if !found {
		writeError(w, http.StatusNotFound, "series is empty")
		return
	}
	writeJSON(w, http.StatusOK, point)
}

func (s *Server) handleActiveMetric(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, activeResponse{Metric: s.dashboard.View().ActiveMetric()})
}

func (s *Server) handleSwitchMetric(w http.ResponseWriter, r *http.Request) {
	var req metricRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	metric, err := domain.ParseMetric(req.Metric)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := s.dashboard.SwitchMetric(r.Context(), metric)
	switch {
	case errors.Is(err, pipeline.ErrStaleSnapshot):
		writeError(w, http.StatusConflict, "superseded by a newer switch")
	case err != nil:
		s.logger.Error("metric switch failed", "metric", metric, "error", err)
		writeError(w, http.StatusBadGateway, "failed to load map sources")
	default:
		writeJSON(w, http.StatusOK, snap)
	}
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	metric, err := domain.ParseMetric(r.PathValue("metric"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap, ok := s.snapshot(w, domain.KindMap, string(metric))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleAdmissions(w http.ResponseWriter, r *http.Request) {
	tf, err := domain.ParseTimeframe(r.PathValue("timeframe"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap, ok := s.snapshot(w, domain.KindAdmissions, tf)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleAdmissionsAt(w http.ResponseWriter, r *http.Request) {
	tf, err := domain.ParseTimeframe(r.PathValue("timeframe"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	at, ok := domain.ParseDate(r.URL.Query().Get("date"))
	if !ok {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	snap, ok := s.snapshot(w, domain.KindAdmissions, tf)
	if !ok {
		return
	}
	values, found := snap.Admissions.At(at)
	if !found {
		writeError(w, http.StatusNotFound, "admissions series is empty")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Date string `json:"date"`
		domain.BandValues
	}{Date: values.Date.Format(domain.DateLayout), BandValues: values})
}

// seriesMetric parses the {metric} path value and rejects metrics without a
// time-series chart.
func seriesMetric(w http.ResponseWriter, r *http.Request) (domain.Metric, bool) {
	metric, err := domain.ParseMetric(r.PathValue("metric"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	if spec, _ := metric.Spec(); !spec.Series {
		writeError(w, http.StatusBadRequest, "metric has no time series: "+string(metric))
		return "", false
	}
	return metric, true
}

// seriesMode reads ?mode=, falling back to the view's toggle for the metric.
func (s *Server) seriesMode(w http.ResponseWriter, r *http.Request, metric domain.Metric) (string, bool) {
	switch mode := r.URL.Query().Get("mode"); mode {
	case modeCumulative, modeDaily:
		return mode, true
	case "":
		if s.dashboard.View().ShowCumulative(metric) {
			return modeCumulative, true
		}
		return modeDaily, true
	default:
		writeError(w, http.StatusBadRequest, "mode must be cumulative or daily")
		return "", false
	}
}

func (s *Server) snapshot(w http.ResponseWriter, kind domain.SnapshotKind, key string) (domain.Snapshot, bool) {
	snap, ok := s.dashboard.View().Snapshot(kind, key)
	if !ok {
		writeError(w, http.StatusNotFound, "no snapshot built yet for "+domain.ViewKey(kind, key))
		return domain.Snapshot{}, false
	}
	return snap, true
}

func pickSeries(ts *domain.TimeSeries, mode string) domain.Series {
	if mode == modeDaily {
		return ts.Daily
	}
	return ts.Cumulative
}
