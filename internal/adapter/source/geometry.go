package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/couchcryptid/covid-dashboard-service/internal/domain"
)

// TopoJSON response types. Only the county geometry ids are read; arcs and
// transforms are left to the browser.

type topology struct {
	Objects struct {
		Counties struct {
			Geometries []geometry `json:"geometries"`
		} `json:"counties"`
	} `json:"objects"`
}

type geometry struct {
	ID json.RawMessage `json:"id"`
}

// code returns the id as text. us-10m ships string ids ("01001") while some
// re-encodings emit bare numbers (1001).
func (g geometry) code() string {
	var s string
	if err := json.Unmarshal(g.ID, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(g.ID))
}

// LoadCountyCodes reads a us-10m TopoJSON topology and returns the county
// codes of its geometries in file order, normalized to 5 digits and
// de-duplicated. Code lists are cached alongside datasets until Refresh.
func (l *Loader) LoadCountyCodes(ctx context.Context, path string) ([]string, error) {
	resolved := l.resolve(path)
	if codes, ok := l.geometry.get(resolved); ok {
		l.metrics.SourceCache.WithLabelValues("hit").Inc()
		return codes, nil
	}
	if l.geometry != nil {
		l.metrics.SourceCache.WithLabelValues("miss").Inc()
	}

	rc, err := l.open(ctx, resolved)
	if err != nil {
		l.loadFailed(err)
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	defer rc.Close()

	codes, err := ParseCountyCodes(rc)
	if err != nil {
		l.loadFailed(err)
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	l.metrics.SourceLoads.WithLabelValues("success").Inc()
	l.logger.Debug("geometry loaded", "path", resolved, "counties", len(codes))
	l.geometry.put(resolved, codes)
	return codes, nil
}

// ParseCountyCodes extracts objects.counties.geometries[].id from a
// TopoJSON document. Ids may be encoded as strings or numbers.
func ParseCountyCodes(r io.Reader) ([]string, error) {
	var topo topology
	if err := json.NewDecoder(r).Decode(&topo); err != nil {
		return nil, fmt.Errorf("decode topology: %w", err)
	}

	seen := make(map[string]struct{}, len(topo.Objects.Counties.Geometries))
	codes := make([]string, 0, len(topo.Objects.Counties.Geometries))
	for _, g := range topo.Objects.Counties.Geometries {
		code := domain.NormalizeRegionCode(g.code())
		if code == "" {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes, nil
}
