// Command validate checks a local data directory against the aggregation
// rules the dashboard relies on: series dates are unique and ascending, totals
// match the non-negative row sums, daily deltas re-accumulate to the
// cumulative series, and map files cover the county geometry.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -data-dir data \
//	  -series us-counties-2020.csv,us-counties-2021.csv,us-counties-2022.csv,us-counties-2023.csv \
//	  -map us-counties-2023.csv \
//	  -geometry us-10m.v1.json \
//	  -admissions weekly
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/couchcryptid/covid-dashboard-service/internal/adapter/source"
	"github.com/couchcryptid/covid-dashboard-service/internal/domain"
	"github.com/couchcryptid/covid-dashboard-service/internal/observability"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
	notes  []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) notef(format string, args ...any) {
	p.notes = append(p.notes, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

type options struct {
	dataDir    string
	series     []string
	mapFile    string
	geometry   string
	admissions []string
}

func main() {
	dataDir := flag.String("data-dir", "data", "directory containing the source files")
	series := flag.String("series", "us-counties-2020.csv,us-counties-2021.csv,us-counties-2022.csv,us-counties-2023.csv", "comma-separated series files")
	mapFile := flag.String("map", "us-counties-2023.csv", "county map file for cases and deaths")
	geometry := flag.String("geometry", "", "TopoJSON geometry file or URL (optional)")
	admissions := flag.String("admissions", "", "comma-separated admissions timeframes (optional)")
	flag.Parse()

	opts := options{
		dataDir:    *dataDir,
		series:     splitList(*series),
		mapFile:    *mapFile,
		geometry:   *geometry,
		admissions: splitList(*admissions),
	}
	if len(opts.series) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	os.Exit(run(context.Background(), os.Stdout, opts))
}

func run(ctx context.Context, out io.Writer, opts options) int {
	loader := source.NewLoader(opts.dataDir, 30*time.Second, 0,
		observability.NewUnregisteredMetrics(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	// ── Load all data sources ──
	fmt.Fprintln(out, "=== COVID Dashboard Data Validation ===")
	fmt.Fprintln(out)

	records, err := loader.LoadRecords(ctx, opts.series)
	if err != nil {
		fmt.Fprintf(out, "FATAL: load series files: %v\n", err)
		return 1
	}

	var mapRecords []domain.RawRecord
	if opts.mapFile != "" {
		if mapRecords, err = loader.LoadRecords(ctx, []string{opts.mapFile}); err != nil {
			fmt.Fprintf(out, "FATAL: load map file: %v\n", err)
			return 1
		}
	}

	var counties []string
	if opts.geometry != "" {
		if counties, err = loader.LoadCountyCodes(ctx, opts.geometry); err != nil {
			fmt.Fprintf(out, "FATAL: load geometry: %v\n", err)
			return 1
		}
	}

	admissions := make(map[string][]domain.RawRecord, len(opts.admissions))
	for _, tf := range opts.admissions {
		if _, err := domain.ParseTimeframe(tf); err != nil {
			fmt.Fprintf(out, "FATAL: %v\n", err)
			return 1
		}
		rows, err := loader.LoadRecords(ctx, []string{domain.AdmissionsFile(tf)})
		if err != nil {
			fmt.Fprintf(out, "FATAL: load admissions %s: %v\n", tf, err)
			return 1
		}
		admissions[tf] = rows
	}

	// ── Run validation phases ──
	phases := []*phase{
		validateSeriesOrder(records),
		validateTotals(records),
		validateDeltas(records),
		validateIdempotence(records),
	}
	if opts.mapFile != "" {
		phases = append(phases, validateMapCoverage(mapRecords, counties))
	}
	if len(admissions) > 0 {
		phases = append(phases, validateAdmissions(admissions))
	}

	// ── Report results ──
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Records: %d series rows, %d map rows, %d counties\n", len(records), len(mapRecords), len(counties))

	for _, p := range phases {
		for _, n := range p.notes {
			fmt.Fprintf(out, "  note (%s): %s\n", p.name, n)
		}
	}

	// Print detailed errors.
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

// ── Phases ──

func seriesMetrics() []domain.Metric {
	var out []domain.Metric
	for _, m := range domain.Metrics() {
		if spec, _ := m.Spec(); spec.Series {
			out = append(out, m)
		}
	}
	return out
}

func validateSeriesOrder(records []domain.RawRecord) *phase {
	p := &phase{name: "Series dates unique and ascending"}
	for _, m := range seriesMetrics() {
		s := domain.BuildCumulativeSeries(records, string(m))
		for i := 1; i < len(s); i++ {
			if !s[i].Date.After(s[i-1].Date) {
				p.errorf("%s: %s does not follow %s", m,
					s[i].Date.Format(domain.DateLayout), s[i-1].Date.Format(domain.DateLayout))
			}
		}
		if len(s) == 0 {
			p.notef("%s: no dated rows", m)
		}
	}
	return p
}

func validateTotals(records []domain.RawRecord) *phase {
	p := &phase{name: "Series total equals non-negative row sum"}
	for _, m := range seriesMetrics() {
		var want float64
		negatives := 0
		for _, rec := range records {
			if !rec.HasDate() {
				continue
			}
			v, ok := rec.Metric(string(m))
			if !ok {
				continue
			}
			if v < 0 {
				negatives++
				continue
			}
			want += v
		}
		got := domain.BuildCumulativeSeries(records, string(m)).Total()
		if math.Abs(got-want) > 1e-6*math.Max(1, want) {
			p.errorf("%s: series total %.0f, row sum %.0f", m, got, want)
		}
		if negatives > 0 {
			p.notef("%s: %d negative rows excluded", m, negatives)
		}
	}
	return p
}

func validateDeltas(records []domain.RawRecord) *phase {
	p := &phase{name: "Daily deltas re-accumulate"}
	for _, m := range seriesMetrics() {
		cumulative := domain.BuildCumulativeSeries(records, string(m))
		daily := domain.BuildDailyDeltaSeries(cumulative)

		wantLen := max(len(cumulative)-1, 0)
		if len(daily) != wantLen {
			p.errorf("%s: %d deltas for %d points", m, len(daily), len(cumulative))
			continue
		}
		for _, d := range daily {
			if d.Value < 0 {
				p.errorf("%s: negative delta %.0f on %s", m, d.Value, d.Date.Format(domain.DateLayout))
			}
		}
		if len(cumulative) == 0 {
			continue
		}

		if !cumulative.IsNonDecreasing() {
			clamped := 0
			for i := 1; i < len(cumulative); i++ {
				if cumulative[i].Value < cumulative[i-1].Value {
					clamped++
				}
			}
			p.notef("%s: %d downward corrections clamped to 0", m, clamped)
			continue
		}
		if diff := cmp.Diff(cumulative, domain.AccumulateDeltas(cumulative[0], daily)); diff != "" {
			p.errorf("%s: re-accumulated series differs (-want +got):\n%s", m, diff)
		}
	}
	return p
}

func validateIdempotence(records []domain.RawRecord) *phase {
	p := &phase{name: "Aggregation is idempotent"}
	for _, m := range seriesMetrics() {
		first := domain.BuildTimeSeries(m, records)
		second := domain.BuildTimeSeries(m, records)
		if !cmp.Equal(first, second) {
			p.errorf("%s: two builds over the same rows differ", m)
		}
	}
	return p
}

func validateMapCoverage(records []domain.RawRecord, counties []string) *phase {
	p := &phase{name: "Map table covers geometry"}
	for _, m := range seriesMetrics() {
		spec, _ := m.Spec()
		table := domain.BuildRegionMetricTable(records, spec.Field, spec.RegionField, spec.Scale)
		if table.Len() == 0 {
			p.errorf("%s: no county rows", m)
			continue
		}
		for _, code := range table.Codes() {
			if len(code) != 5 {
				p.errorf("%s: region code %q is not a county FIPS code", m, code)
			}
		}
		if len(counties) == 0 {
			continue
		}
		c := domain.BuildChoropleth(spec, table, counties)
		p.notef("%s: %d of %d counties without data", m, c.Missing, len(counties))
		if c.Missing == len(counties) {
			p.errorf("%s: no geometry county matched the map file", m)
		}
	}
	return p
}

func validateAdmissions(byTimeframe map[string][]domain.RawRecord) *phase {
	p := &phase{name: "Admissions bands aligned"}
	for tf, records := range byTimeframe {
		bands := domain.BuildAgeBandSeries(tf, records)
		if len(bands.Bands) == 0 || len(bands.Bands[0].Points) == 0 {
			p.errorf("%s: no dated rows", tf)
			continue
		}
		n := len(bands.Bands[0].Points)
		for _, b := range bands.Bands {
			if len(b.Points) != n {
				p.errorf("%s: band %s has %d points, want %d", tf, b.Key, len(b.Points), n)
			}
		}
		for _, key := range missingBands(records) {
			p.notef("%s: column %s absent, read as 0", tf, key)
		}
	}
	return p
}

func missingBands(records []domain.RawRecord) []string {
	if len(records) == 0 {
		return nil
	}
	var missing []string
	for _, b := range domain.AgeBands {
		if _, ok := records[0].Fields[b.Key]; !ok {
			missing = append(missing, b.Key)
		}
	}
	return missing
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
