package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/couchcryptid/covid-dashboard-service/internal/domain"
)

// ParseCSV reads a header-first CSV stream into records. Short rows map only
// the columns they have; extra cells beyond the header are ignored. Blank
// lines are skipped by the reader.
func ParseCSV(r io.Reader) ([]domain.RawRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return []domain.RawRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	columns := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		columns[i] = strings.TrimSpace(h)
	}

	records := make([]domain.RawRecord, 0, 1024)
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		fields := make(map[string]string, len(columns))
		for i, col := range columns {
			if i >= len(row) || col == "" {
				continue
			}
			fields[col] = row[i]
		}
		records = append(records, domain.NewRawRecord(fields))
	}
	return records, nil
}
