package domain

// MapInputs are the datasets a map metric may draw on. Reference and
// CountyCodes are only consulted by metrics whose JoinKind needs them.
type MapInputs struct {
	Records     []RawRecord
	Reference   map[string]RegionValue // county FIPS reference, for JoinFIPSReference
	CountyCodes []string               // county codes from the geometry, for JoinStatePropagation
}

// BuildMetricTable builds the region table for a map metric, applying the
// join its spec calls for.
func BuildMetricTable(spec MetricSpec, in MapInputs) RegionMetricTable {
	table := BuildRegionMetricTable(in.Records, spec.Field, spec.RegionField, spec.Scale)
	switch spec.Join {
	case JoinFIPSReference:
		return JoinReference(table, in.Reference)
	case JoinStatePropagation:
		return PropagateStateMetric(table, in.CountyCodes, StateAbbrevByFIPS())
	default:
		return table
	}
}

// MapCell is a county ready for the choropleth: resolved value, fill color
// and tooltip text.
type MapCell struct {
	RegionCell
	Color   string  `json:"color"`
	Tooltip Tooltip `json:"tooltip"`
}

// Choropleth is the full payload for one map render.
type Choropleth struct {
	Metric Metric    `json:"metric"`
	Legend Legend    `json:"legend"`
	Cells  []MapCell `json:"cells"`
	// Missing counts cells with no data.
	Missing int `json:"missing"`
}

// BuildChoropleth resolves every county code against the table. When
// countyCodes is empty the table's own codes are used.
func BuildChoropleth(spec MetricSpec, table RegionMetricTable, countyCodes []string) Choropleth {
	codes := countyCodes
	if len(codes) == 0 {
		codes = table.Codes()
	}
	out := Choropleth{
		Metric: spec.Metric,
		Legend: spec.Legend,
		Cells:  make([]MapCell, 0, len(codes)),
	}
	for _, cell := range table.Resolve(codes) {
		color := NoDataColor
		if cell.NoData {
			out.Missing++
		} else {
			color = spec.Color(cell.Value)
		}
		out.Cells = append(out.Cells, MapCell{RegionCell: cell, Color: color, Tooltip: spec.Tooltip(cell)})
	}
	return out
}
