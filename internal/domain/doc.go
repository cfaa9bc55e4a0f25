// Package domain models U.S. COVID-19 dashboard data and the aggregation rules
// that turn raw source rows into chart-ready series and choropleth tables.
//
// # Data Sources
//
// Time-series charts are built from the New York Times county files
// (us-counties-2020.csv through us-counties-2023.csv). Each row is one county
// on one day and carries running totals:
//
//	date,county,state,fips,cases,deaths
//	2020-03-01,Snohomish,Washington,53061,1,0
//
// The choropleth map additionally reads:
//
//	CDC vaccination file    FIPS, Completeness_pct (percent of residents fully vaccinated)
//	fips-by-state.csv       fips, name, state (county reference used for labels)
//	HHS hospital file       state (USPS abbreviation), hospital_onset_covid
//
// Age-banded admissions come from <timeframe>_data.csv with one column per band
// (under_18, 18_29, 30_49, 50_59, 60_69, 70_79, 80_plus).
//
// # Conventions
//
// Dates use ISO form "2006-01-02". US-style "01/02/2006" is accepted as well.
//
// Numbers are parsed leniently: surrounding whitespace and thousands
// separators are stripped. Anything that still fails to parse is treated as
// absent, never as zero and never as NaN.
//
// FIPS codes are strings. State codes are 2 digits and county codes are 5
// digits, where the first 2 digits are the state. Codes that lost their
// leading zero in a spreadsheet round-trip ("6001") are re-padded.
//
// # Aggregation Policy
//
// Cumulative series sum max(value, 0) per date. Negative per-row values
// appear when upstream corrects earlier counts downward; they are excluded
// rather than subtracted. Daily deltas are clamped at zero for the same reason.
// Both choices are lossy: a corrected series cannot be reconstructed from the
// output.
//
// Region tables are last-write-wins per code. A region missing from the
// source resolves to "no data", which is distinct from a reported zero.
package domain
