package domain

import "strings"

// State describes a U.S. state or territory by its FIPS code.
type State struct {
	FIPS   string // 2-digit state FIPS code
	Abbrev string // USPS abbreviation
	Name   string // full name
	Label  string // AP-style short label used on the map, e.g. "Calif."
}

var states = []State{
	{"01", "AL", "Alabama", "Ala."},
	{"02", "AK", "Alaska", "Alaska"},
	{"04", "AZ", "Arizona", "Ariz."},
	{"05", "AR", "Arkansas", "Ark."},
	{"06", "CA", "California", "Calif."},
	{"08", "CO", "Colorado", "Colo."},
	{"09", "CT", "Connecticut", "Conn."},
	{"10", "DE", "Delaware", "Del."},
	{"11", "DC", "District of Columbia", "D.C."},
	{"12", "FL", "Florida", "Fla."},
	{"13", "GA", "Georgia", "Ga."},
	{"15", "HI", "Hawaii", "Hawaii"},
	{"16", "ID", "Idaho", "Idaho"},
	{"17", "IL", "Illinois", "Ill."},
	{"18", "IN", "Indiana", "Ind."},
	{"19", "IA", "Iowa", "Iowa"},
	{"20", "KS", "Kansas", "Kan."},
	{"21", "KY", "Kentucky", "Ky."},
	{"22", "LA", "Louisiana", "La."},
	{"23", "ME", "Maine", "Maine"},
	{"24", "MD", "Maryland", "Md."},
	{"25", "MA", "Massachusetts", "Mass."},
	{"26", "MI", "Michigan", "Mich."},
	{"27", "MN", "Minnesota", "Minn."},
	{"28", "MS", "Mississippi", "Miss."},
	{"29", "MO", "Missouri", "Mo."},
	{"30", "MT", "Montana", "Mont."},
	{"31", "NE", "Nebraska", "Neb."},
	{"32", "NV", "Nevada", "Nev."},
	{"33", "NH", "New Hampshire", "N.H."},
	{"34", "NJ", "New Jersey", "N.J."},
	{"35", "NM", "New Mexico", "N.M."},
	{"36", "NY", "New York", "N.Y."},
	{"37", "NC", "North Carolina", "N.C."},
	{"38", "ND", "North Dakota", "N.D."},
	{"39", "OH", "Ohio", "Ohio"},
	{"40", "OK", "Oklahoma", "Okla."},
	{"41", "OR", "Oregon", "Ore."},
	{"42", "PA", "Pennsylvania", "Pa."},
	{"44", "RI", "Rhode Island", "R.I."},
	{"45", "SC", "South Carolina", "S.C."},
	{"46", "SD", "South Dakota", "S.D."},
	{"47", "TN", "Tennessee", "Tenn."},
	{"48", "TX", "Texas", "Texas"},
	{"49", "UT", "Utah", "Utah"},
	{"50", "VT", "Vermont", "Vt."},
	{"51", "VA", "Virginia", "Va."},
	{"53", "WA", "Washington", "Wash."},
	{"54", "WV", "West Virginia", "W.Va."},
	{"55", "WI", "Wisconsin", "Wis."},
	{"56", "WY", "Wyoming", "Wyo."},
	{"60", "AS", "American Samoa", "A.S."},
	{"66", "GU", "Guam", "Guam"},
	{"69", "MP", "Northern Mariana Islands", "N.M.I."},
	{"72", "PR", "Puerto Rico", "P.R."},
	{"78", "VI", "U.S. Virgin Islands", "V.I."},
}

var (
	statesByFIPS   = indexStates(func(s State) string { return s.FIPS })
	statesByAbbrev = indexStates(func(s State) string { return s.Abbrev })
)

func indexStates(key func(State) string) map[string]State {
	m := make(map[string]State, len(states))
	for _, s := range states {
		m[key(s)] = s
	}
	return m
}

// StateByFIPS returns the state for a 2-digit code or any code prefixed by it.
func StateByFIPS(code string) (State, bool) {
	s, ok := statesByFIPS[StateFIPS(code)]
	return s, ok
}

// StateByAbbrev returns the state for a USPS abbreviation (case-insensitive).
func StateByAbbrev(abbrev string) (State, bool) {
	s, ok := statesByAbbrev[strings.ToUpper(strings.TrimSpace(abbrev))]
	return s, ok
}

// StateAbbrevByFIPS returns the stateFIPS -> USPS abbreviation translation used
// to join state-level datasets onto county geometries.
func StateAbbrevByFIPS() map[string]string {
	m := make(map[string]string, len(states))
	for _, s := range states {
		m[s.FIPS] = s.Abbrev
	}
	return m
}

// StateLabel returns the short map label for a state FIPS code, or "".
func StateLabel(code string) string {
	return statesByFIPS[StateFIPS(code)].Label
}

// NormalizeRegionCode trims a region code and restores leading zeros lost to
// numeric round-trips: 1-digit codes become 2-digit state codes and 4-digit
// codes become 5-digit county codes. Non-numeric codes (such as USPS
// abbreviations) are upper-cased.
func NormalizeRegionCode(code string) string {
	code = strings.TrimSpace(code)
	// Spreadsheet exports sometimes write "6001.0".
	code = strings.TrimSuffix(code, ".0")
	if code == "" {
		return ""
	}
	if !isDigits(code) {
		return strings.ToUpper(code)
	}
	switch len(code) {
	case 1:
		return "0" + code
	case 4:
		return "0" + code
	}
	return code
}

// StateFIPS returns the 2-digit state prefix of a state or county code, or ""
// when the code is not numeric.
func StateFIPS(code string) string {
	code = NormalizeRegionCode(code)
	if len(code) < 2 || !isDigits(code) {
		return ""
	}
	return code[:2]
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
