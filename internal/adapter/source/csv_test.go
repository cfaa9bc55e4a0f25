package source

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCSV(t *testing.T) {
	input := "\ufeffdate, county ,state,fips,cases,deaths\n" +
		"2020-01-21,Snohomish,Washington,53061,1,0\n" +
		"2020-01-22,\"King, WA\",Washington,53033,\"1,204\",N/A\n"

	records, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, time.Date(2020, 1, 21, 0, 0, 0, 0, time.UTC), first.Date)
	assert.Equal(t, "Snohomish", first.Field("county"))
	assert.Equal(t, "53061", first.Field("fips"))

	second := records[1]
	assert.Equal(t, "King, WA", second.Field("county"))
	cases, ok := second.Metric("cases")
	assert.True(t, ok)
	assert.InDelta(t, 1204, cases, 0)
	_, ok = second.Metric("deaths")
	assert.False(t, ok, "non-numeric cells are absent, not zero")
}

func TestParseCSV_ShortAndLongRows(t *testing.T) {
	input := "date,fips,cases\n2020-03-01,06037\n2020-03-02,06037,4,extra\n"

	records, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 2)

	_, ok := records[0].Metric("cases")
	assert.False(t, ok)
	v, ok := records[1].Metric("cases")
	assert.True(t, ok)
	assert.InDelta(t, 4, v, 0)
}

func TestParseCSV_MissingDate(t *testing.T) {
	records, err := ParseCSV(strings.NewReader("date,cases\n,7\nnot-a-date,3\n"))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.False(t, records[0].HasDate())
	assert.False(t, records[1].HasDate())
}

func TestParseCSV_Empty(t *testing.T) {
	records, err := ParseCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, records)

	records, err = ParseCSV(strings.NewReader("date,cases\n"))
	require.NoError(t, err)
	assert.Empty(t, records)
}
