package source

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCountyCodes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "string ids",
			input: `{"objects":{"counties":{"geometries":[{"id":"01001"},{"id":"56045"}]}}}`,
			want:  []string{"01001", "56045"},
		},
		{
			name:  "numeric ids lose leading zero",
			input: `{"objects":{"counties":{"geometries":[{"id":1001},{"id":6037}]}}}`,
			want:  []string{"01001", "06037"},
		},
		{
			name:  "duplicates and missing ids dropped",
			input: `{"objects":{"counties":{"geometries":[{"id":"01001"},{"type":"Polygon"},{"id":null},{"id":"01001"}]}}}`,
			want:  []string{"01001"},
		},
		{
			name:  "no counties object",
			input: `{"objects":{"states":{"geometries":[{"id":"01"}]}}}`,
			want:  []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCountyCodes(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCountyCodes_Malformed(t *testing.T) {
	_, err := ParseCountyCodes(strings.NewReader(`{"objects":`))
	require.Error(t, err)
}
