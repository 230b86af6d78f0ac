package numeric_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leanstats/internal/pkg/numeric"
)

func TestToInt64E(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		want    int64
		wantErr bool
	}{
		{"plain string", "42", 42, false},
		{"leading zero is decimal", "010", 10, false},
		{"leading zeros with eight", "08", 8, false},
		{"negative with leading zero", "-010", -10, false},
		{"zero", "000", 0, false},
		{"padded", " 7 ", 7, false},
		{"integer", 12, 12, false},
		{"float", 12.0, 12, false},
		{"not a number", "abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := numeric.ToInt64E(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToInt(t *testing.T) {
	assert.Equal(t, 8, numeric.ToInt("08"))
	assert.Equal(t, 100, numeric.ToInt("0100"))
	assert.Equal(t, 0, numeric.ToInt("abc"))
	assert.Equal(t, 0, numeric.ToInt(nil))
}
