package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCoords(t *testing.T) {
	tests := []struct {
		name    string
		lat     float64
		lng     float64
		wantErr bool
	}{
		{"valid", 41.88, -87.63, false},
		{"boundary lat", 90, 0, false},
		{"boundary lng", 0, -180, false},
		{"lat too high", 90.1, 0, true},
		{"lat too low", -91, 0, true},
		{"lng too high", 0, 180.5, true},
		{"lng too low", 0, -181, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCoords(tt.lat, tt.lng)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidateHorizon(t *testing.T) {
	require.NoError(t, ValidateHorizon(1))
	require.NoError(t, ValidateHorizon(30))
	require.Error(t, ValidateHorizon(0))
	require.Error(t, ValidateHorizon(31))
}

func TestValidateAvoidRadius(t *testing.T) {
	require.NoError(t, ValidateAvoidRadius(0.1))
	require.NoError(t, ValidateAvoidRadius(5.0))
	require.Error(t, ValidateAvoidRadius(0.05))
	require.Error(t, ValidateAvoidRadius(5.1))
}

func TestNormalizeCategory(t *testing.T) {
	assert.Equal(t, "THEFT", NormalizeCategory("  theft "))
	assert.Equal(t, "", NormalizeCategory(""))
}

func TestMatchesCategory(t *testing.T) {
	in := Incident{Category: "MOTOR VEHICLE THEFT"}

	assert.True(t, in.MatchesCategory(""))
	assert.True(t, in.MatchesCategory("theft"))
	assert.True(t, in.MatchesCategory("Motor Vehicle"))
	assert.False(t, in.MatchesCategory("battery"))
}
