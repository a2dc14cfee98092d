package convert

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundFloat64(t *testing.T) {
	assert.Equal(t, 11.3333, FourDecimals(34.0/3.0))
	assert.Equal(t, 1.23, RoundFloat64(1.2345678, 2))
	assert.Equal(t, 1.01, RoundFloat64(1.005, 2))
	assert.Equal(t, -1.01, RoundFloat64(-1.005, 2))
	assert.Equal(t, 2.0001, FourDecimals(2.00005))
	assert.Equal(t, 0.1235, FourDecimals(0.12345))
	assert.True(t, math.IsInf(FourDecimals(math.Inf(1)), 1))
}

func TestEURPerMWhToCents(t *testing.T) {
	tests := []struct {
		in       float64
		expected float64
	}{
		{in: 85.43, expected: 8.543},
		{in: -1.07, expected: -0.107},
		{in: 0, expected: 0},
		{in: 123.456789, expected: 12.3457},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, EURPerMWhToCents(tt.in))
	}
}

func TestMajorToMinor(t *testing.T) {
	assert.Equal(t, 28.53, MajorToMinor(0.2853))
	assert.Equal(t, 1.1, MajorToMinor(0.011))
}

func TestSum(t *testing.T) {
	assert.Equal(t, 16.68, Sum(8.54, 0.64, 7.5))
	assert.Equal(t, 0.3, Sum(0.1, 0.2))
}
