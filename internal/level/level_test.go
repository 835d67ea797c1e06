package level

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	inputs := []float64{-1e9, -0.5, 0, 12.5, 100, 100.01, 120, 1e12, math.Inf(1), math.Inf(-1), math.NaN()}
	for _, in := range inputs {
		got := Clamp(in)
		assert.GreaterOrEqual(t, got, 0.0, "input %v", in)
		assert.LessOrEqual(t, got, 100.0, "input %v", in)
		assert.Equal(t, got, Clamp(got), "clamp must be idempotent for %v", in)
	}
	assert.Equal(t, 100.0, Clamp(120))
	assert.Equal(t, 0.0, Clamp(-3))
	assert.Equal(t, 42.5, Clamp(42.5))
}

func TestClassify(t *testing.T) {
	testCases := []struct {
		level    float64
		expected Color
	}{
		{0, Green},
		{30, Green},
		{49, Green},
		{50, LightAmber},
		{60, LightAmber},
		{70, LightAmber},
		{71, DarkAmber},
		{80, DarkAmber},
		{95, DarkAmber},
		{96, Red},
		{99, Red},
		{100, Red},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, Classify(tc.level), "level %v", tc.level)
	}
}

func TestColorHex(t *testing.T) {
	seen := map[string]bool{}
	for _, c := range []Color{Green, LightAmber, DarkAmber, Red} {
		hex := c.Hex()
		assert.Len(t, hex, 7)
		assert.False(t, seen[hex], "duplicate hex %s", hex)
		seen[hex] = true
	}
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 33.33, Round2(33.3333))
	assert.Equal(t, 66.67, Round2(66.666))
	assert.Equal(t, 40.0, Round2(40))
}
