// Package level holds the fill-level arithmetic shared by the reducer and the views.
package level

import "math"

// Color is the display class of a fill level.
type Color string

const (
	Green      Color = "green"
	LightAmber Color = "light-amber"
	DarkAmber  Color = "dark-amber"
	Red        Color = "red"
)

// Hex returns the CSS color used for gauge fills and text.
func (c Color) Hex() string {
	switch c {
	case LightAmber:
		return "#fbbf24"
	case DarkAmber:
		return "#d97706"
	case Red:
		return "#ef4444"
	default:
		return "#4ade80"
	}
}

// Clamp bounds a level to [0,100]. NaN becomes 0.
func Clamp(l float64) float64 {
	switch {
	case math.IsNaN(l):
		return 0
	case l < 0:
		return 0
	case l > 100:
		return 100
	}
	return l
}

// Classify maps a level to its color using fixed thresholds.
func Classify(l float64) Color {
	switch {
	case l < 50:
		return Green
	case l <= 70:
		return LightAmber
	case l <= 95:
		return DarkAmber
	default:
		return Red
	}
}

// Round2 rounds to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
