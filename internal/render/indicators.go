package render

import (
	"fmt"

	"smartbin-dashboard/internal/level"
	"smartbin-dashboard/internal/model"
)

// Indicators are the display strings of the status cards.
type Indicators struct {
	Fill     string      `json:"fill"`
	Distance string      `json:"distance"`
	Lid      string      `json:"lid"`
	Person   string      `json:"person"`
	Vehicle  string      `json:"vehicle"`
	Color    level.Color `json:"color"`
	Hex      string      `json:"hex"`
}

// NewIndicators formats a status for the cards.
func NewIndicators(s model.CurrentStatus) Indicators {
	c := level.Classify(s.FillPercent)
	return Indicators{
		Fill:     fmt.Sprintf("%.2f%%", s.FillPercent),
		Distance: fmt.Sprintf("%.0f mm", s.DistanceMm),
		Lid:      choose(s.LidOpen, "Abierta", "Cerrada"),
		Person:   choose(s.PersonDetected, "Sí", "No"),
		Vehicle:  choose(s.VehicleMoving, "Camino a vaciarse", "Esperando basura"),
		Color:    c,
		Hex:      c.Hex(),
	}
}

func choose(b bool, yes, no string) string {
	if b {
		return yes
	}
	return no
}
