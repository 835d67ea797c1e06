package parse

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"smartbin-dashboard/config"
	"smartbin-dashboard/internal/level"
	"smartbin-dashboard/internal/model"
)

// Status reduces a raw status snapshot into a CurrentStatus.
// Missing or mistyped fields fall back to zero values; no error is returned.
func Status(raw any, fields config.StatusFields) model.CurrentStatus {
	data, _ := raw.(map[string]any)

	distance := Number(data[fields.DistanceMm])
	if distance < 0 || math.IsNaN(distance) {
		distance = 0
	}

	return model.CurrentStatus{
		FillPercent:    level.Clamp(Number(data[fields.FillPercent])),
		DistanceMm:     distance,
		LidOpen:        Truthy(data[fields.LidOpen]),
		PersonDetected: Truthy(data[fields.PersonDetected]),
		VehicleMoving:  Truthy(data[fields.VehicleMoving]),
	}
}

// History decodes the keyed history mapping into records.
// Entries that are not objects are skipped. Arrays are accepted as well, keyed by index,
// since sequential keys come back from the store as a list.
func History(raw any, fields config.HistoryFields) []model.HistoryRecord {
	var records []model.HistoryRecord
	add := func(id string, v any) {
		entry, ok := v.(map[string]any)
		if !ok {
			return
		}
		records = append(records, model.HistoryRecord{
			ID:               id,
			Level:            level.Clamp(Number(entry[fields.Level])),
			TimestampSeconds: Number(entry[fields.Timestamp]),
			DistanceMm:       Number(entry[fields.DistanceMm]),
		})
	}

	switch data := raw.(type) {
	case map[string]any:
		for id, v := range data {
			add(id, v)
		}
	case []any:
		for i, v := range data {
			add(strconv.Itoa(i), v)
		}
	}
	return records
}

// Number coerces a decoded JSON value to float64. Unknown types yield 0.
func Number(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case int32:
		return float64(n)
	case uint:
		return float64(n)
	case uint64:
		return float64(n)
	case uint32:
		return float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0
		}
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}

// Truthy coerces a decoded JSON value to bool the way the firmware's consumers read it.
func Truthy(v any) bool {
	switch b := v.(type) {
	case nil:
		return false
	case bool:
		return b
	case string:
		s := strings.TrimSpace(strings.ToLower(b))
		return s != "" && s != "false" && s != "0"
	}
	n := Number(v)
	return n != 0 && !math.IsNaN(n)
}
