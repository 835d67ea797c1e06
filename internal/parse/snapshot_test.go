package parse

import (
	"encoding/json"
	"math"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"smartbin-dashboard/config"
	"smartbin-dashboard/internal/model"
)

func TestStatus(t *testing.T) {
	fields := config.DefaultStatusFields()

	testCases := []struct {
		name     string
		raw      any
		expected model.CurrentStatus
	}{
		{
			name: "Overfull reading is clamped",
			raw: map[string]any{
				"porcentajeLlenado":    120.0,
				"distanciaResiduos_mm": 50.0,
				"tapaAbierta":          true,
				"personaDetectada":     false,
				"enMovimiento":         false,
			},
			expected: model.CurrentStatus{FillPercent: 100, DistanceMm: 50, LidOpen: true},
		},
		{
			name:     "Nil snapshot",
			raw:      nil,
			expected: model.CurrentStatus{},
		},
		{
			name:     "Wrong type at path",
			raw:      "not an object",
			expected: model.CurrentStatus{},
		},
		{
			name: "Missing fields default",
			raw: map[string]any{
				"porcentajeLlenado": 42.5,
			},
			expected: model.CurrentStatus{FillPercent: 42.5},
		},
		{
			name: "Numeric strings and truthy numbers",
			raw: map[string]any{
				"porcentajeLlenado":    "63.2",
				"distanciaResiduos_mm": json.Number("310"),
				"tapaAbierta":          1.0,
				"personaDetectada":     "si",
				"enMovimiento":         0.0,
			},
			expected: model.CurrentStatus{FillPercent: 63.2, DistanceMm: 310, LidOpen: true, PersonDetected: true},
		},
		{
			name: "Negative values are floored",
			raw: map[string]any{
				"porcentajeLlenado":    -4.0,
				"distanciaResiduos_mm": -10.0,
			},
			expected: model.CurrentStatus{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if diff := cmp.Diff(tc.expected, Status(tc.raw, fields)); diff != "" {
				t.Errorf("Status() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStatus_CustomFieldNames(t *testing.T) {
	fields := config.DefaultStatusFields()
	fields.FillPercent = "currentLevel"

	status := Status(map[string]any{"currentLevel": 77.0, "porcentajeLlenado": 10.0}, fields)
	assert.Equal(t, 77.0, status.FillPercent)
}

func TestHistory(t *testing.T) {
	fields := config.DefaultHistoryFields()

	raw := map[string]any{
		"-Nabc": map[string]any{"level": 40.0, "timestamp": 1700000000.0, "distance_mm": 300.0},
		"-Nabd": map[string]any{"level": 150.0, "timestamp": 1700000060.0},
		"-Nabe": "garbage",
	}

	records := History(raw, fields)
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })

	expected := []model.HistoryRecord{
		{ID: "-Nabc", Level: 40, TimestampSeconds: 1700000000, DistanceMm: 300},
		{ID: "-Nabd", Level: 100, TimestampSeconds: 1700000060},
	}
	if diff := cmp.Diff(expected, records); diff != "" {
		t.Errorf("History() mismatch (-want +got):\n%s", diff)
	}
}

func TestHistory_ArrayAndEmpty(t *testing.T) {
	fields := config.DefaultHistoryFields()

	records := History([]any{nil, map[string]any{"level": 5.0, "timestamp": 1700000000.0}}, fields)
	assert.Len(t, records, 1)
	assert.Equal(t, "1", records[0].ID)

	assert.Empty(t, History(nil, fields))
	assert.Empty(t, History(map[string]any{}, fields))
	assert.Empty(t, History(3.0, fields))
}

func TestNumberAndTruthy(t *testing.T) {
	assert.Equal(t, 3.0, Number(3))
	assert.Equal(t, 0.0, Number("abc"))
	assert.Equal(t, 0.0, Number(map[string]any{}))
	assert.Equal(t, 0.0, Number(nil))

	assert.True(t, Truthy(true))
	assert.True(t, Truthy(2))
	assert.False(t, Truthy("false"))
	assert.False(t, Truthy("0"))
	assert.False(t, Truthy(""))
	assert.False(t, Truthy(math.NaN()))
	assert.False(t, Truthy(nil))
}
