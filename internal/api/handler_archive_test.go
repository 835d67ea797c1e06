package api

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartbin-dashboard/internal/model"
)

func TestGetArchive(t *testing.T) {
	s := newFakeStore()
	s.readings = []model.LevelReading{
		{StoreKey: "-Nb", Level: 55, DistanceMm: 210, ObservedAt: time.Unix(1_700_000_060, 0).UTC()},
		{StoreKey: "-Na", Level: 50, DistanceMm: 230, ObservedAt: time.Unix(1_700_000_000, 0).UTC()},
	}
	r, _ := setupRouter(&fakeDashboard{}, s, RouterOptions{})

	w := do(r, http.MethodGet, "/api/archive", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, defaultArchiveLimit, s.limit)

	var resp struct {
		Readings []archivedReading `json:"readings"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Readings, 2)
	assert.Equal(t, "-Nb", resp.Readings[0].ID)

	w = do(r, http.MethodGet, "/api/archive?limit=5000", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, maxArchiveLimit, s.limit)

	for _, bad := range []string{"0", "-3", "abc"} {
		w = do(r, http.MethodGet, "/api/archive?limit="+bad, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, bad)
	}

	s.err = errBoom
	w = do(r, http.MethodGet, "/api/archive?limit=1", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
