package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	defaultArchiveLimit = 50
	maxArchiveLimit     = 1000
)

type archivedReading struct {
	ID         string    `json:"id"`
	Level      float64   `json:"level"`
	DistanceMm float64   `json:"distanceMm"`
	ObservedAt time.Time `json:"observedAt"`
}

// GetArchive returns the most recent archived readings, newest first.
func (h *Handler) GetArchive(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}

	limit := defaultArchiveLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxArchiveLimit)
	}

	readings, err := h.store.RecentReadings(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]archivedReading, len(readings))
	for i, r := range readings {
		out[i] = archivedReading{
			ID:         r.StoreKey,
			Level:      r.Level,
			DistanceMm: r.DistanceMm,
			ObservedAt: r.ObservedAt,
		}
	}
	c.JSON(http.StatusOK, gin.H{"readings": out})
}
