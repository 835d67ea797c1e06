package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"smartbin-dashboard/internal/dashboard"
	"smartbin-dashboard/internal/model"
	"smartbin-dashboard/internal/render"
)

// NoHistoryAvailable is returned alongside an empty history.
const NoHistoryAvailable = "no history available"

type statusResponse struct {
	Status     model.CurrentStatus `json:"status"`
	Seen       bool                `json:"statusSeen"`
	Indicators render.Indicators   `json:"indicators"`
	Error      string              `json:"error,omitempty"`
}

type historyResponse struct {
	model.HistoryView
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// GetStatus returns the current bin status with its display values.
func (h *Handler) GetStatus(c *gin.Context) {
	snap := h.dash.Snapshot()
	c.JSON(http.StatusOK, statusResponse{
		Status:     snap.Status,
		Seen:       snap.StatusSeen,
		Indicators: render.NewIndicators(snap.Status),
		Error:      snap.StatusError,
	})
}

// GetHistory returns the history table and the chart buckets.
func (h *Handler) GetHistory(c *gin.Context) {
	snap := h.dash.Snapshot()
	resp := historyResponse{HistoryView: snap.History, Error: snap.HistoryError}
	if snap.History.Empty {
		resp.Message = NoHistoryAvailable
	}
	c.JSON(http.StatusOK, resp)
}

// GetSnapshot returns the whole derived state.
func (h *Handler) GetSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, h.dash.Snapshot())
}

// ToggleLid requests the inverse of the current lid state.
func (h *Handler) ToggleLid(c *gin.Context) {
	err := h.dash.ToggleLid()
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"status": "requested"})
	case errors.Is(err, dashboard.ErrNoStatus), errors.Is(err, dashboard.ErrStopped):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
