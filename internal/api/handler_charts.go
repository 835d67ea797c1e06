package api

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"smartbin-dashboard/internal/render"
)

const htmlContentType = "text/html; charset=utf-8"

// GetDashboard renders the dashboard page.
func (h *Handler) GetDashboard(c *gin.Context) {
	var buf bytes.Buffer
	if err := render.Dashboard(&buf, h.dash.Snapshot()); err != nil {
		log.WithError(err).Error("Failed to render dashboard")
		c.String(http.StatusInternalServerError, "failed to render dashboard")
		return
	}
	c.Data(http.StatusOK, htmlContentType, buf.Bytes())
}

// GetGaugeChart serves the fill level gauge.
func (h *Handler) GetGaugeChart(c *gin.Context) {
	h.serveSlot(c, h.charts.Gauge, "Nivel de llenado", "Sin datos del tacho.")
}

// GetTrendChart serves the averaged level line chart.
func (h *Handler) GetTrendChart(c *gin.Context) {
	h.serveSlot(c, h.charts.Trend, "Tendencia", render.NoHistoryMessage)
}

func (h *Handler) serveSlot(c *gin.Context, slot *render.Slot, title, placeholder string) {
	if page, ok := slot.Page(); ok {
		c.Data(http.StatusOK, htmlContentType, page)
		return
	}

	var buf bytes.Buffer
	if err := render.Message(&buf, title, placeholder); err != nil {
		c.String(http.StatusInternalServerError, "failed to render chart")
		return
	}
	c.Data(http.StatusOK, htmlContentType, buf.Bytes())
}
