package api

import (
	"smartbin-dashboard/internal/model"
	"smartbin-dashboard/internal/render"
	"smartbin-dashboard/internal/store"

	"github.com/SherClockHolmes/webpush-go"
)

// Dashboard is the live state the handlers read and act on.
type Dashboard interface {
	Snapshot() model.Snapshot
	ToggleLid() error
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	dash    Dashboard
	charts  *render.Charts
	store   store.Store // nil when no database is configured
	webpush *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(dash Dashboard, charts *render.Charts, s store.Store, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		dash:    dash,
		charts:  charts,
		store:   s,
		webpush: webpushOptions,
	}
}
