package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"smartbin-dashboard/internal/mw"
)

// RouterOptions configures the middleware and the optional endpoints.
type RouterOptions struct {
	RateLimit rate.Limit
	RateBurst int
	Limiter   *mw.IPRateLimiter // overrides RateLimit and RateBurst when set
	Cache     *mw.ResponseCache // nil disables response caching
	Live      gin.HandlerFunc   // websocket endpoint, nil to disable
	Gatherer  prometheus.Gatherer
}

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	r := gin.Default()

	limiter := opts.Limiter
	if limiter == nil {
		limiter = mw.NewIPRateLimiter(opts.RateLimit, opts.RateBurst)
	}
	rateLimiter := mw.RateLimiter(limiter)
	var caching gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if opts.Cache != nil {
		caching = opts.Cache.Middleware()
	}

	r.GET("/", h.GetDashboard)
	r.GET("/charts/gauge", h.GetGaugeChart)
	r.GET("/charts/trend", h.GetTrendChart)
	if opts.Live != nil {
		r.GET("/ws", opts.Live)
	}
	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/status", caching, h.GetStatus)
		api.GET("/history", caching, h.GetHistory)
		api.GET("/snapshot", caching, h.GetSnapshot)
		api.POST("/lid/toggle", h.ToggleLid)

		api.GET("/archive", h.GetArchive)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}

// NewUnavailableRouter answers every request with 503 and the reason the
// data source could not be reached.
func NewUnavailableRouter(cause error) *gin.Engine {
	r := gin.Default()
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":  "data source unavailable",
			"detail": cause.Error(),
		})
	})
	return r
}
