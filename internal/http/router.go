// Package http exposes the widgets to a host page: JSON actions, session
// events over a websocket and the Prometheus endpoint.
package http

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sqmu-io/sqmu-dapp/internal/metrics"
	"github.com/sqmu-io/sqmu-dapp/internal/widgets"
)

type Options struct {
	// AllowedOrigins limits CORS and websocket origins. Empty allows all.
	AllowedOrigins []string
	// LocalOnly rejects wallet actions from non-loopback peers.
	LocalOnly bool
	Metrics   *metrics.Metrics
	Gatherer  prometheus.Gatherer
}

func NewRouter(manager *widgets.Manager, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), withRequestID())
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware())
	}

	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", requestIDHeader},
		ExposeHeaders: []string{requestIDHeader},
		MaxAge:        10 * time.Minute,
	}
	if len(opts.AllowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = opts.AllowedOrigins
		corsCfg.AllowCredentials = true
	}
	r.Use(cors.New(corsCfg))

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	h := NewHandler(manager, opts.AllowedOrigins)

	r.GET("/healthz", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	w := r.Group("/widgets")
	{
		w.GET("", h.ListWidgets)
		w.GET("/:id", h.GetWidget)
		w.GET("/:id/events", h.Events)

		w.GET("/:id/property", h.Property)
		w.GET("/:id/payment-tokens", h.PaymentTokens)
		w.GET("/:id/portfolio", h.Portfolio)
		w.GET("/:id/listings", h.Listings)
	}

	actions := w.Group("/:id")
	if opts.LocalOnly {
		actions.Use(withLoopbackOnly())
	}
	{
		actions.POST("/connect", h.Connect)
		actions.POST("/disconnect", h.Disconnect)
		actions.POST("/chain", h.SwitchChain)
		actions.POST("/buy", h.Buy)
		actions.POST("/sell", h.Sell)
		actions.POST("/listings/buy", h.BuyListing)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, envelope{Error: "not_found"})
	})
	return r
}
