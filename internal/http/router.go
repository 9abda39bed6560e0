// Package httpapi wires the ops HTTP API (Gin) to the claim core. It
// centralizes tracing, correlation ids, logging, panic recovery, metrics,
// rate limiting, CORS, compression and security headers.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/claimbot/internal/config"
	"github.com/tbourn/claimbot/internal/http/handlers"
	"github.com/tbourn/claimbot/internal/http/middleware"
)

// Deps are the services the routes call into.
type Deps struct {
	Events      handlers.EventHandler
	Claims      handlers.ClaimReader
	Collections handlers.CollectionReader

	// Limiter overrides the per-user/IP limiter. When nil one is built from
	// cfg.RateRPS and cfg.RateBurst.
	Limiter *middleware.RateLimiter
}

// RegisterRoutes attaches middleware and endpoints to r.
//
// Middleware order matters:
//  1. OpenTelemetry
//  2. RequestID
//  3. Logger, Recovery
//  4. Body size limit
//  5. Metrics
//  6. CORS, gzip, security headers
//
// The API group adds OpsAuth, ActingUser and the per-user rate limiter, in
// that order, so X-User-ID is only honoured for callers holding the ops token.
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(), middleware.Recovery())
	r.Use(limitBody(1 << 20))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	rl := deps.Limiter
	if rl == nil {
		rl = middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	}

	if h := corsMiddleware(cfg.CORS.AllowedOrigins); h != nil {
		r.Use(h)
	}
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      true,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	h := handlers.New(deps.Events, deps.Claims, deps.Collections)
	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(middleware.OpsAuth(cfg.OpsToken), middleware.ActingUser(), rl.Handler())
	{
		api.GET("/users/:id/collection", h.ListCollection)

		api.POST("/claims", h.CreateClaim)
		api.GET("/claims/:messageId", h.GetClaim)

		api.POST("/browser/sessions", h.OpenBrowser)
		api.POST("/browser/sessions/:id/navigate", h.NavigateBrowser)
		api.POST("/browser/sessions/:id/clear", h.ClearBrowserEntry)
	}
}

// corsMiddleware echoes allow-listed origins. With no origins configured it
// returns nil and no cross-origin access is granted.
func corsMiddleware(origins []string) gin.HandlerFunc {
	if len(origins) == 0 {
		return nil
	}
	return cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderUserID},
		ExposeHeaders: []string{"X-Request-ID", "Content-Length"},
		MaxAge:        12 * time.Hour,
	})
}

// limitBody caps request bodies at maxBytes.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
