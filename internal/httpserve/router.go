// Package httpserve exposes the manager's observability endpoints over
// echo: the Prometheus exposition, the JSON status document and probes.
package httpserve

import (
	"net/http"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/bnema/stevedore/internal/metrics"
)

// serviceName identifies this server in the endpoint index.
const serviceName = "stevedore"

// NewRouter builds the echo instance serving the observability routes.
// Request metrics register on the given registry and /metrics renders
// everything gathered from it.
func NewRouter(store *metrics.Store, registry *prometheus.Registry) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = 30 * time.Second
	e.Server.WriteTimeout = 30 * time.Second

	e.Use(middleware.Recover())
	e.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(20),
			Burst:     60,
			ExpiresIn: 3 * time.Minute,
		}),
	}))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  serviceName,
		Subsystem:  "http",
		Registerer: registry,
	}))

	return RegisterRoutes(e, store, registry)
}

// RegisterRoutes binds every endpoint the manager serves.
func RegisterRoutes(e *echo.Echo, store *metrics.Store, gatherer prometheus.Gatherer) *echo.Echo {
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{
		Gatherer: gatherer,
	}))
	e.GET("/status", statusHandler(store))
	e.GET("/health", healthHandler)
	e.GET("/healthz", healthHandler)
	e.GET("/ready", readyHandler)
	e.GET("/readyz", readyHandler)
	e.GET("/", indexHandler)
	return e
}

func statusHandler(store *metrics.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, metrics.BuildStatus(store.Snapshot()))
	}
}

func healthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "healthy"})
}

func readyHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
}

func indexHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"name": serviceName,
		"endpoints": map[string]string{
			"/metrics": "Prometheus metrics",
			"/status":  "JSON status overview",
			"/health":  "Health check",
			"/ready":   "Readiness check",
		},
	})
}
