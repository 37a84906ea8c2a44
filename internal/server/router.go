package server

import (
	"context"
	"log/slog"
	"net/http"
	"slices"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthCheck reports the state of one dependency for /health.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) map[string]string
}

// JoinChecks returns a fresh slice holding every group in order. Appending
// to the result never writes into a caller's backing array.
func JoinChecks(groups ...[]HealthCheck) []HealthCheck {
	return slices.Concat(groups...)
}

// NewRouter builds the engine every API binary starts from: recovery,
// request ids, access logging, CORS when origins are given, /health and
// /metrics.
func NewRouter(service string, origins []string, logger *slog.Logger, checks ...HealthCheck) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(Logging(logger))

	if len(origins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
			AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", UserHeader},
			AllowCredentials: true,
		}))
	}

	r.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		response := gin.H{"status": "healthy", "service": service}
		for _, hc := range checks {
			result := hc.Check(c.Request.Context())
			if result["status"] != "up" {
				status = http.StatusServiceUnavailable
				response["status"] = "degraded"
			}
			response[hc.Name] = result
		}
		c.JSON(status, response)
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
