package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Check reports whether one dependency is reachable.
type Check func(ctx context.Context) error

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

const readyTimeout = 2 * time.Second

// RegisterHealthRoutes adds liveness, readiness and the Prometheus endpoint.
// Liveness never touches dependencies.
func RegisterHealthRoutes(router gin.IRouter, checks map[string]Check, metrics http.Handler) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, healthResponse{Status: "ok"})
	})

	router.GET("/health/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
		defer cancel()

		names := make([]string, 0, len(checks))
		for name := range checks {
			names = append(names, name)
		}
		sort.Strings(names)

		resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(checks))}
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				resp.Status = "degraded"
				resp.Checks[name] = err.Error()
				continue
			}
			resp.Checks[name] = "ok"
		}
		status := http.StatusOK
		if resp.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, resp)
	})

	if metrics == nil {
		metrics = promhttp.Handler()
	}
	router.GET("/metrics", gin.WrapH(metrics))
}
