// Package handlers is the HTTP surface of the service.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/badluck/service/internal/auth"
	"github.com/jason-s-yu/badluck/service/internal/logging"
)

// RouterConfig collects what NewRouter wires together. Metrics may be nil
// to use the default Prometheus registry.
type RouterConfig struct {
	AllowedOrigins []string
	Logger         logrus.FieldLogger
	Tokens         *auth.TokenIssuer
	Checks         map[string]Check
	Metrics        http.Handler

	Cards   *CardsHandler
	History *HistoryHandler
	Auth    *AuthHandler
	Play    *PlayHandler
}

// EventsPath is served outside gin; see PlayHandler.EventsHandler.
const EventsPath = "/api/session/events"

// NewRouter builds the gin engine with middleware and every route group, and
// mounts the websocket event stream beside it.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(EventsPath, cfg.Play.EventsHandler(cfg.Tokens))
	mux.Handle("/", newEngine(cfg))
	return mux
}

func newEngine(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		logging.RequestLogger(cfg.Logger),
		cors.New(newCORSConfig(cfg.AllowedOrigins)),
		newGzipMiddleware(),
		auth.Middleware(cfg.Tokens),
	)

	RegisterHealthRoutes(router, cfg.Checks, cfg.Metrics)

	api := router.Group("/api")
	cfg.Cards.RegisterRoutes(api)
	cfg.History.RegisterRoutes(api)
	cfg.Auth.RegisterRoutes(api)
	cfg.Play.RegisterRoutes(api)
	return router
}

func newCORSConfig(origins []string) cors.Config {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = origins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	return corsConfig
}

func newGzipMiddleware() gin.HandlerFunc {
	return gzip.Gzip(gzip.DefaultCompression, gzip.WithCustomShouldCompressFn(func(c *gin.Context) bool {
		if !strings.Contains(c.GetHeader("Accept-Encoding"), "gzip") {
			return false
		}
		path := c.Request.URL.Path
		return !strings.HasPrefix(path, "/health") && path != "/metrics"
	}))
}
