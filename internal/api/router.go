package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/farosearch/faro/internal/dbpool"
	"github.com/farosearch/faro/internal/domain"
	"github.com/farosearch/faro/internal/middleware"
	"github.com/farosearch/faro/internal/search"
	"github.com/farosearch/faro/internal/store"
	"github.com/farosearch/faro/internal/ui"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	Log       *logrus.Logger
	Pool      *dbpool.Pool
	Documents []domain.Document
	Engine    *search.Engine
	History   *store.HistoryStore
	Favorites *store.FavoritesStore
	Users     *store.UserStore
	Version   string
	DevMode   bool
}

// Router-level limits.
const (
	maxBodySize = 1 << 20 // 1 MB
	rateLimit   = 100     // requests per second per IP
	rateBurst   = 200     // token bucket burst size
)

// setupMiddleware configures all middleware on the Gin engine.
func setupMiddleware(ctx context.Context, r *gin.Engine, deps *RouterDeps) {
	r.SetTrustedProxies(nil) //nolint:errcheck // nil always succeeds.
	r.Use(middleware.RequestID())
	r.Use(ginLogger(deps.Log))
	r.Use(gin.Recovery())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.MaxBodySize(maxBodySize))

	if deps.DevMode {
		r.Use(cors.New(cors.Config{
			AllowAllOrigins: true,
			AllowMethods:    []string{"GET", "POST", "DELETE"},
			AllowHeaders:    []string{"Content-Type", "Authorization"},
			MaxAge:          1 * time.Hour,
		}))
	}

	r.Use(middleware.NewRateLimiter(ctx, rateLimit, rateBurst).Handler())
	r.Use(middleware.Prometheus())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// registerRoutes sets up all API route handlers.
func registerRoutes(r *gin.Engine, deps *RouterDeps) {
	log := deps.Log

	health := NewHealthHandler(deps.Pool, log, deps.Version)
	documents := NewDocumentsHandler(deps.Documents)
	searchHandler := NewSearchHandler(deps.Engine, log)
	history := NewHistoryHandler(deps.History, deps.Documents, log)
	favorites := NewFavoritesHandler(deps.Favorites, deps.Documents, log)
	authHandler := NewAuthHandler(deps.Users, log)

	apiGroup := r.Group("/api")

	apiGroup.GET("/health_check", health.HealthCheck)
	apiGroup.GET("/documents", documents.List)
	apiGroup.GET("/auth", authHandler.Auth)
	apiGroup.GET("/search", searchHandler.Search)

	apiGroup.GET("/:doc/history", history.Summary)
	apiGroup.DELETE("/:doc/history", history.Delete)
	apiGroup.GET("/:doc/history-full", history.Detailed)

	apiGroup.GET("/:doc/favorites", favorites.List)
	apiGroup.POST("/:doc/favorites", favorites.Create)
	apiGroup.DELETE("/:doc/favorites", favorites.Delete)

	// Everything else is the bundled static UI, with index.html fallback.
	r.NoRoute(ui.Handler())
}

// ginLogger logs one structured line per request.
func ginLogger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.WithFields(logrus.Fields{
			"request_id": c.GetString(middleware.RequestIDKey),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"duration":   time.Since(start).String(),
		}).Info("request")
	}
}

// NewRouter creates and configures the Gin engine with all middleware and
// routes.
func NewRouter(ctx context.Context, deps *RouterDeps) http.Handler {
	r := gin.New()
	setupMiddleware(ctx, r, deps)
	registerRoutes(r, deps)

	return r
}
