package router

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/labalert/internal/handler/prometheus"
	"github.com/jwalitptl/labalert/internal/middleware"
	"github.com/jwalitptl/labalert/internal/model"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

// ProtectedHandler also owns routes that need an operator token.
type ProtectedHandler interface {
	Handler
	RegisterProtectedRoutes(*gin.RouterGroup)
}

type Router struct {
	engine      *gin.Engine
	auth        *middleware.AuthMiddleware
	resultsH    Handler
	alertH      ProtectedHandler
	authH       Handler
	healthH     Handler
	metricsH    *prometheus.Handler
	rateLimiter *middleware.RateLimiter
}

type RouterConfig struct {
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	CORSOrigins    []string
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	resultsH Handler,
	alertH ProtectedHandler,
	authH Handler,
	healthH Handler,
	metricsH *prometheus.Handler,
	rateLimiter *middleware.RateLimiter,
	config RouterConfig,
) *Router {
	engine := gin.New()

	r := &Router{
		engine:      engine,
		auth:        auth,
		resultsH:    resultsH,
		alertH:      alertH,
		authH:       authH,
		healthH:     healthH,
		metricsH:    metricsH,
		rateLimiter: rateLimiter,
	}

	// Add core middlewares
	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		metricsH.Middleware(),
		middleware.SecurityHeaders(),
		middleware.CORS(middleware.DefaultCORSConfig(config.CORSOrigins)),
		middleware.SizeLimit(config.MaxBodyBytes),
		middleware.Timeout(middleware.TimeoutConfig{Duration: config.RequestTimeout}),
		rateLimiter.RateLimit(),
		middleware.ErrorHandler(),
		middleware.Validation(middleware.DefaultValidationConfig()),
	)

	return r
}

func (r *Router) Setup() {
	api := r.engine.Group("/api/v1")

	// Add version header
	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	r.healthH.RegisterRoutes(api)
	api.GET("/metrics", r.metricsH.Handler())

	// Public routes
	r.authH.RegisterRoutes(api)
	r.resultsH.RegisterRoutes(api)
	r.alertH.RegisterRoutes(api)

	// Operator routes
	protected := api.Group("")
	protected.Use(
		r.auth.Authenticate(),
		r.auth.RequireRole(model.RoleOperator),
	)
	r.alertH.RegisterProtectedRoutes(protected)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
