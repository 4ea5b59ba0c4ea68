package server

import (
	"database/sql"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	googleauth "writer-backend/internal/auth"
	"writer-backend/internal/credits"
	"writer-backend/internal/dashboard"
	"writer-backend/internal/editor"
	"writer-backend/internal/pipeline"
	"writer-backend/internal/shared/config"
	"writer-backend/internal/shared/metrics"
	"writer-backend/internal/shared/server/middleware"
	"writer-backend/internal/users"
)

const apiPrefix = "/api/v1"

// RouterDeps carries the handlers mounted by NewRouter. Nil handlers are
// skipped.
type RouterDeps struct {
	Config      config.Config
	DB          *sql.DB
	Verifier    middleware.TokenVerifier
	RateLimiter *middleware.RateLimiter

	UserHandler      *users.Handler
	GoogleAuth       *googleauth.GoogleService
	CreditsHandler   *credits.Handler
	PipelineHandler  *pipeline.Handler
	EditorHandler    *editor.Handler
	DashboardHandler *dashboard.Handler
}

// DefaultRateRules limits submissions hardest since each one reserves a
// credit and starts generation.
var DefaultRateRules = map[string]middleware.RateLimitRule{
	middleware.RateGroupDefault: {Rate: 10, Burst: 40},
	middleware.RateGroupSubmit:  {Rate: 0.2, Burst: 5},
	middleware.RateGroupEditor:  {Rate: 5, Burst: 30},
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigins),
		middleware.Auth(deps.Verifier, apiPrefix+"/auth/", apiPrefix+"/health", apiPrefix+"/ready", "/metrics"),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules:    DefaultRateRules,
			GroupFor: rateGroup,
			Limiter:  deps.RateLimiter,
		}),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group(apiPrefix)
	registerHealthRoutes(api, deps.DB)
	if deps.UserHandler != nil {
		deps.UserHandler.RegisterPublicRoutes(api)
		deps.UserHandler.RegisterRoutes(api)
	}
	if deps.GoogleAuth != nil {
		deps.GoogleAuth.RegisterRoutes(api)
	}
	if deps.CreditsHandler != nil {
		deps.CreditsHandler.RegisterRoutes(api)
	}
	if deps.PipelineHandler != nil {
		deps.PipelineHandler.RegisterRoutes(api)
	}
	if deps.EditorHandler != nil {
		deps.EditorHandler.RegisterRoutes(api)
	}
	if deps.DashboardHandler != nil {
		deps.DashboardHandler.RegisterRoutes(api)
	}
	return r
}

func rateGroup(c *gin.Context) string {
	path := c.Request.URL.Path
	switch {
	case c.Request.Method == http.MethodPost && (path == apiPrefix+"/items" || strings.HasSuffix(path, "/retry") || strings.HasSuffix(path, "/generate")):
		return middleware.RateGroupSubmit
	case strings.Contains(path, "-sessions/") || strings.HasSuffix(path, "-session"):
		return middleware.RateGroupEditor
	default:
		return middleware.RateGroupDefault
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
