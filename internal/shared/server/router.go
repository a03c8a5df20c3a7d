package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"speech-backend/internal/analyses"
	cognitoauth "speech-backend/internal/auth"
	"speech-backend/internal/services/health"
	"speech-backend/internal/shared/auth"
	"speech-backend/internal/shared/config"
	"speech-backend/internal/shared/metrics"
	"speech-backend/internal/shared/server/middleware"
	"speech-backend/internal/shared/server/respond"
	"speech-backend/internal/uploads"
)

// RouterDeps holds the handlers wired into the HTTP surface. Nil handlers are skipped.
type RouterDeps struct {
	Config          config.Config
	Verifier        auth.Verifier
	Health          *health.Service
	AnalysisHandler *analyses.Handler
	UploadHandler   *uploads.Handler
	CognitoAuth     *cognitoauth.CognitoService
	RateLimiter     *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		metrics.Middleware(),
	)

	r.GET("/health", func(c *gin.Context) {
		status, ok := deps.Health.Status(c.Request.Context())
		if !ok {
			respond.JSON(c, http.StatusServiceUnavailable, status)
			return
		}
		respond.JSON(c, http.StatusOK, status)
	})
	r.GET("/metrics", metrics.Handler())

	if deps.CognitoAuth != nil {
		deps.CognitoAuth.RegisterRoutes(&r.RouterGroup)
	}

	api := r.Group("/", middleware.Auth(deps.Verifier))
	registerMeRoutes(api)
	if deps.AnalysisHandler != nil {
		deps.AnalysisHandler.RegisterRoutes(api)
	}
	if deps.UploadHandler != nil {
		rule := uploadRateRule(deps.Config)
		deps.UploadHandler.RegisterRoutes(api, middleware.RateLimit(rule, deps.RateLimiter))
	}

	return r
}

func uploadRateRule(cfg config.Config) middleware.RateLimitRule {
	if cfg.UploadRatePerMinute <= 0 {
		return middleware.RateLimitRule{}
	}
	return middleware.RateLimitRule{
		Rate:  float64(cfg.UploadRatePerMinute) / time.Minute.Seconds(),
		Burst: cfg.UploadRateBurst,
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
