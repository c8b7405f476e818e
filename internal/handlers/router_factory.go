package handlers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"safereport/internal/config"
	"safereport/internal/middleware"
	"safereport/internal/observability"
	"safereport/internal/services"
	"safereport/internal/storage"
)

// RouterDeps carries everything the API routes are built from
type RouterDeps struct {
	Config        *config.Config
	Logger        *observability.Logger
	DB            Pinger
	UserService   services.UserServiceInterface
	ReportService services.ReportServiceInterface
	TriageService services.TriageServiceInterface
	Scoring       services.ScoringServiceInterface
	Store         storage.MediaStore
	RateLimiter   *middleware.RateLimiter
}

// NewRouter creates the API router with all the necessary middleware and routes
func NewRouter(deps RouterDeps) *gin.Engine {
	cfg := deps.Config
	logger := deps.Logger

	gin.SetMode(gin.ReleaseMode)
	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(middleware.ErrorRecoveryMiddleware(logger))

	// HTTP request logging
	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()

		statusCode := c.Writer.Status()
		fields := map[string]interface{}{
			"http.method":      c.Request.Method,
			"http.path":        c.Request.URL.Path,
			"http.status_code": statusCode,
			"http.latency_ms":  time.Since(start).Milliseconds(),
			"http.client_ip":   c.ClientIP(),
			"http.user_agent":  c.Request.UserAgent(),
		}
		if len(c.Errors) > 0 {
			fields["http.error"] = c.Errors.String()
		}

		switch {
		case statusCode >= 500:
			fields["http.error_type"] = "server_error"
			logger.Error(c.Request.Context(), "HTTP request failed", nil, fields)
		case statusCode >= 400:
			fields["http.error_type"] = "client_error"
			logger.Warn(c.Request.Context(), "HTTP request warning", fields)
		default:
			logger.Info(c.Request.Context(), "HTTP request", fields)
		}
	})

	healthHandler := NewHealthHandler(deps.DB, deps.Scoring, deps.Store, cfg, logger)

	// Health check endpoint (defined before tracing so health checks stay out of traces)
	router.GET("/health", healthHandler.Health)

	router.Use(observability.GinMiddlewareWithErrorHandling("safereport-api")...)

	router.RedirectTrailingSlash = false

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowAllOrigins = false
		corsConfig.AllowOriginFunc = func(string) bool { return false }
	}
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Requested-With"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	store := cookie.NewStore([]byte(cfg.Server.SessionSecret))
	sessionOpts := sessions.Options{
		Path:     config.SessionPath,
		MaxAge:   int(config.SessionMaxAge.Seconds()),
		HttpOnly: config.SessionHTTPOnly,
		Secure:   cfg.Server.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	if cfg.Server.Debug {
		sessionOpts.SameSite = http.SameSiteDefaultMode
	}
	store.Options(sessionOpts)
	router.Use(sessions.Sessions(config.SessionName, store))

	secureConfig := secure.DefaultConfig()
	secureConfig.SSLRedirect = false
	secureConfig.IsDevelopment = cfg.Server.Debug
	secureConfig.ContentSecurityPolicy = config.DefaultCSP
	router.Use(secure.New(secureConfig))

	authHandler := NewAuthHandler(deps.UserService, cfg, logger)
	reportHandler := NewReportHandler(deps.ReportService, cfg, logger)
	triageHandler := NewTriageHandler(deps.TriageService, logger)

	throttle := func(c *gin.Context) { c.Next() }
	if deps.RateLimiter != nil {
		throttle = deps.RateLimiter.Middleware()
	}
	signedIn := middleware.RequireRole(deps.UserService)
	staff := middleware.RequireStaff(deps.UserService)

	v1 := router.Group("/v1")
	{
		v1.GET("/version", healthHandler.Version)

		auth := v1.Group("/auth")
		{
			auth.POST("/signup", throttle, authHandler.Signup)
			auth.POST("/login", throttle, authHandler.Login)
			auth.POST("/logout", middleware.RequireAuth(), authHandler.Logout)
			auth.GET("/status", authHandler.Status)
		}

		reports := v1.Group("/reports")
		{
			reports.POST("", throttle, middleware.OptionalAuth(), reportHandler.SubmitReport)
			reports.GET("/mine", signedIn, reportHandler.ListMyReports)
			reports.GET("/:id", signedIn, reportHandler.GetReport)
			reports.GET("/:id/activity", staff, reportHandler.ListActivity)
			reports.PUT("/:id/status", staff, reportHandler.UpdateStatus)
		}

		triage := v1.Group("/triage", staff)
		{
			triage.GET("/queue", triageHandler.GetQueue)
			triage.GET("/stats", triageHandler.GetStats)
		}
	}

	return router
}
