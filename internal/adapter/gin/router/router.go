package router

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	"go.uber.org/zap"

	"newspaper/internal/adapter/gin/handler"
	"newspaper/internal/adapter/gin/middleware"
	"newspaper/internal/adapter/gin/urls"
	"newspaper/internal/metrics"
)

// Config holds the settings the router needs.
type Config struct {
	Debug          bool
	AllowedOrigins []string
	CSRF           middleware.CSRFConfig
	SessionCookie  middleware.SessionCookie
}

// Dependencies are the collaborators wired into the routes.
type Dependencies struct {
	Renderer      render.HTMLRender
	Authenticator middleware.Authenticator
	Signup        *handler.SignupHandler
	Auth          *handler.AuthHandler
	Admin         *handler.AdminHandler
	Health        *handler.HealthHandler
	RateLimiter   *middleware.RateLimiter
	Metrics       metrics.Recorder
	MetricsHTTP   http.Handler
}

// SetupRouter configures and returns a Gin router with all routes and middleware.
func SetupRouter(cfg Config, deps Dependencies, log *zap.Logger) *gin.Engine {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.HTMLRender = deps.Renderer

	router.Use(middleware.Recovery(log))
	router.Use(middleware.AssignRequestID())
	router.Use(middleware.Logger(log))
	if deps.Metrics != nil {
		router.Use(middleware.Metrics(deps.Metrics))
	}
	if len(cfg.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.AllowedOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:     []string{"Origin", "Content-Type", middleware.CSRFHeaderName, middleware.RequestIDHeader},
			ExposeHeaders:    []string{middleware.RequestIDHeader},
			AllowCredentials: true,
		}))
	}
	if deps.RateLimiter != nil {
		router.Use(deps.RateLimiter.Middleware())
	}

	router.GET(urls.Pattern(urls.Health), deps.Health.Health)
	if deps.MetricsHTTP != nil {
		router.GET(urls.Pattern(urls.Metrics), gin.WrapH(deps.MetricsHTTP))
	}

	// HTML surface
	site := router.Group("/")
	site.Use(
		middleware.SecurityHeaders(),
		middleware.CSRF(cfg.CSRF, log),
		middleware.Session(deps.Authenticator, cfg.SessionCookie, log),
	)

	site.GET(urls.Pattern(urls.Home), handler.Home)

	// users app first, then the auth views under the same prefix
	site.GET(urls.Pattern(urls.Signup), deps.Signup.Show)
	site.POST(urls.Pattern(urls.Signup), deps.Signup.Submit)

	loginRequired := middleware.LoginRequired(urls.Pattern(urls.Login))
	site.GET(urls.Pattern(urls.Login), deps.Auth.LoginPage)
	site.POST(urls.Pattern(urls.Login), deps.Auth.Login)
	site.POST(urls.Pattern(urls.Logout), deps.Auth.Logout)
	site.GET(urls.Pattern(urls.PasswordChange), loginRequired, deps.Auth.PasswordChangePage)
	site.POST(urls.Pattern(urls.PasswordChange), loginRequired, deps.Auth.PasswordChange)
	site.GET(urls.Pattern(urls.PasswordChangeDone), loginRequired, deps.Auth.PasswordChangeDone)
	site.GET(urls.Pattern(urls.PasswordReset), deps.Auth.PasswordResetPage)
	site.POST(urls.Pattern(urls.PasswordReset), deps.Auth.PasswordReset)
	site.GET(urls.Pattern(urls.PasswordResetDone), deps.Auth.PasswordResetDone)
	site.GET(urls.Pattern(urls.PasswordResetComplete), deps.Auth.PasswordResetComplete)
	site.GET(urls.Pattern(urls.PasswordResetConfirm), deps.Auth.PasswordResetConfirmPage)
	site.POST(urls.Pattern(urls.PasswordResetConfirm), deps.Auth.PasswordResetConfirm)

	staffRequired := middleware.StaffRequired(urls.Pattern(urls.AdminLogin))
	site.GET(urls.Pattern(urls.AdminLogin), deps.Auth.AdminLoginPage)
	site.POST(urls.Pattern(urls.AdminLogin), deps.Auth.AdminLogin)
	site.POST(urls.Pattern(urls.AdminLogout), deps.Auth.AdminLogout)
	site.GET(urls.Pattern(urls.AdminIndex), staffRequired, deps.Admin.Index)
	site.GET(urls.Pattern(urls.AdminUsers), staffRequired, deps.Admin.Users)
	site.GET(urls.Pattern(urls.AdminUserDetail), staffRequired, deps.Admin.UserDetail)

	return router
}
