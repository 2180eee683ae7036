package router // package router defines how HTTP routes are registered for the API

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iliyamo/auth-service/internal/config"
	"github.com/iliyamo/auth-service/internal/handler"
	"github.com/iliyamo/auth-service/internal/middleware"
)

// Deps are the collaborators the routes are wired to.
type Deps struct {
	Auth      *handler.AuthHandler
	Health    *handler.HealthHandler
	Guard     middleware.Authenticator
	RateLimit config.RateLimitConfig
	Redis     redis.Scripter // nil disables rate limiting
	Log       zerolog.Logger
}

// RegisterRoutes mounts the health check and the /api/v1 user routes.
// Everything under /api is rate limited.  When the limiter keys on the user,
// optional authentication runs first so the user is known.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", d.Health.Health)

	var mws []echo.MiddlewareFunc
	if keysOnUser(d.RateLimit) {
		mws = append(mws, middleware.OptionalAuth(d.Guard))
	}
	mws = append(mws, middleware.NewTokenBucket(d.RateLimit, d.Redis, d.Log))
	api := e.Group("/api", mws...)

	users := api.Group("/v1/users")
	users.POST("/signup", d.Auth.Signup)
	users.POST("/login", d.Auth.Login)
	users.POST("/forgotPassword", d.Auth.ForgotPassword)
	users.PATCH("/resetPassword/:token", d.Auth.ResetPassword)

	protect := middleware.Protect(d.Guard)
	users.GET("/logout", d.Auth.Logout, protect)
	users.GET("/me", d.Auth.Me, protect)
}

// keysOnUser reports whether the limiter key includes the caller's id.
// Unknown strategies fall back to ip+user+route in buildRateKey.
func keysOnUser(cfg config.RateLimitConfig) bool {
	if !cfg.Enabled {
		return false
	}
	switch strings.ToLower(cfg.KeyStrategy) {
	case "ip", "route", "ip_route":
		return false
	}
	return true
}
