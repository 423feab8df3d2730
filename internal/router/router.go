package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/shutterdesk/studio-api/internal/handler"
	"github.com/shutterdesk/studio-api/internal/middleware"
	"github.com/shutterdesk/studio-api/internal/model"
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers all authentication-related routes and applies the
// necessary middleware.  Unauthenticated operations live under /v1/auth,
// while protected endpoints live under /v1 behind the JWT middleware.
// accessSecret must be the access-token signing secret.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, accessSecret string) {
	// Operations that do not require an existing session.
	g := e.Group("/v1/auth")
	g.POST("/signup", a.Signup)
	g.POST("/login", a.Login)
	// Refresh authenticates with the refresh token itself (cookie or body),
	// not with an access token, so it stays outside the protected group.
	g.POST("/refresh", a.Refresh)
	g.GET("/forgot-password/options", a.ForgotPasswordOptions)

	// Routes that require a valid access token.  JWTAuth extracts the
	// user id and role from the token; RequireRole rejects unknown roles.
	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(accessSecret))
	auth.Use(middleware.RequireRole(model.RoleStudioAdmin, model.RoleSuperAdmin, model.RoleUser))
	auth.POST("/logout", a.Logout)
	auth.POST("/change-password", a.ChangePassword)
}

// RegisterProfile registers the profile endpoints: the authenticated
// read/update pair under /v1/me and the public studio page, which sits
// behind the Redis response cache when one is configured.
func RegisterProfile(e *echo.Echo, p *handler.ProfileHandler, accessSecret string, cache echo.MiddlewareFunc) {
	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(accessSecret))
	auth.Use(middleware.RequireRole(model.RoleStudioAdmin, model.RoleSuperAdmin, model.RoleUser))
	auth.GET("/me", p.Me)
	auth.PATCH("/me", p.EditProfile)

	if cache != nil {
		e.GET("/v1/studios/:username", p.Studio, cache)
	} else {
		e.GET("/v1/studios/:username", p.Studio)
	}
}
