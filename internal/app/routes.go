package app

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/cdore/clubhouse/internal/auth"
	"github.com/cdore/clubhouse/internal/pages"
)

// RegisterRoutes builds the feature packages from the shared infrastructure
// and registers every route. This is the single place where all routes are
// aggregated.
func (a *App) RegisterRoutes() {
	e := a.Echo

	// Auth: repository over the users collection, service over Redis
	// sessions, and the public auth routes.
	repo := auth.NewUserRepository(a.Mongo, a.Config.Mongo.Database, a.Config.Mongo.Timeout)
	service := auth.NewAuthService(repo, a.Redis, a.Config.Auth.SessionTTL)
	auth.RegisterRoutes(e, auth.NewHandler(service, a.Config.Auth.SessionTTL))

	// Pages: landing branches on the resolved session, members is gated.
	pages.RegisterRoutes(e, pages.NewHandler("static/gifs"),
		auth.ResolveSession(service), auth.RequireAuth(service))

	// Health check endpoint for container health monitoring.
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
}
