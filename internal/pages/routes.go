package pages

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes sets up the page routes. resolve attaches the session to
// public routes that branch on it; require gates the protected ones.
func RegisterRoutes(e *echo.Echo, h *Handler, resolve, require echo.MiddlewareFunc) {
	e.GET("/", h.Home, resolve)
	e.GET("/members", h.Members, require)
	e.GET("/gif/:id", h.Gif)
}
