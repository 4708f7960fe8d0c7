package auth

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes sets up all auth-related routes on the given Echo instance.
// Auth routes are public (no session required) -- the access-control
// middleware is exported separately for protected route groups to use.
func RegisterRoutes(e *echo.Echo, h *Handler) {
	e.GET("/signup", h.SignupForm)
	e.POST("/createUser", h.CreateUser)
	e.GET("/login", h.LoginForm)
	e.POST("/loggingin", h.LoggingIn)
	e.GET("/logout", h.Logout)
	e.GET("/nosql-injection", h.InjectionProbe)
}
