package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// contextKeySession is the Echo context key for the resolved session.
// Other packages read it via GetSession; nothing writes it except the
// middleware below.
const contextKeySession = "auth_session"

// RequireAuth returns middleware that validates the session cookie and
// injects session data into the request context. An anonymous caller is
// redirected to the landing page before the protected handler runs, so
// protected content is never partially rendered.
func RequireAuth(service AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := getSessionToken(c)
			if token == "" {
				return c.Redirect(http.StatusSeeOther, "/")
			}

			session, err := service.ValidateSession(c.Request().Context(), token)
			if err != nil {
				// Invalid or expired session -- clear the stale cookie.
				clearSessionCookie(c)
				return c.Redirect(http.StatusSeeOther, "/")
			}

			c.Set(contextKeySession, session)

			return next(c)
		}
	}
}

// ResolveSession returns middleware that resolves the session cookie if one
// is present but never blocks the request. Routes that branch on session
// state (the landing page) use this; their handlers read the result via
// GetSession and render the anonymous path when it is nil.
func ResolveSession(service AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if token := getSessionToken(c); token != "" {
				session, err := service.ValidateSession(c.Request().Context(), token)
				if err != nil {
					clearSessionCookie(c)
				} else {
					c.Set(contextKeySession, session)
				}
			}

			return next(c)
		}
	}
}

// GetSession retrieves the authenticated session from the Echo context.
// Returns nil if the request is anonymous.
func GetSession(c echo.Context) *Session {
	session, ok := c.Get(contextKeySession).(*Session)
	if !ok {
		return nil
	}
	return session
}
