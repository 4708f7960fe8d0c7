package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/cdore/clubhouse/internal/apperror"
	"github.com/cdore/clubhouse/internal/validate"
)

// sessionCookieName is the HTTP cookie used to store the session token.
const sessionCookieName = "clubhouse_session"

// Handler handles HTTP requests for authentication (signup, login, logout,
// and the injection probe). Handlers are thin: they validate the request,
// call the service, and render the response. No business logic lives here,
// and no handler mutates session state directly.
type Handler struct {
	service    AuthService
	sessionTTL time.Duration
}

// NewHandler creates a new auth handler with the given service. sessionTTL
// is used to align the cookie lifetime with the server-side session.
func NewHandler(service AuthService, sessionTTL time.Duration) *Handler {
	return &Handler{service: service, sessionTTL: sessionTTL}
}

// SignupForm renders the signup page (GET /signup).
func (h *Handler) SignupForm(c echo.Context) error {
	// If the user already has a valid session, skip straight to members.
	if token := getSessionToken(c); token != "" {
		if _, err := h.service.ValidateSession(c.Request().Context(), token); err == nil {
			return c.Redirect(http.StatusSeeOther, "/members")
		}
	}

	return c.Render(http.StatusOK, "signup.html", signupData("", "", ""))
}

// CreateUser processes the signup form submission (POST /createUser).
// Validation runs before anything touches the database: the first missing
// field is reported by name, then the schema rules, then the shape checks
// that keep operator objects out of database filters.
func (h *Handler) CreateUser(c echo.Context) error {
	form, err := c.FormParams()
	if err != nil {
		return apperror.NewBadRequest("invalid form submission")
	}

	fields, err := validate.Signup(form)
	if err != nil {
		// Re-render the form with the field-specific message. Password
		// values are never echoed back.
		return c.Render(http.StatusOK, "signup.html",
			signupData(form.Get("name"), form.Get("email"), apperror.SafeMessage(err)))
	}

	token, _, err := h.service.Register(c.Request().Context(), SignupInput{
		Name:     fields.Name,
		Email:    fields.Email,
		Password: fields.Password,
	})
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && appErr.Code == http.StatusConflict {
			return c.Render(http.StatusOK, "signup.html",
				signupData(fields.Name, fields.Email, appErr.Message))
		}
		// Infrastructure failure -- let the error handler log it and
		// render the generic 500 page.
		return err
	}

	h.setSessionCookie(c, token)
	return c.Redirect(http.StatusSeeOther, "/members")
}

// LoginForm renders the login page (GET /login).
func (h *Handler) LoginForm(c echo.Context) error {
	if token := getSessionToken(c); token != "" {
		if _, err := h.service.ValidateSession(c.Request().Context(), token); err == nil {
			return c.Redirect(http.StatusSeeOther, "/members")
		}
	}

	var errMsg string
	if c.QueryParam("failed") != "" {
		errMsg = "Invalid email or password."
	}

	return c.Render(http.StatusOK, "login.html", loginData("", errMsg))
}

// LoggingIn processes the login form submission (POST /loggingin).
// Every failure -- malformed input, unknown email, wrong password -- takes
// the same redirect to the login page with the same generic banner, so the
// response carries no account-enumeration signal.
func (h *Handler) LoggingIn(c echo.Context) error {
	form, err := c.FormParams()
	if err != nil {
		return c.Redirect(http.StatusSeeOther, "/login?failed=1")
	}

	fields, err := validate.Login(form)
	if err != nil {
		return c.Redirect(http.StatusSeeOther, "/login?failed=1")
	}

	token, _, err := h.service.Login(c.Request().Context(), LoginInput{
		Email:    fields.Email,
		Password: fields.Password,
	})
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && appErr.Code == http.StatusUnauthorized {
			return c.Redirect(http.StatusSeeOther, "/login?failed=1")
		}
		return err
	}

	h.setSessionCookie(c, token)
	return c.Redirect(http.StatusSeeOther, "/members")
}

// Logout destroys the session and clears the cookie (GET /logout).
// Logging out without a session is a no-op redirect.
func (h *Handler) Logout(c echo.Context) error {
	token := getSessionToken(c)
	if token != "" {
		// Destroy the session in Redis. Ignore errors -- the cookie
		// will be cleared regardless.
		_ = h.service.DestroySession(c.Request().Context(), token)
	}

	clearSessionCookie(c)
	return c.Redirect(http.StatusSeeOther, "/")
}

// InjectionProbe demonstrates the input validator (GET /nosql-injection?user=<name>).
// The user field is checked for scalar shape and charset before any lookup;
// an operator-shaped or malformed value is reported and never reaches a
// database filter.
func (h *Handler) InjectionProbe(c echo.Context) error {
	params := c.QueryParams()

	if _, ok := params["user"]; !ok && !hasBracketedKey(params, "user") {
		return c.Render(http.StatusOK, "probe.html", echo.Map{
			"Detected": false,
			"Users":    nil,
			"Hint":     "try /nosql-injection?user=name",
		})
	}

	name := c.QueryParam("user")
	if err := validate.Scalar(params, "user"); err != nil {
		return c.Render(http.StatusOK, "probe.html", probeDetected())
	}
	if err := validate.Username(name); err != nil {
		return c.Render(http.StatusOK, "probe.html", probeDetected())
	}

	users, err := h.service.LookupByName(c.Request().Context(), name)
	if err != nil {
		return err
	}

	return c.Render(http.StatusOK, "probe.html", echo.Map{
		"Detected": false,
		"Users":    users,
		"Hint":     "",
	})
}

// --- Cookie helpers ---

// getSessionToken reads the session token from the cookie.
func getSessionToken(c echo.Context) string {
	cookie, err := c.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}
	return cookie.Value
}

// setSessionCookie sets the session cookie on the response. The cookie is
// HttpOnly (JS can't read it), Secure behind TLS, SameSite=Lax, and expires
// together with the server-side session.
func (h *Handler) setSessionCookie(c echo.Context, token string) {
	req := c.Request()
	c.SetCookie(&http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   req.TLS != nil || req.Header.Get("X-Forwarded-Proto") == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.sessionTTL.Seconds()),
	})
}

// clearSessionCookie removes the session cookie by setting MaxAge to -1.
func clearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

// --- Template data helpers ---

func signupData(name, email, errMsg string) echo.Map {
	return echo.Map{
		"Name":  name,
		"Email": email,
		"Error": errMsg,
	}
}

func loginData(email, errMsg string) echo.Map {
	return echo.Map{
		"Email": email,
		"Error": errMsg,
	}
}

func probeDetected() echo.Map {
	return echo.Map{
		"Detected": true,
		"Users":    nil,
		"Hint":     "",
	}
}

// hasBracketedKey reports whether params carries a bracketed variant of
// field, e.g. "user[$ne]". Such a request supplied the field, just not as
// a scalar, and must be treated as a probe rather than an absent value.
func hasBracketedKey(params map[string][]string, field string) bool {
	for key := range params {
		if key != field && len(key) > len(field) && key[:len(field)+1] == field+"[" {
			return true
		}
	}
	return false
}
