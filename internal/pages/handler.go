// Package pages serves the application's presentation routes: the landing
// page, the protected members area, and the GIF selector. Authentication
// decisions live in the auth package; this package only reads the resolved
// session from the request context.
package pages

import (
	"math/rand/v2"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/cdore/clubhouse/internal/apperror"
	"github.com/cdore/clubhouse/internal/auth"
)

// gifCount is the number of GIFs shipped under the gif directory, named
// 1.gif through gifCount.gif.
const gifCount = 3

// Handler serves the page routes.
type Handler struct {
	gifDir string
}

// NewHandler creates a pages handler. gifDir is the on-disk directory
// holding the member-area GIFs.
func NewHandler(gifDir string) *Handler {
	return &Handler{gifDir: gifDir}
}

// Home renders the landing page (GET /). The page branches on session
// state: an authenticated visitor gets a greeting with members/logout
// links, an anonymous one gets signup/login links and nothing else.
func (h *Handler) Home(c echo.Context) error {
	session := auth.GetSession(c)

	if session == nil {
		return c.Render(http.StatusOK, "home.html", echo.Map{
			"Authenticated": false,
			"Name":          "",
		})
	}

	return c.Render(http.StatusOK, "home.html", echo.Map{
		"Authenticated": true,
		"Name":          displayName(session),
	})
}

// Members renders the members page (GET /members, protected). The
// RequireAuth middleware guarantees a session is present; the nil check is
// a guard against the route being registered without it.
func (h *Handler) Members(c echo.Context) error {
	session := auth.GetSession(c)
	if session == nil {
		return c.Redirect(http.StatusSeeOther, "/")
	}

	return c.Render(http.StatusOK, "members.html", echo.Map{
		"Name":  displayName(session),
		"GifID": rand.IntN(gifCount) + 1,
	})
}

// Gif serves one of the member-area GIFs by numeric id (GET /gif/:id).
// Anything outside 1..gifCount is a 404.
func (h *Handler) Gif(c echo.Context) error {
	// Parsing to int both validates the id and rules out path traversal.
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id < 1 || id > gifCount {
		return apperror.NewNotFound("no such gif")
	}

	return c.File(filepath.Join(h.gifDir, strconv.Itoa(id)+".gif"))
}

// displayName returns the session's name, degrading to a fixed label when
// the identity can no longer be resolved to a display name.
func displayName(s *auth.Session) string {
	if s.Name == "" {
		return "member"
	}
	return s.Name
}
