// Package templates renders the application's HTML pages. The pages are
// parsed once from an embedded filesystem at startup and exposed through
// Echo's Renderer interface, so handlers render by template name via
// c.Render. All interpolation goes through html/template's contextual
// escaping; user-provided values are never concatenated into markup.
package templates

import (
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/labstack/echo/v4"
)

//go:embed pages/*.html
var pagesFS embed.FS

// Renderer implements echo.Renderer over the embedded page templates.
type Renderer struct {
	tmpl *template.Template
}

// New parses the embedded pages and returns a Renderer ready to be set as
// the Echo instance's Renderer.
func New() (*Renderer, error) {
	tmpl, err := template.ParseFS(pagesFS, "pages/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing page templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render writes the named template to w with the given data.
func (r *Renderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	return r.tmpl.ExecuteTemplate(w, name, data)
}
