package renderer

import (
	"html/template"
	"io"
	"net/http"
	"path/filepath"

	"github.com/damacus/iron-drawer/internal/utils"
	"github.com/labstack/echo/v4"
)

// DefaultDir is where the templates live relative to the working directory.
const DefaultDir = "views"

// TemplateRenderer implements echo.Renderer
type TemplateRenderer struct {
	Templates map[string]*template.Template
}

// New creates a new TemplateRenderer with templates parsed from dir
func New(dir string) *TemplateRenderer {
	r := &TemplateRenderer{
		Templates: make(map[string]*template.Template),
	}
	r.parseTemplates(dir)
	return r
}

var funcs = template.FuncMap{
	"sizeOf":    utils.FormatSize,
	"timeOf":    utils.FormatTime,
	"nextOrder": nextOrder,
	"ariaSort":  ariaSort,
}

// nextOrder is the order a column header link asks for: a second click on
// the active ascending column flips it.
func nextOrder(active string, desc bool, column string) string {
	if active == column && !desc {
		return "desc"
	}
	return "asc"
}

func ariaSort(active string, desc bool, column string) string {
	switch {
	case active != column:
		return "none"
	case desc:
		return "descending"
	default:
		return "ascending"
	}
}

func (t *TemplateRenderer) parseTemplates(dir string) {
	path := func(parts ...string) string {
		return filepath.Join(append([]string{dir}, parts...)...)
	}
	parse := func(name string, files ...string) {
		t.Templates[name] = template.Must(template.New(filepath.Base(files[0])).Funcs(funcs).ParseFiles(files...))
	}

	// The page embeds the listing so a full load and an htmx swap share markup
	parse("browser",
		path("layouts", "base.html"),
		path("pages", "browser.html"),
		path("partials", "listing.html"),
		path("partials", "upload_report.html"),
	)
	parse("listing", path("partials", "listing.html"), path("partials", "upload_report.html"))
	parse("upload_report", path("partials", "upload_report.html"))
	parse("side_panel", path("partials", "side_panel.html"))
	parse("preview_modal", path("partials", "preview_modal.html"))
	parse("search_results", path("partials", "search_results.html"))
	parse("alert", path("partials", "alert.html"))
}

// selfExecutingTemplates lists templates that execute their own named block instead of "base"
var selfExecutingTemplates = map[string]bool{
	"listing":        true,
	"upload_report":  true,
	"side_panel":     true,
	"preview_modal":  true,
	"search_results": true,
	"alert":          true,
}

// Render renders a template document
func (t *TemplateRenderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	tmpl, ok := t.Templates[name]
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "Template not found: "+name)
	}

	// Templates that define their own named block execute that block directly
	if selfExecutingTemplates[name] {
		return tmpl.ExecuteTemplate(w, name, data)
	}
	// All other templates (pages with layout) execute the "base" block
	return tmpl.ExecuteTemplate(w, "base", data)
}
