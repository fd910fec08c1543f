package renderer

import (
	"bytes"
	"html/template"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/damacus/iron-drawer/internal/browser"
	"github.com/damacus/iron-drawer/internal/models"
	"github.com/damacus/iron-drawer/internal/objects"
	"github.com/damacus/iron-drawer/internal/plugins"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const viewsDir = "../../views"

func newContext() echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	return e.NewContext(req, httptest.NewRecorder())
}

func TestTemplateRenderer_RenderUnknownTemplate(t *testing.T) {
	r := &TemplateRenderer{
		Templates: make(map[string]*template.Template),
	}

	var buf bytes.Buffer
	err := r.Render(&buf, "nonexistent", nil, newContext())

	assert.Error(t, err)
	httpErr, ok := err.(*echo.HTTPError)
	assert.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, httpErr.Code)
	assert.Contains(t, httpErr.Message, "Template not found")
}

func TestSelfExecutingTemplates_ContainsFragments(t *testing.T) {
	for _, tmpl := range []string{"listing", "upload_report", "side_panel", "preview_modal", "search_results", "alert"} {
		t.Run(tmpl, func(t *testing.T) {
			assert.True(t, selfExecutingTemplates[tmpl], "expected %q to be in selfExecutingTemplates", tmpl)
		})
	}
	assert.False(t, selfExecutingTemplates["browser"], "pages execute the base layout")
}

func TestNew_ParsesEveryTemplate(t *testing.T) {
	r := New(viewsDir)
	for name := range selfExecutingTemplates {
		assert.Contains(t, r.Templates, name)
	}
	assert.Contains(t, r.Templates, "browser")
}

func sampleListing() models.ListingPage {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return models.ListingPage{
		Label:    "drawer",
		CSRF:     "token-123",
		WidgetID: "widget-1",
		Path:     "docs",
		Perms:    models.Perms(browser.AllowAll()),
		Breadcrumbs: []models.Breadcrumb{
			{Name: "drawer", Path: ""},
			{Name: "docs", Path: "docs"},
		},
		Rows: []models.Row{
			models.NewRow(objects.Record{Name: "reports", Location: "docs", IsFolder: true}, false),
			models.NewRow(objects.Record{Name: "a <b>.pdf", Location: "docs", Extension: "pdf", Size: 2048, LastModified: at}, true),
		},
	}
}

func TestRender_BrowserPage(t *testing.T) {
	r := New(viewsDir)

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, "browser", sampleListing(), newContext()))
	html := buf.String()

	assert.Contains(t, html, `<meta name="csrf-token" content="token-123">`)
	assert.Contains(t, html, "X-CSRF-Token")
	assert.Contains(t, html, `id="listing"`)
	assert.Contains(t, html, `id="upload-progress-modal"`)
	assert.Contains(t, html, `<meta name="widget-id" content="widget-1">`)
	assert.Contains(t, html, `id="drop-zone"`)
	assert.Contains(t, html, `hx-get="/browser/listing?path=docs%2Freports"`)
	assert.Contains(t, html, "a &lt;b&gt;.pdf")
	assert.NotContains(t, html, "a <b>.pdf")
	assert.Contains(t, html, "2.00 KB")
}

func TestRender_ListingEscapesKeysInHTMXAttributes(t *testing.T) {
	r := New(viewsDir)
	page := sampleListing()
	page.Rows = []models.Row{
		models.NewRow(objects.Record{Name: "Q&A + notes.txt", Location: "docs", Extension: "txt"}, true),
	}

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, "listing", page, newContext()))
	html := buf.String()
	// spaces become + and a literal + is escaped, so the server reads the name back intact
	assert.Contains(t, html, `hx-get="/browser/preview?key=docs%2FQ%26A&#43;%2B&#43;notes.txt"`)
	assert.Contains(t, html, `href="/browser/download?key=docs%2fQ%26A%20%2b%20notes.txt`)
	assert.Contains(t, html, `widget=widget-1"`)
}

func TestRender_ListingSortHeaders(t *testing.T) {
	r := New(viewsDir)
	page := sampleListing()
	page.Sort = "size"

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, "listing", page, newContext()))
	html := buf.String()
	assert.Contains(t, html, `aria-sort="ascending"><a href="#" hx-get="/browser/listing?path=docs&sort=size&order=desc"`)
	assert.Contains(t, html, `aria-sort="none"><a href="#" hx-get="/browser/listing?path=docs&sort=name&order=asc"`)
	assert.Contains(t, html, ">Owner</a>")

	page.Desc = true
	buf.Reset()
	require.NoError(t, r.Render(&buf, "listing", page, newContext()))
	assert.Contains(t, buf.String(), `aria-sort="descending"><a href="#" hx-get="/browser/listing?path=docs&sort=size&order=asc"`)
}

func TestNextOrderAndAriaSort(t *testing.T) {
	assert.Equal(t, "desc", nextOrder("name", false, "name"))
	assert.Equal(t, "asc", nextOrder("name", true, "name"))
	assert.Equal(t, "asc", nextOrder("size", false, "name"))
	assert.Equal(t, "none", ariaSort("", false, "name"))
	assert.Equal(t, "ascending", ariaSort("name", false, "name"))
	assert.Equal(t, "descending", ariaSort("name", true, "name"))
}

func TestRender_ListingRespectsPermissions(t *testing.T) {
	r := New(viewsDir)
	page := sampleListing()
	page.Perms = models.Perms{}

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, "listing", page, newContext()))
	html := buf.String()

	assert.NotContains(t, html, "/browser/delete")
	assert.NotContains(t, html, "/browser/rename")
	assert.NotContains(t, html, "/browser/download")
}

func TestRender_ListingWithUploadReport(t *testing.T) {
	r := New(viewsDir)
	page := sampleListing()
	page.Report = browser.UploadReport{
		Status:   browser.UploadPartial,
		Message:  "1 of 2 succeeded, 1 failure",
		Failures: []browser.UploadFailure{{Name: "bad/name", Reason: "Invalid name"}},
	}

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, "listing", page, newContext()))
	assert.Contains(t, buf.String(), "1 of 2 succeeded, 1 failure")
	assert.Contains(t, buf.String(), "bad/name: Invalid name")
	assert.Contains(t, buf.String(), "bg-yellow-50")
}

func TestRender_SidePanelMarksActiveTab(t *testing.T) {
	r := New(viewsDir)
	panel := models.SidePanel{
		Key:    "docs/a.pdf",
		Name:   "a.pdf",
		Tabs:   []plugins.Tab{{Index: 0, Name: "Info"}, {Index: 1, Name: "Comments"}},
		Active: 1,
		Body:   template.HTML("<p>thread</p>"),
	}

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, "side_panel", panel, newContext()))
	html := buf.String()
	assert.Contains(t, html, "<p>thread</p>")
	assert.Contains(t, html, "tab=1")
	assert.Contains(t, html, "border-blue-600 font-medium\">Comments")
}

func TestRender_Alert(t *testing.T) {
	r := New(viewsDir)

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, "alert", models.Alert{Level: "error", Message: "Name cannot be empty"}, newContext()))
	assert.Contains(t, buf.String(), `role="alert"`)
	assert.Contains(t, buf.String(), "Name cannot be empty")
}

func TestTemplateRenderer_RenderSelfExecutingTemplate(t *testing.T) {
	tmpl := template.Must(template.New("test_widget").Parse(`{{ define "test_widget" }}Hello {{ .Name }}{{ end }}`))

	r := &TemplateRenderer{
		Templates: map[string]*template.Template{
			"test_widget": tmpl,
		},
	}

	selfExecutingTemplates["test_widget"] = true
	defer delete(selfExecutingTemplates, "test_widget")

	var buf bytes.Buffer
	err := r.Render(&buf, "test_widget", map[string]interface{}{"Name": "World"}, newContext())

	assert.NoError(t, err)
	assert.Equal(t, "Hello World", buf.String())
}
