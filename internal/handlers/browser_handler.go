package handlers

import (
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/damacus/iron-drawer/internal/browser"
	"github.com/damacus/iron-drawer/internal/errs"
	"github.com/damacus/iron-drawer/internal/logger"
	"github.com/damacus/iron-drawer/internal/models"
	"github.com/damacus/iron-drawer/internal/objects"
	"github.com/labstack/echo/v4"
)

type BrowserHandler struct {
	manager *browser.Manager
	log     *logger.Logger
}

func NewBrowserHandler(manager *browser.Manager, log *logger.Logger) *BrowserHandler {
	return &BrowserHandler{manager: manager, log: log.Component("browser")}
}

// Routes registers the browser endpoints on g.
func (h *BrowserHandler) Routes(g *echo.Group) {
	g.GET("", h.Browse)
	g.GET("/listing", h.Listing)
	g.POST("/refresh", h.Refresh)
	g.POST("/folders", h.CreateFolder)
	g.POST("/rename", h.Rename)
	g.POST("/delete", h.Delete)
	g.POST("/upload", h.Upload)
	g.GET("/download", h.Download)
	g.GET("/search", h.Search)
	g.GET("/panel", h.Panel)
	g.GET("/preview", h.Preview)
	g.POST("/unmount", h.Unmount)
}

func (h *BrowserHandler) listingPage(c echo.Context, w *browser.Widget) models.ListingPage {
	ctrl := w.Controller
	snap := ctrl.Snapshot()
	rows := make([]models.Row, 0, len(snap.Records))
	canPreview := ctrl.Permissions().Allows(browser.ActionPreview)
	for _, rec := range snap.Records {
		rows = append(rows, models.NewRow(rec, canPreview && w.Host.Resolve(rec).Preview != nil))
	}
	sort := ctrl.Sort()
	return models.ListingPage{
		Label:       ctrl.Label(),
		CSRF:        csrfToken(c),
		WidgetID:    w.ID,
		Path:        snap.Path,
		Sort:        string(sort.Field),
		Desc:        sort.Desc,
		Perms:       models.Perms(ctrl.Permissions()),
		Breadcrumbs: ctrl.Breadcrumbs(),
		Rows:        rows,
	}
}

// applySort changes the widget's ordering when ?sort= or ?order= is given.
func applySort(c echo.Context, ctrl *browser.Controller) error {
	field, order := c.QueryParam("sort"), c.QueryParam("order")
	if field == "" && order == "" {
		return nil
	}
	s, err := browser.ParseSort(field, order)
	if err != nil {
		return err
	}
	ctrl.SetSort(s)
	return nil
}

// Browse renders the full browser page at ?path=, ordered by ?sort= and ?order=
func (h *BrowserHandler) Browse(c echo.Context) error {
	w, err := GetWidget(c)
	if err != nil {
		return err
	}

	navErr := applySort(c, w.Controller)
	if navErr == nil {
		navErr = w.Controller.Navigate(c.Request().Context(), c.QueryParam("path"))
	}
	page := h.listingPage(c, w)
	if navErr != nil {
		h.log.WarnWith("navigate failed", navErr, map[string]interface{}{"widget_id": w.ID})
		page.Error = errs.Message(navErr)
	}
	return c.Render(http.StatusOK, "browser", page)
}

// Listing navigates and renders only the listing fragment
func (h *BrowserHandler) Listing(c echo.Context) error {
	w, err := GetWidget(c)
	if err != nil {
		return err
	}
	if err := applySort(c, w.Controller); err != nil {
		return RenderError(c, err)
	}
	if err := w.Controller.Navigate(c.Request().Context(), c.QueryParam("path")); err != nil {
		return RenderError(c, err)
	}
	return c.Render(http.StatusOK, "listing", h.listingPage(c, w))
}

// Refresh re-lists the current path
func (h *BrowserHandler) Refresh(c echo.Context) error {
	w, err := GetWidget(c)
	if err != nil {
		return err
	}
	if err := w.Controller.Refresh(c.Request().Context()); err != nil {
		return RenderError(c, err)
	}
	return c.Render(http.StatusOK, "listing", h.listingPage(c, w))
}

// CreateFolder creates a folder named by the form field name in the current path
func (h *BrowserHandler) CreateFolder(c echo.Context) error {
	w, err := GetWidget(c)
	if err != nil {
		return err
	}
	if err := w.Controller.CreateFolder(c.Request().Context(), c.FormValue("name")); err != nil {
		return RenderError(c, err)
	}
	return c.Render(http.StatusOK, "listing", h.listingPage(c, w))
}

// Rename renames ?key= to the prompted name. hx-prompt sends the answer in
// the HX-Prompt header; plain forms use the name field.
func (h *BrowserHandler) Rename(c echo.Context) error {
	w, err := GetWidget(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	name := c.Request().Header.Get("HX-Prompt")
	if name == "" {
		name = c.FormValue("name")
	}
	rec, err := w.Controller.Lookup(ctx, c.FormValue("key"))
	if err != nil {
		return RenderError(c, err)
	}
	if _, err := w.Controller.Rename(ctx, rec, name); err != nil {
		return RenderError(c, err)
	}
	return c.Render(http.StatusOK, "listing", h.listingPage(c, w))
}

// Delete removes ?key=, recursively for folders
func (h *BrowserHandler) Delete(c echo.Context) error {
	w, err := GetWidget(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	rec, err := w.Controller.Lookup(ctx, c.FormValue("key"))
	if err != nil {
		return RenderError(c, err)
	}
	if _, err := w.Controller.Delete(ctx, rec); err != nil {
		return RenderError(c, err)
	}
	return c.Render(http.StatusOK, "listing", h.listingPage(c, w))
}

// Upload stores every file of the multipart field "files"
func (h *BrowserHandler) Upload(c echo.Context) error {
	w, err := GetWidget(c)
	if err != nil {
		return err
	}

	var headers []*multipart.FileHeader
	if form, err := c.MultipartForm(); err == nil {
		headers = form.File["files"]
	}
	files := make([]browser.UploadFile, 0, len(headers))
	for _, fh := range headers {
		files = append(files, browser.UploadFile{
			Name:        fh.Filename,
			Size:        fh.Size,
			ContentType: fh.Header.Get(echo.HeaderContentType),
			Open: func() (io.ReadCloser, error) {
				return fh.Open()
			},
		})
	}

	report, err := w.Controller.Upload(c.Request().Context(), files)
	if err != nil {
		return RenderError(c, err)
	}
	page := h.listingPage(c, w)
	page.Report = report
	return c.Render(http.StatusOK, "listing", page)
}

// Download streams ?key= as an attachment
func (h *BrowserHandler) Download(c echo.Context) error {
	w, err := GetWidget(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	rec, err := w.Controller.Lookup(ctx, c.QueryParam("key"))
	if err != nil {
		return RenderError(c, err)
	}

	header := c.Response().Header()
	header.Set(echo.HeaderContentDisposition, "attachment; filename*=UTF-8''"+url.PathEscape(rec.Name))
	header.Set(echo.HeaderContentType, contentType(rec))
	if rec.Size > 0 {
		header.Set(echo.HeaderContentLength, strconv.FormatInt(rec.Size, 10))
	}

	n, err := w.Controller.Download(ctx, rec, c.Response())
	if err != nil {
		if c.Response().Committed {
			// headers are gone; all that is left is to log the cut-off
			h.log.WarnWith("download interrupted", err, map[string]interface{}{"key": rec.StorageKey(), "bytes": n})
			return nil
		}
		header.Del(echo.HeaderContentDisposition)
		header.Del(echo.HeaderContentLength)
		header.Del(echo.HeaderContentType)
		return RenderError(c, err)
	}
	return nil
}

func contentType(rec objects.Record) string {
	if ct := rec.Raw.ContentType; ct != "" {
		return ct
	}
	return echo.MIMEOctetStream
}

// Search renders matches for ?q= across the bucket
func (h *BrowserHandler) Search(c echo.Context) error {
	w, err := GetWidget(c)
	if err != nil {
		return err
	}
	query := c.QueryParam("q")
	if query == "" {
		return c.Render(http.StatusOK, "listing", h.listingPage(c, w))
	}

	recs, err := w.Controller.Search(c.Request().Context(), query)
	if err != nil {
		return RenderError(c, err)
	}
	rows := make([]models.Row, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, models.NewRow(rec, false))
	}
	return c.Render(http.StatusOK, "search_results", models.SearchPage{
		Query: query,
		Path:  w.Controller.Path(),
		Rows:  rows,
	})
}

// Panel selects ?key= and renders side panel tab ?tab= (Info by default)
func (h *BrowserHandler) Panel(c echo.Context) error {
	w, err := GetWidget(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	key := c.QueryParam("key")

	rec, err := w.Controller.Lookup(ctx, key)
	if err != nil {
		return RenderError(c, err)
	}
	tab := 0
	if raw := c.QueryParam("tab"); raw != "" {
		tab, err = strconv.Atoi(raw)
		if err != nil {
			return RenderError(c, errs.New(errs.ErrKindInvalidInput, "tab must be a number"))
		}
	}

	body, err := w.Host.RenderTab(ctx, rec, tab)
	if err != nil {
		h.log.WarnWith("side panel failed", err, map[string]interface{}{"key": key, "tab": tab})
		return RenderError(c, err)
	}
	w.Controller.Select(key)
	return c.Render(http.StatusOK, "side_panel", models.SidePanel{
		Key:    key,
		Name:   rec.Name,
		Tabs:   w.Host.Resolve(rec).Tabs,
		Active: tab,
		Body:   body,
	})
}

// Preview renders the preview plugin for ?key= in the modal
func (h *BrowserHandler) Preview(c echo.Context) error {
	w, err := GetWidget(c)
	if err != nil {
		return err
	}
	if !w.Controller.Permissions().Allows(browser.ActionPreview) {
		return RenderError(c, errs.New(errs.ErrKindPermissionDenied, "preview is not permitted"))
	}
	ctx := c.Request().Context()

	rec, err := w.Controller.Lookup(ctx, c.QueryParam("key"))
	if err != nil {
		return RenderError(c, err)
	}
	body, err := w.Host.RenderPreview(ctx, rec)
	if err != nil {
		return RenderError(c, err)
	}
	return c.Render(http.StatusOK, "preview_modal", models.Preview{Name: rec.Name, Body: body})
}

// Unmount discards the caller's widget
func (h *BrowserHandler) Unmount(c echo.Context) error {
	w, err := GetWidget(c)
	if err != nil {
		return err
	}
	h.manager.Unmount(w.ID)
	return c.NoContent(http.StatusNoContent)
}
