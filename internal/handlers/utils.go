package handlers

import (
	"net/http"

	"github.com/damacus/iron-drawer/internal/browser"
	"github.com/damacus/iron-drawer/internal/errs"
	"github.com/damacus/iron-drawer/internal/middleware"
	"github.com/damacus/iron-drawer/internal/models"
	"github.com/damacus/iron-drawer/internal/utils"
	"github.com/labstack/echo/v4"
)

// GetWidget retrieves the caller's browser widget from the context
func GetWidget(c echo.Context) (*browser.Widget, error) {
	val := c.Get(utils.ContextKeyController)
	if val == nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "No browser widget mounted")
	}
	widget, ok := val.(*browser.Widget)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "No browser widget mounted")
	}
	return widget, nil
}

// csrfToken is the token the CSRF middleware issued for this request.
func csrfToken(c echo.Context) string {
	token, _ := c.Get(middleware.CSRFContextKey).(string)
	return token
}

// HTMXRedirect sets the HX-Redirect header and returns a 200 OK response.
// This is used for HTMX requests that should trigger a client-side redirect.
func HTMXRedirect(c echo.Context, url string) error {
	c.Response().Header().Set("HX-Redirect", url)
	return c.NoContent(http.StatusOK)
}

// StatusFor maps an error kind to the response status.
func StatusFor(err error) int {
	switch errs.KindOf(err) {
	case errs.ErrKindInvalidInput:
		return http.StatusBadRequest
	case errs.ErrKindConflict:
		return http.StatusConflict
	case errs.ErrKindPermissionDenied:
		return http.StatusForbidden
	case errs.ErrKindNotFound:
		return http.StatusNotFound
	case errs.ErrKindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// RenderError answers with the alert fragment. The layout swaps error
// responses into the alert area.
func RenderError(c echo.Context, err error) error {
	return c.Render(StatusFor(err), "alert", models.Alert{Level: "error", Message: errs.Message(err)})
}
