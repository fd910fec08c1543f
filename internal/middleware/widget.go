package middleware

import (
	"strings"

	"github.com/damacus/iron-drawer/internal/browser"
	"github.com/damacus/iron-drawer/internal/utils"
	"github.com/labstack/echo/v4"
)

// Widgets attaches the caller's browser widget to the context. The id comes
// from the X-Widget-ID header, or the widget query value on plain links. A
// new widget is mounted when neither names a live one. The id in use is
// echoed in the response header. Only paths under prefixes are covered.
func Widgets(manager *browser.Manager, prefixes ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !covered(c.Request().URL.Path, prefixes) {
				return next(c)
			}

			var widget *browser.Widget
			if id := requestedWidget(c); id != "" {
				widget, _ = manager.Get(id)
			}
			if widget == nil {
				widget = manager.Mount()
			}
			c.Response().Header().Set(utils.HeaderWidgetID, widget.ID)

			c.Set(utils.ContextKeyWidgetID, widget.ID)
			c.Set(utils.ContextKeyController, widget)
			return next(c)
		}
	}
}

func requestedWidget(c echo.Context) string {
	if id := c.Request().Header.Get(utils.HeaderWidgetID); id != "" {
		return id
	}
	return c.QueryParam(utils.QueryWidgetID)
}

func covered(path string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}
