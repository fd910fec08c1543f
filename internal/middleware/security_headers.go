package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// OfficeViewerOrigin renders Office previews in a frame.
const OfficeViewerOrigin = "https://view.officeapps.live.com"

func contentSecurityPolicy(frameSources []string) string {
	frames := append([]string{"'self'", OfficeViewerOrigin}, frameSources...)
	images := append([]string{"'self'", "data:", "https:"}, frameSources...)
	return "default-src 'self'; " +
		"script-src 'self' 'unsafe-inline' https://cdn.tailwindcss.com https://unpkg.com; " +
		"style-src 'self' 'unsafe-inline' https://fonts.googleapis.com; " +
		"img-src " + strings.Join(images, " ") + "; " +
		"font-src 'self' https://fonts.gstatic.com; " +
		"connect-src 'self'; " +
		"frame-src " + strings.Join(frames, " ") + "; " +
		"frame-ancestors 'self'; " +
		"base-uri 'self'; " +
		"form-action 'self'"
}

// SecurityHeaders sets the baseline response headers. frameSources are the
// extra origins previews load from, usually the object store endpoint.
func SecurityHeaders(frameSources ...string) echo.MiddlewareFunc {
	csp := contentSecurityPolicy(frameSources)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			headers := c.Response().Header()
			headers.Set("X-Frame-Options", "SAMEORIGIN")
			headers.Set("X-Content-Type-Options", "nosniff")
			headers.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			headers.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
			headers.Set("Content-Security-Policy", csp)

			if isSecureRequest(c) {
				headers.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			return next(c)
		}
	}
}

func isSecureRequest(c echo.Context) bool {
	req := c.Request()
	if req.TLS != nil {
		return true
	}

	return strings.EqualFold(req.Header.Get("X-Forwarded-Proto"), "https")
}
