package auth

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// publicPaths bypass authentication entirely.
var publicPaths = map[string]bool{
	"/health":       true,
	"/health/db":    true,
	"/metrics":      true,
	"/api/auth":     true,
	"/api/register": true,
}

// AuthSkipper returns true for requests whose path should skip authentication.
func AuthSkipper(c echo.Context) bool {
	return IsPublicPath(c.Request().URL.Path)
}

// IsPublicPath reports whether path is served without credentials. Uploaded
// media is public by URL.
func IsPublicPath(path string) bool {
	path = strings.TrimSuffix(path, "/")
	if publicPaths[path] {
		return true
	}
	return strings.HasPrefix(path, "/uploads/")
}

func isWebSocket(path string) bool {
	return path == "/ws" || path == "/ws/"
}
