package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// publicRoutes lists method+route pairs reachable without credentials.
// Keys use the registered route pattern (c.Path()), not the raw URL.
var publicRoutes = map[string]bool{
	"GET /health":                true,
	"GET /health/db":             true,
	"GET /metrics":               true,
	"POST /api/v1/auth/register": true,
	"POST /api/v1/auth/login":    true,
	"GET /api/v1/services":       true,
	"GET /api/v1/services/:id":   true,
	"GET /api/v1/news":           true,
	"GET /api/v1/news/:id":       true,
	"GET /api/v1/materials":      true,
	"GET /api/v1/materials/:id":  true,
}

// AuthSkipper returns true for requests whose route may be served anonymously.
// HEAD is treated as GET.
func AuthSkipper(c echo.Context) bool {
	method := c.Request().Method
	if method == http.MethodHead {
		method = http.MethodGet
	}
	return IsPublicRoute(method, c.Path())
}

func IsPublicRoute(method, path string) bool {
	return publicRoutes[method+" "+path]
}
