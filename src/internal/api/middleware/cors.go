package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/spf13/viper"
)

// CORS applies the cors.* config: an origin allowlist with wildcard
// subdomain support, preflight handling, and an open door for the public
// health endpoint.
func CORS(cfg *viper.Viper) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			res := c.Response()
			origin := req.Header.Get("Origin")

			// Same-origin requests carry no Origin header.
			if origin == "" {
				return next(c)
			}

			allowedOrigins := cfg.GetStringSlice("cors.allowed_origins")
			if len(allowedOrigins) == 0 {
				allowedOrigins = []string{"*"}
			}

			allowed := false
			for _, allowedOrigin := range allowedOrigins {
				if allowedOrigin == "*" || allowedOrigin == origin {
					allowed = true
					break
				}
				if strings.HasPrefix(allowedOrigin, "*.") {
					domain := strings.TrimPrefix(allowedOrigin, "*.")
					if strings.HasSuffix(origin, domain) {
						allowed = true
						break
					}
				}
			}

			if !allowed && isPublicReadEndpoint(c) {
				allowed = true
			}

			if !allowed {
				return echo.NewHTTPError(http.StatusForbidden, "CORS: origin not allowed")
			}

			res.Header().Set("Access-Control-Allow-Origin", origin)
			res.Header().Set("Access-Control-Allow-Methods",
				cfg.GetString("cors.allowed_methods"))
			res.Header().Set("Access-Control-Allow-Headers",
				cfg.GetString("cors.allowed_headers"))
			res.Header().Set("Access-Control-Max-Age",
				strconv.Itoa(cfg.GetInt("cors.max_age")))
			if cfg.GetBool("cors.allow_credentials") {
				res.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			if req.Method == http.MethodOptions {
				return c.NoContent(http.StatusNoContent)
			}

			return next(c)
		}
	}
}

func isPublicReadEndpoint(c echo.Context) bool {
	return c.Request().Method == http.MethodGet &&
		strings.HasPrefix(c.Request().URL.Path, "/api/v1/health")
}
