package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/bookhive/bookhive/src/internal/errors"
	"github.com/bookhive/bookhive/src/internal/metrics"
)

func run(mw echo.MiddlewareFunc, req *http.Request, handler echo.HandlerFunc) (*httptest.ResponseRecorder, error) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if handler == nil {
		handler = func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }
	}
	return rec, mw(handler)(c)
}

func TestRateLimiter(t *testing.T) {
	newLimiter := func(rps float64, burst int) *RateLimiter {
		cfg := viper.New()
		cfg.Set("ratelimit.rps", rps)
		cfg.Set("ratelimit.burst", burst)
		return NewRateLimiter(cfg)
	}

	request := func(ip string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/ai/books/search_nl", nil)
		req.RemoteAddr = ip + ":4321"
		return req
	}

	t.Run("BurstThenReject", func(t *testing.T) {
		rl := newLimiter(1, 2)
		mw := rl.Middleware()

		for i := 0; i < 2; i++ {
			_, err := run(mw, request("10.0.0.1"), nil)
			require.NoError(t, err)
		}

		e := echo.New()
		rec := httptest.NewRecorder()
		c := e.NewContext(request("10.0.0.1"), rec)
		err := mw(func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })(c)

		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusTooManyRequests, httpErr.Code)
		assert.Equal(t, "1", c.Response().Header().Get("Retry-After"))
	})

	t.Run("ClientsHaveSeparateBuckets", func(t *testing.T) {
		rl := newLimiter(1, 1)
		mw := rl.Middleware()

		_, err := run(mw, request("10.0.0.1"), nil)
		require.NoError(t, err)
		_, err = run(mw, request("10.0.0.1"), nil)
		require.Error(t, err)

		// A different address still has its full burst.
		_, err = run(mw, request("10.0.0.2"), nil)
		require.NoError(t, err)
	})

	t.Run("SweepEvictsIdleVisitors", func(t *testing.T) {
		rl := newLimiter(1, 1)
		mw := rl.Middleware()

		_, err := run(mw, request("10.0.0.1"), nil)
		require.NoError(t, err)
		_, err = run(mw, request("10.0.0.1"), nil)
		require.Error(t, err)

		// Evicting the bucket hands the client a fresh burst.
		rl.sweep(time.Now().Add(time.Hour))
		_, err = run(mw, request("10.0.0.1"), nil)
		require.NoError(t, err)
	})

	t.Run("DefaultsWhenUnconfigured", func(t *testing.T) {
		rl := NewRateLimiter(viper.New())
		assert.Equal(t, 5, rl.burst)
	})
}

func TestCORS(t *testing.T) {
	newCfg := func(origins ...string) *viper.Viper {
		cfg := viper.New()
		cfg.Set("cors.allowed_origins", origins)
		cfg.Set("cors.allowed_methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		cfg.Set("cors.allowed_headers", "Origin,Content-Type,Accept,Authorization")
		cfg.Set("cors.max_age", 86400)
		return cfg
	}

	t.Run("SameOriginPassesUntouched", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/books", nil)
		rec, err := run(CORS(newCfg("https://app.example.com")), req, nil)
		require.NoError(t, err)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("AllowedOriginGetsHeaders", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/books", nil)
		req.Header.Set("Origin", "https://app.example.com")
		rec, err := run(CORS(newCfg("https://app.example.com")), req, nil)
		require.NoError(t, err)
		assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "86400", rec.Header().Get("Access-Control-Max-Age"))
	})

	t.Run("UnknownOriginRejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/books", nil)
		req.Header.Set("Origin", "https://evil.example.net")
		_, err := run(CORS(newCfg("https://app.example.com")), req, nil)

		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusForbidden, httpErr.Code)
	})

	t.Run("WildcardSubdomains", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/books", nil)
		req.Header.Set("Origin", "https://staging.example.com")
		_, err := run(CORS(newCfg("*.example.com")), req, nil)
		require.NoError(t, err)
	})

	t.Run("PreflightShortCircuits", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/books", nil)
		req.Header.Set("Origin", "https://app.example.com")
		called := false
		rec, err := run(CORS(newCfg("https://app.example.com")), req, func(c echo.Context) error {
			called = true
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.False(t, called)
	})

	t.Run("HealthIsReadableFromAnywhere", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
		req.Header.Set("Origin", "https://elsewhere.example.net")
		_, err := run(CORS(newCfg("https://app.example.com")), req, nil)
		require.NoError(t, err)
	})
}

func TestSecurityHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/books", nil)
	rec, err := run(Security(), req, nil)
	require.NoError(t, err)

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "default-src 'none'")
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/books", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rec, err = run(Security(), req, nil)
	require.NoError(t, err)
	assert.Contains(t, rec.Header().Get("Strict-Transport-Security"), "max-age=")
}

func TestMetricsMiddleware(t *testing.T) {
	m := metrics.NewMetrics(nil)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/books", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/v1/books")
	require.NoError(t, Metrics(m)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})(c))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/books/99", nil)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetPath("/api/v1/books/:id")
	err := Metrics(m)(func(c echo.Context) error {
		return apperrors.NotFound("Book")
	})(c)
	assert.Error(t, err)

	snap := m.GetSnapshot("test")
	assert.Equal(t, int64(2), snap.Counters["http.requests.total"])
	assert.Equal(t, int64(1), snap.Counters["http.requests.status.2xx"])
	assert.Equal(t, int64(1), snap.Counters["http.requests.status.4xx"])
	assert.Equal(t, int64(1), snap.Counters["http.requests.route.GET /api/v1/books"])
	assert.Equal(t, int64(2), snap.Histograms["http.request.duration"].Count)
}
