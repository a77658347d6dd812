package httpserver_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macsteckler/lightspeeed-scraper/internal/httpserver"
)

const testSecret = "test-signing-secret"

func newAuthedEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(httpserver.AuthMiddleware(testSecret))
	router.GET("/api/v1/jobs", func(c *gin.Context) {
		claims, ok := httpserver.GetClaims(c)
		if !ok {
			c.String(http.StatusInternalServerError, "no claims")
			return
		}
		c.String(http.StatusOK, claims.Sub)
	})
	router.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "healthy") })
	router.GET("/metrics", func(c *gin.Context) { c.String(http.StatusOK, "metrics") })
	return router
}

func signToken(t *testing.T, secret string, expires time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &httpserver.Claims{
		Sub: "scheduler",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestAuthMiddlewareAcceptsValidToken(t *testing.T) {
	router := newAuthedEngine()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, time.Now().Add(time.Hour)))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "scheduler", w.Body.String(), "claims are available to handlers")
}

func TestAuthMiddlewareRejectsMissingHeader(t *testing.T) {
	router := newAuthedEngine()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs", http.NoBody))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "missing authorization header")
}

func TestAuthMiddlewareRejectsMalformedHeader(t *testing.T) {
	router := newAuthedEngine()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", http.NoBody)
	req.Header.Set("Authorization", "Token abc123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid authorization header format")
}

func TestAuthMiddlewareRejectsBadSignature(t *testing.T) {
	router := newAuthedEngine()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "other-secret", time.Now().Add(time.Hour)))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddlewareRejectsExpiredToken(t *testing.T) {
	router := newAuthedEngine()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, time.Now().Add(-time.Hour)))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddlewareExemptsHealthAndMetrics(t *testing.T) {
	router := newAuthedEngine()

	for _, path := range []string{"/health", "/metrics"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, http.NoBody))
		assert.Equal(t, http.StatusOK, w.Code, "path %s must not require auth", path)
	}
}

func TestRegisterHealthRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("healthy", func(t *testing.T) {
		router := gin.New()
		httpserver.RegisterHealthRoutes(router, "scraper", "1.0.0", map[string]httpserver.HealthChecker{
			"database": func() httpserver.CheckResult {
				return httpserver.CheckResult{Status: httpserver.HealthStatusHealthy}
			},
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"healthy"`)
		assert.Contains(t, w.Body.String(), `"service":"scraper"`)
	})

	t.Run("unhealthy dependency returns 503", func(t *testing.T) {
		router := gin.New()
		httpserver.RegisterHealthRoutes(router, "scraper", "1.0.0", map[string]httpserver.HealthChecker{
			"database": func() httpserver.CheckResult {
				return httpserver.CheckResult{Status: httpserver.HealthStatusUnhealthy, Message: "database connection failed"}
			},
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))

		require.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), "database connection failed")
	})

	t.Run("head probe", func(t *testing.T) {
		router := gin.New()
		httpserver.RegisterHealthRoutes(router, "scraper", "1.0.0", nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodHead, "/health", http.NoBody))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestDatabaseHealthChecker(t *testing.T) {
	healthy := httpserver.DatabaseHealthChecker(func(context.Context) error { return nil })()
	assert.Equal(t, httpserver.HealthStatusHealthy, healthy.Status)
	assert.NotEmpty(t, healthy.Latency)

	unhealthy := httpserver.DatabaseHealthChecker(func(context.Context) error {
		return errors.New("connection refused")
	})()
	assert.Equal(t, httpserver.HealthStatusUnhealthy, unhealthy.Status)
}
