package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pivoine.art/gamification/pkg/metrics"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims CMSClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func validClaims(id string, admin bool) CMSClaims {
	return CMSClaims{
		ID:          id,
		AdminAccess: admin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			Issuer:    "directus",
		},
	}
}

func authRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	m := NewAuthMiddleware(testSecret)

	r := gin.New()
	r.GET("/me", m.RequireAuth(), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextUserID))
	})
	r.POST("/admin", m.RequireAuth(), m.RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuth(t *testing.T) {
	r := authRouter()
	userID := "7c9e6679-7425-40de-944b-e07fc1f90ae7"

	t.Run("bearer header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, validClaims(userID, false)))
		w := serve(r, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, userID, w.Body.String())
	})

	t.Run("token query parameter", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me?token="+signToken(t, testSecret, validClaims(userID, false)), nil)
		w := serve(r, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, userID, w.Body.String())
	})

	t.Run("subject fallback", func(t *testing.T) {
		claims := validClaims("", false)
		claims.Subject = userID
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, claims))
		w := serve(r, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, userID, w.Body.String())
	})

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"missing", "", "authorization required"},
		{"wrong scheme", "Basic abc", "authorization required"},
		{"wrong secret", "Bearer " + signToken(t, "other", validClaims(userID, false)), "invalid or expired token"},
		{"expired", "Bearer " + signToken(t, testSecret, CMSClaims{
			ID:               userID,
			RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))},
		}), "invalid or expired token"},
		{"no identity", "Bearer " + signToken(t, testSecret, validClaims("", false)), "invalid token claims"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := serve(r, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), tt.want)
		})
	}
}

func TestRequireAuthRejectsNoneAlgorithm(t *testing.T) {
	r := authRouter()
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, validClaims("x", true)).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)
}

func TestRequireAdmin(t *testing.T) {
	r := authRouter()
	userID := "7c9e6679-7425-40de-944b-e07fc1f90ae7"

	req := httptest.NewRequest(http.MethodPost, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, validClaims(userID, true)))
	assert.Equal(t, http.StatusNoContent, serve(r, req).Code)

	req = httptest.NewRequest(http.MethodPost, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, validClaims(userID, false)))
	w := serve(r, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "admin access required")
}

func TestRequireAdminWithoutAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", NewAuthMiddleware(testSecret).RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusUnauthorized, serve(r, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
}

func TestRequireWebhookSecret(t *testing.T) {
	gin.SetMode(gin.TestMode)

	route := func(secret string) *gin.Engine {
		r := gin.New()
		r.POST("/events", RequireWebhookSecret(secret), func(c *gin.Context) { c.Status(http.StatusAccepted) })
		return r
	}

	tests := []struct {
		name       string
		configured string
		sent       string
		want       int
	}{
		{"match", "s3cret", "s3cret", http.StatusAccepted},
		{"mismatch", "s3cret", "guess", http.StatusUnauthorized},
		{"missing header", "s3cret", "", http.StatusUnauthorized},
		{"unconfigured", "", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/events", nil)
			if tt.sent != "" {
				req.Header.Set(WebhookSecretHeader, tt.sent)
			}
			assert.Equal(t, tt.want, serve(route(tt.configured), req).Code)
		})
	}
}

func TestHTTPMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := metrics.New()

	r := gin.New()
	r.Use(HTTPMetrics(m))
	r.GET("/users/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(r, httptest.NewRequest(http.MethodGet, "/users/1", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/users/2", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()
	assert.Contains(t, body, `pivoine_http_requests_total{method="GET",route="/users/:id",status="200"} 2`)
	assert.Contains(t, body, `pivoine_http_requests_total{method="GET",route="unmatched",status="404"} 1`)
}
