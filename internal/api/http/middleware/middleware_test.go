package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/EternisAI/netmeasure/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func okHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"operator": c.GetString(OperatorKey)})
}

func do(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestLogger_SetsRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogger())
	r.GET("/", okHandler)

	w := do(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = do(r, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestJWTAuth(t *testing.T) {
	r := gin.New()
	r.GET("/", JWTAuth("secret"), okHandler)

	token, _, err := auth.GenerateToken(auth.JWTConfig{Secret: "secret"}, "alice", auth.RoleOperator, time.Now())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := do(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"operator":"alice"}`, w.Body.String())

	w = do(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w = do(r, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTAuth_NotConfigured(t *testing.T) {
	r := gin.New()
	r.GET("/", JWTAuth(""), okHandler)

	w := do(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRequireRole(t *testing.T) {
	r := gin.New()
	r.GET("/", JWTAuth("secret"), RequireRole(auth.RoleAdmin), okHandler)

	token, _, err := auth.GenerateToken(auth.JWTConfig{Secret: "secret"}, "bob", auth.RoleOperator, time.Now())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusForbidden, do(r, req).Code)

	token, _, err = auth.GenerateToken(auth.JWTConfig{Secret: "secret"}, "carol", auth.RoleAdmin, time.Now())
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, do(r, req).Code)
}

func TestAPIKeyAuth(t *testing.T) {
	r := gin.New()
	r.GET("/", APIKeyAuth("admin-key"), okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(apiKeyHeader, "admin-key")
	assert.Equal(t, http.StatusOK, do(r, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(apiKeyHeader, "wrong")
	assert.Equal(t, http.StatusUnauthorized, do(r, req).Code)

	assert.Equal(t, http.StatusUnauthorized, do(r, httptest.NewRequest(http.MethodGet, "/", nil)).Code)

	unconfigured := gin.New()
	unconfigured.GET("/", APIKeyAuth(""), okHandler)
	assert.Equal(t, http.StatusServiceUnavailable, do(unconfigured, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
}

func TestCooldown(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cd := NewCooldown(10 * time.Second)
	cd.now = func() time.Time { return now }

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if op := c.GetHeader("X-Operator"); op != "" {
			c.Set(OperatorKey, op)
		}
		c.Next()
	})
	r.GET("/", cd.Handler(), okHandler)

	request := func(operator string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Operator", operator)
		return do(r, req)
	}

	assert.Equal(t, http.StatusOK, request("alice").Code)

	w := request("alice")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "10", w.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, request("bob").Code)

	now = now.Add(10 * time.Second)
	assert.Equal(t, http.StatusOK, request("alice").Code)
}

func TestCooldown_Disabled(t *testing.T) {
	r := gin.New()
	r.GET("/", NewCooldown(0).Handler(), okHandler)

	for range 3 {
		assert.Equal(t, http.StatusOK, do(r, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
	}
}
