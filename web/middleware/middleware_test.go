package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/infigaming-com/go-authredis/util"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestCorrelationIdMiddleware(t *testing.T) {
	var seen string
	r := gin.New()
	r.Use(CorrelationIdMiddleware())
	r.GET("/x", func(c *gin.Context) {
		seen, _ = util.CorrelationIdFromCtx(c.Request.Context())
		c.Status(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	generated := rec.Header().Get(CorrelationIdKey)
	assert.NotEmpty(t, generated)
	assert.Equal(t, generated, seen)

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(CorrelationIdKey, "upstream-id")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "upstream-id", rec.Header().Get(CorrelationIdKey))
	assert.Equal(t, "upstream-id", seen)
}

func TestLoggingMiddlewareRedacts(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := gin.New()
	r.Use(CorrelationIdMiddleware(), LoggingMiddleware(
		WithLogger(zap.New(core)),
		WithExcludePaths([]string{"/skip"}),
		WithRedactBodyPaths([]string{"/login"}),
	))
	r.POST("/login", func(c *gin.Context) {
		c.Request = c.Request.WithContext(util.PrincipalToCtx(c.Request.Context(), "alice"))
		c.String(http.StatusOK, strings.Repeat("a", 2*maxLoggedBody))
	})
	r.POST("/echo", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/skip", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"password":"secret"}`))
	req.Header.Set("Authorization", "Bearer token")
	r.ServeHTTP(httptest.NewRecorder(), req)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("hello")))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/skip", nil))

	entries := logs.All()
	require.Len(t, entries, 2)

	login := entries[0].ContextMap()
	assert.NotContains(t, login, "requestBody")
	assert.Equal(t, "alice", login["principal"])
	assert.NotEmpty(t, login["correlation_id"])
	assert.Len(t, login["responseBody"], maxLoggedBody)
	headers, ok := login["requestHeaders"].(http.Header)
	require.True(t, ok)
	assert.Equal(t, "***", headers.Get("Authorization"))

	assert.Equal(t, "hello", entries[1].ContextMap()["requestBody"])
}

func TestLoggingMiddlewareDisabled(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := gin.New()
	r.Use(LoggingMiddleware(WithLogger(zap.New(core)), WithDebugEnabled(false)))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Zero(t, logs.Len())
}
