package middleware

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/infigaming-com/go-authredis/util"
)

const maxLoggedBody = 1024

var sensitiveHeaders = []string{"Authorization", "Cookie", "Set-Cookie"}

type loggingMiddlewareOptions struct {
	lg              *zap.Logger
	debugEnabled    bool
	excludePaths    []string
	redactBodyPaths []string
}

type LoggingMiddlewareOption func(*loggingMiddlewareOptions)

func WithLogger(lg *zap.Logger) LoggingMiddlewareOption {
	return func(o *loggingMiddlewareOptions) {
		o.lg = lg
	}
}

func WithDebugEnabled(debugEnabled bool) LoggingMiddlewareOption {
	return func(o *loggingMiddlewareOptions) {
		o.debugEnabled = debugEnabled
	}
}

func WithExcludePaths(excludePaths []string) LoggingMiddlewareOption {
	return func(o *loggingMiddlewareOptions) {
		o.excludePaths = excludePaths
	}
}

// WithRedactBodyPaths keeps request bodies of these paths, typically the
// login endpoint, out of the log.
func WithRedactBodyPaths(paths []string) LoggingMiddlewareOption {
	return func(o *loggingMiddlewareOptions) {
		o.redactBodyPaths = paths
	}
}

func defaultLoggingMiddlewareOptions() *loggingMiddlewareOptions {
	return &loggingMiddlewareOptions{
		lg:           zap.L(),
		debugEnabled: true,
	}
}

func LoggingMiddleware(opts ...LoggingMiddlewareOption) gin.HandlerFunc {
	cfg := defaultLoggingMiddlewareOptions()

	for _, opt := range opts {
		opt(cfg)
	}

	return func(c *gin.Context) {
		if !cfg.debugEnabled || lo.Contains(cfg.excludePaths, c.Request.URL.Path) {
			c.Next()
			return
		}

		startTime := time.Now()
		var requestBody []byte
		redacted := lo.Contains(cfg.redactBodyPaths, c.Request.URL.Path)
		if c.Request.Body != nil && !redacted {
			requestBody, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(requestBody))
		}

		rw := &responseWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}, limit: maxLoggedBody}
		c.Writer = rw

		c.Next()

		ctx := c.Request.Context()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("url", c.Request.URL.String()),
			zap.Any("requestHeaders", redactHeaders(c.Request.Header)),
			zap.Int("status", c.Writer.Status()),
			zap.ByteString("responseBody", rw.body.Bytes()),
			zap.Duration("duration", time.Since(startTime)),
		}
		if !redacted {
			fields = append(fields, zap.ByteString("requestBody", requestBody))
		}
		if correlationId, err := util.CorrelationIdFromCtx(ctx); err == nil {
			fields = append(fields, zap.String("correlation_id", correlationId))
		}
		if sessionId, err := util.SessionIdFromCtx(ctx); err == nil {
			fields = append(fields, zap.String("session_id", sessionId))
		}
		if principal, err := util.PrincipalFromCtx(ctx); err == nil {
			fields = append(fields, zap.String("principal", principal))
		}
		cfg.lg.Debug("[Logging]", fields...)
	}
}

func redactHeaders(h http.Header) http.Header {
	out := h.Clone()
	for _, name := range sensitiveHeaders {
		if out.Get(name) != "" {
			out.Set(name, "***")
		}
	}
	return out
}
