package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const DefaultShutdownTimeout = 15 * time.Second

type Server struct {
	lg              *zap.Logger
	engine          *gin.Engine
	mode            string
	port            int64
	shutdownTimeout time.Duration
	middlewares     []gin.HandlerFunc
	routes          []func(gin.IRouter)
}

type Option func(*Server)

func defaultServer(lg *zap.Logger) *Server {
	return &Server{
		lg:              lg,
		mode:            gin.ReleaseMode,
		port:            8080,
		shutdownTimeout: DefaultShutdownTimeout,
	}
}

func WithMode(mode string) Option {
	return func(s *Server) {
		s.mode = mode
	}
}

func WithPort(port int64) Option {
	return func(s *Server) {
		s.port = port
	}
}

func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// WithMiddleware appends handlers that run on every request, after the
// recovery and healthcheck handlers.
func WithMiddleware(handlers ...gin.HandlerFunc) Option {
	return func(s *Server) {
		s.middlewares = append(s.middlewares, handlers...)
	}
}

func WithRoutes(register func(r gin.IRouter)) Option {
	return func(s *Server) {
		if register != nil {
			s.routes = append(s.routes, register)
		}
	}
}

func NewServer(lg *zap.Logger, opts ...Option) *Server {
	if lg == nil {
		lg = zap.L()
	}
	s := defaultServer(lg)
	for _, opt := range opts {
		opt(s)
	}

	gin.SetMode(s.mode)
	s.engine = gin.New()
	s.engine.Use(gin.Recovery())
	s.engine.Use(defaultHandler())
	s.engine.Use(s.middlewares...)
	for _, register := range s.routes {
		register(s.engine)
	}
	return s
}

// Handler exposes the engine, mostly for httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Addr() string {
	return fmt.Sprintf(":%d", s.port)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    s.Addr(),
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		s.lg.Info("starting web server ...", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			s.lg.Error("fail to listenAndServe", zap.Error(err))
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.lg.Info("shutdown web server ...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.lg.Error("fail to shutdown web server", zap.Error(err))
		return err
	}
	s.lg.Info("web server exiting")
	return nil
}

func defaultHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch {
		case c.Request.URL.Path == "/":
			c.AbortWithStatus(http.StatusOK)
			return
		case strings.HasSuffix(c.Request.URL.Path, "/healthcheck"):
			c.AbortWithStatus(http.StatusOK)
			return
		}
	}
}
