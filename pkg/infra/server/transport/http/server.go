// Package http provides the gin based HTTP transport.
package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/ragpipe/pkg/infra/middleware"
	mwopts "github.com/kart-io/ragpipe/pkg/options/middleware"
	options "github.com/kart-io/ragpipe/pkg/options/server/http"
	apierrors "github.com/kart-io/ragpipe/pkg/utils/errors"
	"github.com/kart-io/ragpipe/pkg/utils/response"
)

// Server is the HTTP server implementation.
type Server struct {
	opts   *options.Options
	engine *gin.Engine
	server *http.Server
	addr   net.Addr
}

// NewServer creates a new HTTP server with the given options.
func NewServer(serverOpts *options.Options, middlewareOpts *mwopts.Options) *Server {
	if serverOpts == nil {
		serverOpts = options.NewOptions()
	}
	if middlewareOpts == nil {
		middlewareOpts = mwopts.NewOptions()
	}

	gin.SetMode(serverOpts.Mode)

	// 不使用 gin.Default 的中间件
	engine := gin.New()

	s := &Server{
		opts:   serverOpts,
		engine: engine,
	}

	// 中间件必须在路由注册之前应用，否则子路由组不会继承
	s.applyMiddleware(middlewareOpts)

	engine.NoRoute(func(c *gin.Context) {
		response.Fail(c, apierrors.ErrRouteNotFound)
	})

	return s
}

// Name returns the server name.
func (s *Server) Name() string {
	return "http[gin]"
}

// Engine returns the underlying gin.Engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Addr returns the bound address once the server is started.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Start starts the HTTP server.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.engine,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  s.opts.IdleTimeout,
	}

	// 先监听端口，绑定失败时直接返回错误
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	s.addr = ln.Addr()

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(10 * time.Millisecond):
		return nil
	}
}

// Stop stops the HTTP server gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// applyMiddleware applies configured middleware to the engine.
func (s *Server) applyMiddleware(opts *mwopts.Options) {
	// Recovery 优先级最高
	s.engine.Use(middleware.Recovery())

	// RequestID 为其他中间件提供请求 ID
	if opts.RequestID != nil {
		s.engine.Use(middleware.RequestID(opts.RequestID.Header))
	}

	if opts.Logger != nil {
		s.engine.Use(middleware.Logger(opts.Logger.SkipPaths))
	}

	if opts.CORS != nil {
		s.engine.Use(middleware.CORS(opts.CORS))
	}
}
