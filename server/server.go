package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/driplo/twofa/config"
	"github.com/driplo/twofa/services/logging"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

type Server struct {
	echo   *echo.Echo
	cfg    *config.Config
	logger *logging.Service

	mu      sync.Mutex
	addr    net.Addr
	serveWG sync.WaitGroup
}

func New(cfg *config.Config, logger *logging.Service) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewValidator()

	s := &Server{
		echo:   e,
		cfg:    cfg,
		logger: logger,
	}

	e.HTTPErrorHandler = s.handleError
	configureTrustedProxies(e, cfg.Server.TrustedProxies, logger)

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			if logger != nil {
				logger.Error("panic recovered", zap.Error(err), zap.ByteString("stack", stack))
			}
			return err
		},
	}))

	e.Use(logging.RequestID())

	return s
}

func (s *Server) Get(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	s.echo.GET(path, h, m...)
}

func (s *Server) Post(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	s.echo.POST(path, h, m...)
}

func (s *Server) Put(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	s.echo.PUT(path, h, m...)
}

func (s *Server) Delete(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	s.echo.DELETE(path, h, m...)
}

func (s *Server) Patch(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	s.echo.PATCH(path, h, m...)
}

// Start binds the listener synchronously and serves in the background.
func (s *Server) Start() error {
	s.logRoutes()

	addr := net.JoinHostPort(s.cfg.Server.Host, s.cfg.Server.Port)

	if s.cfg.Server.TLSCertFile != "" && s.cfg.Server.TLSKeyFile != "" {
		s.serve(func() error {
			return s.echo.StartTLS(addr, s.cfg.Server.TLSCertFile, s.cfg.Server.TLSKeyFile)
		})
		if s.logger != nil {
			s.logger.Info("server starting with TLS", zap.String("addr", addr))
		}
		return nil
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.echo.Listener = ln

	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	s.serve(func() error {
		return s.echo.Start("")
	})

	if s.logger != nil {
		s.logger.Info("server started", zap.String("addr", ln.Addr().String()))
	}
	return nil
}

func (s *Server) serve(run func() error) {
	s.serveWG.Add(1)
	go func() {
		defer s.serveWG.Done()
		if err := run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			if s.logger != nil {
				s.logger.Error("server stopped unexpectedly", zap.Error(err))
			}
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	err := s.echo.Shutdown(ctx)
	s.serveWG.Wait()
	if s.logger != nil {
		s.logger.Info("server stopped")
	}
	return err
}

// Addr is the bound listener address once Start has returned.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

func (s *Server) Group(prefix string, m ...echo.MiddlewareFunc) *echo.Group {
	return s.echo.Group(prefix, m...)
}

func (s *Server) Use(m ...echo.MiddlewareFunc) {
	s.echo.Use(m...)
}

func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) logRoutes() {
	if s.logger == nil {
		return
	}
	for _, r := range s.echo.Routes() {
		s.logger.Debug("route registered",
			zap.String("method", r.Method),
			zap.String("path", r.Path),
			zap.String("handler", shortenHandlerName(r.Name)))
	}
}

func shortenHandlerName(name string) string {
	if i := strings.Index(name, "/"); i >= 0 && strings.Count(name, "/") > 1 {
		name = name[i+1:]
	}
	if len(name) > 80 {
		name = name[:77] + "..."
	}
	return name
}

func configureTrustedProxies(e *echo.Echo, trustedProxies []string, logger *logging.Service) {
	var options []echo.TrustOption

	for _, proxy := range trustedProxies {
		proxy = strings.TrimSpace(proxy)
		if proxy == "" {
			continue
		}

		if !strings.Contains(proxy, "/") {
			if ip := net.ParseIP(proxy); ip != nil {
				if ip.To4() != nil {
					proxy += "/32"
				} else {
					proxy += "/128"
				}
			}
		}

		_, network, err := net.ParseCIDR(proxy)
		if err != nil {
			if logger != nil {
				logger.Warn("ignoring invalid trusted proxy", zap.String("proxy", proxy), zap.Error(err))
			}
			continue
		}
		options = append(options, echo.TrustIPRange(network))
	}

	if len(options) == 0 {
		e.IPExtractor = echo.ExtractIPDirect()
		return
	}

	options = append(options,
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	)
	e.IPExtractor = echo.ExtractIPFromXFFHeader(options...)
}
