package echoapi

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"

	"github.com/bob-rietveld/unheard-v2-sub001/core"
	"github.com/bob-rietveld/unheard-v2-sub001/core/experiment"
	"github.com/bob-rietveld/unheard-v2-sub001/core/persona"
	"github.com/bob-rietveld/unheard-v2-sub001/core/response"
)

type (
	Deps struct {
		DB            *sql.DB
		Translator    ut.Translator
		PersonaSvc    *persona.Service
		ExperimentSvc *experiment.Service
		ResponseSvc   *response.Service
	}

	Server struct {
		conf     *core.Config
		logger   core.Logger
		deps     *Deps
		app      *echo.Echo
		metrics  *metrics
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(conf *core.Config, logger core.Logger, deps *Deps) *Server {
	s := &Server{
		conf:     conf,
		logger:   logger,
		deps:     deps,
		app:      echo.New(),
		metrics:  newMetrics(deps.DB),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	if !conf.TestMode {
		signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	debug := s.conf.Debug

	s.app.HideBanner = true
	s.app.Server.ReadTimeout = s.conf.Server.ReadTimeout
	s.app.Server.WriteTimeout = s.conf.Server.WriteTimeout

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(debug || s.conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(s.metrics.middleware)

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = debug

	s.app.GET("/", home)
	s.app.GET("/health", s.health)
	s.app.GET("/metrics", s.metrics.handler())

	v1 := s.app.Group("/v1")
	registerPersonaAPI(v1, s.deps.PersonaSvc, s.deps.ResponseSvc)
	registerExperimentAPI(v1, s.deps.ExperimentSvc, s.deps.ResponseSvc)
	registerResponseAPI(v1, s.deps.ResponseSvc)
}

// Start blocks until the server stops. Listen errors are sent to Errors.
func (s *Server) Start() {
	s.logger.Info("API listening on " + s.conf.Server.Address)
	if err := s.app.Start(s.conf.Server.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already shutting down
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Unheard API!")
}

func (s *Server) health(ctx echo.Context) error {
	status := echo.Map{"status": "ok"}
	if s.deps.DB != nil {
		pingCtx, cancel := context.WithTimeout(ctx.Request().Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.DB.PingContext(pingCtx); err != nil {
			s.logger.Warn("health check failed", err)
			return ctx.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable"})
		}
	}
	return ctx.JSON(http.StatusOK, status)
}
