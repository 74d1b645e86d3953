package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/thesisman/backend/core"
	"github.com/thesisman/backend/core/application"
	"github.com/thesisman/backend/core/clock"
	"github.com/thesisman/backend/core/notification"
	"github.com/thesisman/backend/core/proposal"
	"github.com/thesisman/backend/core/startrequest"
	"github.com/thesisman/backend/core/sweeper"
	metricsvc "github.com/thesisman/backend/services/metrics"
)

type (
	ServerDeps struct {
		Conf           *core.Config
		Logger         core.Logger
		Metrics        *metricsvc.Metrics
		Validate       *validator.Validate
		Translator     ut.Translator
		DisableReqLogs bool

		Proposals     *proposal.Service
		Applications  *application.Service
		StartRequests *startrequest.Service
		Notifications *notification.Service
		Clock         *clock.Service
		Sweeper       *sweeper.Service
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		auth     auth
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ http.Handler = (*Server)(nil)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		auth:     newAuth(deps.Conf.SecretKey),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	if s.deps.Metrics != nil {
		s.app.Use(s.deps.Metrics.Middleware())
		s.app.GET("/metrics", echo.WrapHandler(s.deps.Metrics.Handler()))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug && !conf.TestMode

	s.app.GET("/", home(conf.AppName))

	v1 := s.app.Group("/v1", s.auth.middleware())

	registerProposalAPI(v1, s.deps.Proposals, s.deps.Applications, s.deps.Validate)
	registerApplicationAPI(v1, s.deps.Applications, s.deps.Validate)
	registerStartRequestAPI(v1, s.deps.StartRequests, s.deps.Validate)
	registerNotificationAPI(v1, s.deps.Notifications)
	registerClockAPI(v1, s.deps.Clock, s.deps.Sweeper)
}

// Start blocks until the server stops. Listen errors are sent to Errors().
func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Host); err != nil && err != http.ErrServerClosed {
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
	default:
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

func home(appName string) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		return ctx.String(http.StatusOK, "Welcome to "+appName+" API!")
	}
}
