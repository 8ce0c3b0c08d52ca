package echoportal

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

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/guard"
	"github.com/trezcool/masomo-portal/core/note"
	"github.com/trezcool/masomo-portal/core/notification"
	"github.com/trezcool/masomo-portal/core/school"
	"github.com/trezcool/masomo-portal/core/session"
	"github.com/trezcool/masomo-portal/core/user"
	"github.com/trezcool/masomo-portal/storage/restapi"
)

type (
	// RemoteAPI is everything the portal asks of the remote school API on behalf of one session.
	RemoteAPI interface {
		note.Repository
		school.Reader
		school.Writer
		guard.SubscriptionSource
		guard.AuthSource
		notification.Source
		Login(ctx context.Context, creds user.Credentials) (restapi.LoginResponse, error)
		ChangePassword(ctx context.Context, cp user.ChangePassword) error
	}

	// APIFactory returns the remote API authenticated with token ("" for anonymous calls).
	APIFactory func(token string) RemoteAPI

	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		Sessions   session.Repository
		API        APIFactory
		Policies   guard.PolicySource
		MailSvc    core.EmailService
		Validate   *validator.Validate
		Translator ut.Translator

		DisableReqLogs bool
	}

	Server struct {
		ServerDeps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

// RestAPIFactory adapts a restapi.Client to an APIFactory.
func RestAPIFactory(c *restapi.Client) APIFactory {
	return func(token string) RemoteAPI { return c.WithToken(token) }
}

func NewServer(deps ServerDeps) *Server {
	if deps.Logger == nil {
		deps.Logger = core.NopLogger{}
	}
	if deps.Policies == nil {
		deps.Policies = guard.StaticPolicy(guard.DefaultPolicy(deps.Conf.Guard))
	}
	s := &Server{
		ServerDeps: deps,
		app:        echo.New(),
		errors:     make(chan error, 1),
		shutdown:   make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.Conf.Debug || s.Conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.Logger, s.Translator, s.SignalShutdown)
	s.app.Debug = s.Conf.Debug && !s.Conf.TestMode

	s.app.GET("/", s.home)

	v1 := s.app.Group("/v1")
	authed := v1.Group("", s.sessionMiddleware)

	registerAuthAPI(v1, authed, s)
	registerDashboardAPI(authed, s)
	registerNoteAPI(authed, s)
	registerSchoolAPI(authed, s)
}

func (s *Server) Start() {
	if err := s.app.Start(s.Conf.Server.Addr); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

// SignalShutdown asks main to stop the server gracefully.
func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	signal.Stop(s.shutdown)
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to the "+s.Conf.AppName+" portal!")
}
