// Package http serves the public booking surface. Every endpoint is
// anonymous and guarded by the subscriber's signed link; booking state
// never leaks beyond what the signed link already grants.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"bookline/backend/internal/service/availability"
	"bookline/backend/internal/service/booking"
	"bookline/backend/internal/store"
)

type Config struct {
	// SignedSecret verifies the public link signatures.
	SignedSecret string
	// RequestTimeout bounds each request, default 30s. Remote calendar
	// round trips dominate, so this is generous.
	RequestTimeout time.Duration
}

type Server struct {
	echo     *echo.Echo
	cfg      Config
	store    store.ScheduleReader
	avail    *availability.Service
	coord    *booking.Coordinator
	validate *validator.Validate
	log      *slog.Logger
}

func NewServer(cfg Config, schedules store.ScheduleReader, avail *availability.Service, coord *booking.Coordinator, log *slog.Logger) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		echo:     echo.New(),
		cfg:      cfg,
		store:    schedules,
		avail:    avail,
		coord:    coord,
		validate: validator.New(),
		log:      log.With(slog.String("component", "http")),
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.CORS())
	s.echo.Use(s.timeoutMiddleware())

	s.echo.GET("/healthz", s.handleHealth)
	s.echo.POST("/schedule/public/availability", s.handleAvailability)
	s.echo.PUT("/schedule/public/availability/request", s.handleRequest)
	s.echo.PUT("/schedule/public/availability/booking", s.handleDecision)

	return s
}

func (s *Server) Start(addr string) error {
	s.log.Info("http server listening", slog.String("addr", addr))
	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the routing tree for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) timeoutMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, cancel := context.WithTimeout(c.Request().Context(), s.cfg.RequestTimeout)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
