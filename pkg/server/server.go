package server

import (
	"fmt"
	"strings"
	"time"

	"github.com/cinescope/aiguard/pkg/config"
	handlers "github.com/cinescope/aiguard/pkg/handlers/http"
	"github.com/cinescope/aiguard/pkg/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

type (
	ServerDI struct {
		Config              *config.Config
		Logger              *logrus.Logger
		MiddlewareTransport *middleware.Transport
		HandlerTransport    *handlers.Transport
	}
	Server struct {
		cfg                 *config.Config
		logger              *logrus.Logger
		app                 *fiber.App
		metricsApp          *fiber.App
		middlewareTransport *middleware.Transport
		handlerTransport    *handlers.Transport
	}
)

func NewServer(di ServerDI) *Server {
	readTimeout := 60 * time.Second
	if di.Config.Server.ReadTimeout > 0 {
		readTimeout = time.Duration(di.Config.Server.ReadTimeout) * time.Second
	}
	writeTimeout := 60 * time.Second
	if di.Config.Server.WriteTimeout > 0 {
		writeTimeout = time.Duration(di.Config.Server.WriteTimeout) * time.Second
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReduceMemoryUsage:     true,
		Network:               fiber.NetworkTCP,
		BodyLimit:             1 * 1024 * 1024,
		ReadTimeout:           readTimeout,
		WriteTimeout:          writeTimeout,
		IdleTimeout:           120 * time.Second,
	})

	app.Server().NoDefaultServerHeader = true
	app.Server().NoDefaultDate = true
	app.Server().NoDefaultContentType = true

	s := &Server{
		cfg:                 di.Config,
		logger:              di.Logger,
		app:                 app,
		middlewareTransport: di.MiddlewareTransport,
		handlerTransport:    di.HandlerTransport,
	}
	s.buildRoutes()
	return s
}

func (s *Server) Run() error {
	s.startMetricsServer()

	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.logger.WithField("addr", addr).Info("starting aiguard server")
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error {
	if s.metricsApp != nil {
		_ = s.metricsApp.Shutdown()
	}
	return s.app.Shutdown()
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) startMetricsServer() {
	metricsApp := fiber.New(fiber.Config{DisableStartupMessage: true})

	metricsApp.Get("/metrics", func(c *fiber.Ctx) error {
		handler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
		handler(c.Context())
		return nil
	})
	s.metricsApp = metricsApp

	go func() {
		addr := fmt.Sprintf(":%d", s.cfg.Server.MetricsPort)
		if err := metricsApp.Listen(addr); err != nil {
			if !strings.Contains(err.Error(), "address already in use") {
				s.logger.WithError(err).Error("Failed to start metrics server")
			}
		}
	}()
}
