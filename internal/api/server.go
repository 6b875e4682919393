// Package api exposes the reminder engine over HTTP.
package api

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gmsas95/medremind/internal/adherence"
	"github.com/gmsas95/medremind/internal/config"
	"github.com/gmsas95/medremind/internal/notify"
	"github.com/gmsas95/medremind/internal/scheduler"
	"github.com/gmsas95/medremind/internal/store"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

// Server handles the HTTP API
type Server struct {
	app      *fiber.App
	config   *config.Config
	store    *store.Store
	tracker  *adherence.Tracker
	engine   *scheduler.Engine
	calendar *notify.CalendarClient
	logger   *zap.Logger
}

// New creates a new API server. calendar may be nil when the calendar
// channel has no credentials.
func New(cfg *config.Config, s *store.Store, tracker *adherence.Tracker, engine *scheduler.Engine, calendar *notify.CalendarClient, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	})

	srv := &Server{
		app:      app,
		config:   cfg,
		store:    s,
		tracker:  tracker,
		engine:   engine,
		calendar: calendar,
		logger:   logger,
	}

	srv.setupRoutes()
	return srv
}

func (s *Server) setupRoutes() {
	s.app.Use(recover.New())
	s.app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(s.config.Server.AllowOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	s.app.Get("/api/health", s.handleHealth)

	api := s.app.Group("/api")

	api.Post("/patients", s.handleCreatePatient)
	api.Get("/patients", s.handleListPatients)
	api.Get("/patients/:id", s.handleGetPatient)
	api.Put("/patients/:id", s.handleUpdatePatient)
	api.Get("/patients/:id/medications", s.handleListMedications)
	api.Get("/patients/:id/adherence", s.handlePatientAdherence)

	api.Post("/medications", s.handleCreateMedication)
	api.Get("/medications/:id", s.handleGetMedication)
	api.Put("/medications/:id", s.handleUpdateMedication)
	api.Delete("/medications/:id", s.handleDeleteMedication)
	api.Post("/medications/:id/adherence", s.handleRecordAdherence)
	api.Get("/medications/:id/adherence", s.handleMedicationAdherence)
	api.Post("/medications/:id/calendar-sync", s.handleCalendarSync)

	api.Get("/reminders/due", s.handleDuePreview)
	api.Post("/scheduler/tick", s.handleManualTick)

	s.app.Get("/auth/calendar", s.handleCalendarAuth)
	s.app.Get("/auth/calendar/callback", s.handleCalendarCallback)
}

// Start begins serving on the configured address
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Address, s.config.Server.Port)
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.app.ShutdownWithContext(ctx)
}
