// Package server implements the /api/v1 REST service: findings lifecycle,
// asset inventory, audit log, export, AI triage, and a websocket event
// feed. Authentication is a tenant-scoped JWT; feature access is decided
// by the license gate.
package server

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	surface "github.com/surfacehq/surface"
	"github.com/surfacehq/surface/cache"
	"github.com/surfacehq/surface/config"
	"github.com/surfacehq/surface/health"
	"github.com/surfacehq/surface/license"
	"github.com/surfacehq/surface/registry"
	"github.com/surfacehq/surface/store"
	"github.com/surfacehq/surface/triage"
)

// Options carries the server's dependencies. Stores and JWTSecret are
// required; the rest degrade gracefully when absent.
type Options struct {
	Config    *config.Config
	Stores    *store.Stores
	Cache     *cache.Cache
	Gate      *license.Gate
	Advisor   triage.Advisor
	Registry  registry.Registry
	JWTSecret string
	Logger    *slog.Logger
}

// Server is the REST API service.
type Server struct {
	app    *fiber.App
	stores *store.Stores
	cache  *cache.Cache
	gate   atomic.Pointer[license.Gate]
	adv    triage.Advisor
	reg    registry.Registry
	logger *slog.Logger
	cfg    *config.Config

	hub *hub
}

// New builds the fiber app and mounts all routes.
func New(opts Options) (*Server, error) {
	if opts.Stores == nil {
		return nil, surface.NewConfigurationError("server.New",
			errors.New("stores cannot be nil"))
	}
	if opts.JWTSecret == "" {
		return nil, surface.NewConfigurationError("server.New",
			errors.New("JWT secret cannot be empty"))
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if opts.Gate == nil {
		gate, err := license.NewGate(license.DefaultRules())
		if err != nil {
			return nil, err
		}
		opts.Gate = gate
	}

	s := &Server{
		stores: opts.Stores,
		cache:  opts.Cache,
		adv:    opts.Advisor,
		reg:    opts.Registry,
		logger: opts.Logger.With("component", "server"),
		cfg:    opts.Config,
		hub:    newHub(opts.Logger),
	}
	s.gate.Store(opts.Gate)

	app := fiber.New(fiber.Config{
		AppName:      "surfaced",
		ReadTimeout:  opts.Config.Server.GetReadTimeout(),
		WriteTimeout: opts.Config.Server.GetWriteTimeout(),
		ErrorHandler: s.errorHandler,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())

	app.Get("/healthz", s.handleHealthz)

	api := app.Group("/api/v1", authMiddleware(opts.JWTSecret))

	api.Get("/ws", s.upgradeWebsocket, websocket.New(s.hub.serve))

	tenant := api.Group("/tenants/:tenant", requireTenant)

	findings := tenant.Group("/findings", s.requireModule(license.ModuleFindings))
	findings.Get("/", s.handleListFindings)
	findings.Post("/", s.handleCreateFinding)
	findings.Get("/export", s.requireModule(license.ModuleExport), s.handleExportFindings)
	findings.Get("/:id", s.handleGetFinding)
	findings.Patch("/:id/status", s.handleUpdateStatus)
	findings.Patch("/:id/severity", s.handleUpdateSeverity)
	findings.Get("/:id/triage", s.requireModule(license.ModuleTriage), s.handleTriage)

	assets := tenant.Group("/assets", s.requireModule(license.ModuleAssets))
	assets.Get("/", s.handleListAssets)
	assets.Post("/", s.handleCreateAsset)

	groups := tenant.Group("/groups", s.requireModule(license.ModuleAssets))
	groups.Get("/", s.handleListGroups)
	groups.Post("/", s.handleCreateGroup)

	tenant.Get("/audit", s.requireModule(license.ModuleAudit), s.handleListAudit)
	tenant.Get("/scanners", s.handleListScanners)

	// Assignment operates on the caller's own tenant, resolved from the
	// token rather than the path.
	api.Post("/findings/:id/assign", s.requireModule(license.ModuleFindings), s.handleAssign)
	api.Post("/findings/:id/unassign", s.requireModule(license.ModuleFindings), s.handleUnassign)

	s.app = app
	return s, nil
}

// SetGate swaps in new gate rules; used by the config hot-reload path.
func (s *Server) SetGate(gate *license.Gate) {
	s.gate.Store(gate)
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on the configured address until Shutdown.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Server.Listen)
}

// Shutdown drains in-flight requests and closes the websocket feed.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.closeAll()
	return s.app.ShutdownWithContext(ctx)
}

// handleHealthz reports dependency health. Unhealthy maps to 503 so load
// balancers stop routing; degraded still serves.
func (s *Server) handleHealthz(c *fiber.Ctx) error {
	checks := map[string]health.Check{
		"database": health.Database(s.stores.DB()),
	}
	if s.cache != nil {
		checks["cache"] = health.Redis(s.cache.Client())
	}

	results, overall := health.Run(c.Context(), checks)
	status := fiber.StatusOK
	if overall.IsUnhealthy() {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(fiber.Map{
		"status": overall.State,
		"checks": results,
	})
}

// handleListScanners surfaces registered ingest scanners for the source
// health view. Without a registry the list is empty, not an error.
func (s *Server) handleListScanners(c *fiber.Ctx) error {
	if s.reg == nil {
		return c.JSON(fiber.Map{"scanners": []registry.ScannerInfo{}})
	}
	scanners, err := s.reg.DiscoverAll(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"scanners": scanners})
}
