// Package web serves the HTTP control surface: status, scene and preference
// endpoints, frame upload, WebRTC signalling, metrics and the event websocket.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/pion/webrtc/v3"

	"github.com/teslashibe/go-sightline/internal/log"
	"github.com/teslashibe/go-sightline/pkg/announce"
	"github.com/teslashibe/go-sightline/pkg/frame"
	"github.com/teslashibe/go-sightline/pkg/guide"
	"github.com/teslashibe/go-sightline/pkg/hub"
	"github.com/teslashibe/go-sightline/pkg/peer"
	"github.com/teslashibe/go-sightline/pkg/pipeline"
	"github.com/teslashibe/go-sightline/pkg/prefs"
)

// DefaultBodyLimit caps uploaded frames and offers.
const DefaultBodyLimit = 4 << 20

// Controller is the guide surface the API drives.
type Controller interface {
	Mode() guide.Mode
	SetMode(guide.Mode) error
	Scene() guide.Scene
}

// Lanes reports pipeline health.
type Lanes interface {
	Status() []pipeline.LaneStatus
	Published() uint64
}

// Speech reports scheduler state.
type Speech interface {
	Stats() announce.Stats
}

// Signaller answers WebRTC offers.
type Signaller interface {
	Offer(ctx context.Context, offer webrtc.SessionDescription) (*peer.Session, webrtc.SessionDescription, error)
	Count() int
}

// Deps are the components behind the routes. Frames and Peers are optional
// and their routes answer 503 without them; /metrics and /ws/events are only
// mounted when Metrics and Events are set.
type Deps struct {
	Guide   Controller
	Lanes   Lanes
	Speech  Speech
	Prefs   *prefs.Store
	Frames  frame.Publisher
	Peers   Signaller
	Events  *hub.Hub
	Metrics http.Handler
}

// Config configures the server.
type Config struct {
	Addr      string `yaml:"addr" json:"addr"`
	StaticDir string `yaml:"static_dir" json:"static_dir"`
	BodyLimit int    `yaml:"body_limit" json:"body_limit"`
}

// DefaultConfig listens on :8080 without static files.
func DefaultConfig() Config {
	return Config{Addr: ":8080", BodyLimit: DefaultBodyLimit}
}

// Server is the fiber app plus its dependencies.
type Server struct {
	app    *fiber.App
	cfg    Config
	deps   Deps
	logger *slog.Logger
	now    func() time.Time
}

// NewServer builds the app and mounts every route.
func NewServer(cfg Config, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = log.Component("web")
	}
	if cfg.BodyLimit <= 0 {
		cfg.BodyLimit = DefaultBodyLimit
	}
	s := &Server{cfg: cfg, deps: deps, logger: logger, now: time.Now}

	app := fiber.New(fiber.Config{
		AppName:               "Sightline",
		DisableStartupMessage: true,
		BodyLimit:             cfg.BodyLimit,
		ErrorHandler:          s.handleError,
	})

	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(s.logRequests)

	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/scene", s.handleScene)
	api.Post("/frames", s.handleFrame)
	api.Get("/mode", s.handleGetMode)
	api.Put("/mode", s.handleSetMode)
	api.Get("/preferences", s.handleGetPreferences)
	api.Put("/preferences", s.handleSetPreferences)
	api.Post("/webrtc/offer", s.handleOffer)

	if deps.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(deps.Metrics))
	}

	if deps.Events != nil {
		// WebSocket upgrade middleware
		app.Use("/ws", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		app.Get("/ws/events", websocket.New(s.handleEventsWS))
	}

	s.app = app
	return s
}

// App exposes the fiber app, mainly for app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start listens on the configured address and blocks.
func (s *Server) Start() error {
	s.logger.Info("control surface listening", "addr", s.cfg.Addr)
	return s.app.Listen(s.cfg.Addr)
}

// Shutdown stops accepting connections and waits for handlers to return.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) logRequests(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.logger.Debug("request",
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"duration", time.Since(start))
	return err
}

// handleError renders every error as {"error": "..."}.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= 500 {
		s.logger.Warn("request failed", "path", c.Path(), "status", code, "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
