package server

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"personachat/pkg/catalog"
	"personachat/pkg/chat"
	"personachat/pkg/config"
	"personachat/pkg/memory"
	"personachat/pkg/metrics"
	"personachat/pkg/persona"
	"personachat/pkg/session"
)

// Chatter runs one chat turn.
type Chatter interface {
	HandleMessage(ctx context.Context, userText string, sess *session.Session) chat.Result
}

type Deps struct {
	Config   *config.Config
	Sessions *session.Manager
	Chat     Chatter
	Catalog  *catalog.Catalog
	Clock    chat.PersonaClock
	Store    memory.Store
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry
	Logger   logrus.FieldLogger
	// AccessLog receives one line per request; nil disables access logging
	AccessLog io.Writer
}

type Server struct {
	app      *fiber.App
	cfg      *config.Config
	sessions *session.Manager
	chat     Chatter
	catalog  *catalog.Catalog
	clock    chat.PersonaClock
	store    memory.Store
	metrics  *metrics.Metrics
	logger   logrus.FieldLogger
	typing   chat.TypingConfig

	rngMu sync.Mutex
	rng   *rand.Rand
}

func New(deps Deps) *Server {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if deps.Registry == nil {
		deps.Registry = prometheus.NewRegistry()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New(deps.Registry, nil)
	}
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	if deps.Catalog == nil {
		deps.Catalog = catalog.FromConfig(cfg)
	}
	if deps.Clock == nil {
		deps.Clock = persona.NewClock(cfg.Persona.Timezone, cfg.Persona.FallbackOffsetHours)
	}

	s := &Server{
		cfg:      cfg,
		sessions: deps.Sessions,
		chat:     deps.Chat,
		catalog:  deps.Catalog,
		clock:    deps.Clock,
		store:    deps.Store,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		typing:   chat.NewTypingConfig(cfg.Delays.MinSeconds, cfg.Delays.MaxSeconds, cfg.Delays.TypingSpeed),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	s.app = fiber.New(fiber.Config{
		AppName:      cfg.App.Title,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		BodyLimit:    64 * 1024,
		ErrorHandler: s.handleError,
	})

	s.app.Use(recover.New())
	if deps.AccessLog != nil {
		s.app.Use(logger.New(logger.Config{Output: deps.AccessLog}))
	}

	prom := fiberprometheus.NewWithRegistry(deps.Registry, "personachat", "http", "", nil)
	prom.RegisterAt(s.app, "/metrics")
	s.app.Use(prom.Middleware)

	s.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PATCH,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	s.app.Use("/api", s.rateLimiter())
	s.routes()

	return s
}

func (s *Server) routes() {
	s.app.Get("/health", s.handleHealth)

	api := s.app.Group("/api")
	api.Get("/persona", s.handlePersona)
	api.Get("/packs", s.handlePacks)
	api.Get("/preview", s.handlePreview)
	api.Get("/links", s.handleLinks)

	api.Post("/sessions", s.handleCreateSession)
	api.Get("/sessions/:id", s.handleSessionStats)
	api.Post("/sessions/:id/age", s.handleAgeGate)
	api.Post("/sessions/:id/messages", s.handleMessage)
	api.Post("/sessions/:id/checkout/:pack", s.handleCheckout)
	api.Get("/sessions/:id/profile", s.handleGetProfile)
	api.Patch("/sessions/:id/profile", s.handleUpdateProfile)
	api.Get("/sessions/:id/messages", s.handleMessageLog)
	api.Get("/sessions/:id/interactions", s.handleInteractions)
}

func (s *Server) rateLimiter() fiber.Handler {
	window := time.Duration(s.cfg.Limits.RateLimitWindowSeconds) * time.Second
	return limiter.New(limiter.Config{
		Max:        s.cfg.Limits.RateLimitMessages,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "api:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			s.logger.WithField("ip", c.IP()).Warn("API rate limit reached")
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Muitas mensagens! Aguarde um pouco antes de continuar.",
				"retry_after": int(window.Seconds()),
			})
		},
	})
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.logger.WithError(err).WithField("path", c.Path()).Error("Request failed")
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) typingDelay(reply string, p persona.Label) time.Duration {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return chat.TypingDuration(reply, p, s.typing, s.rng)
}
