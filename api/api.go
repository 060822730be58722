package api

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/opsdeck/api/worker"
	"github.com/papercomputeco/opsdeck/pkg/markdown"
	"github.com/papercomputeco/opsdeck/pkg/storage"
	"github.com/papercomputeco/opsdeck/pkg/stream"
)

// ClientIDHeader identifies a browser tab on /stream. Each client has at
// most one live stream.
const ClientIDHeader = "X-Client-ID"

// Server is the opsdeck API server.
type Server struct {
	config    Config
	transport stream.Transport
	storer    storage.Driver
	pool      *worker.Pool
	clients   *clientRegistry
	logger    *slog.Logger
	app       *fiber.App
}

// NewServer creates a new API server. The storer serves /history; pool, when
// non-nil, receives every finished stream for persistence.
func NewServer(config Config, transport stream.Transport, storer storage.Driver, pool *worker.Pool, logger *slog.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:    config,
		transport: transport,
		storer:    storer,
		pool:      pool,
		logger:    logger,
		app:       app,
	}
	s.clients = newClientRegistry(s.newController)

	app.Get("/ping", s.handlePing)
	app.Post("/render", s.handleRender)
	app.Post("/stream", s.handleStream)
	app.Delete("/stream", s.handleCancelStream)
	app.Get("/history", s.handleListHistory)
	app.Get("/history/:id", s.handleGetHistory)

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
		"strict", s.config.Strict,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown cancels every live stream and gracefully shuts down the server.
func (s *Server) Shutdown() error {
	s.clients.cancelAll()
	return s.app.Shutdown()
}

func (s *Server) newController(clientID string) *stream.Controller {
	return stream.NewController(s.transport,
		stream.WithFrames(stream.TimerFrames{Interval: s.config.FrameInterval}),
		stream.WithLogger(s.logger.With("client_id", clientID)),
	)
}

// sanitize applies the strict policy to rendered HTML when configured.
func (s *Server) sanitize(html string) string {
	if !s.config.Strict {
		return html
	}
	return markdown.Policy().Sanitize(html)
}
