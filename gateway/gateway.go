// Package gateway is the web chat backend: it classifies chat requests,
// assembles conversational context, relays the upstream inference stream to
// the browser, and owns the conversation and upload surfaces around it.
package gateway

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/immanlabs/gateway/pkg/auth"
	"github.com/immanlabs/gateway/pkg/store"
	"github.com/immanlabs/gateway/pkg/uploads"
)

// Gateway is the HTTP server relaying chat and image requests to the hosted
// inference API. It holds no per-request state; conversations live in the
// store and uploads on disk.
type Gateway struct {
	config     Config
	store      store.Store
	uploads    *uploads.Dir
	verifier   auth.Verifier
	logger     *zap.Logger
	httpClient *http.Client
	server     *fiber.App
}

// New creates a Gateway from configuration.
func New(config Config, logger *zap.Logger) (*Gateway, error) {
	var chats store.Store
	if config.DBPath != "" {
		var err error
		chats, err = store.NewSQLiteStore(config.DBPath)
		if err != nil {
			return nil, fmt.Errorf("create SQLite store: %w", err)
		}
		logger.Info("using SQLite conversation storage", zap.String("path", config.DBPath))
	} else {
		chats = store.NewMemoryStore()
		logger.Info("using in-memory conversation storage")
	}

	dir, err := uploads.NewDir(config.UploadDir, logger)
	if err != nil {
		chats.Close()
		return nil, fmt.Errorf("open upload dir: %w", err)
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		StreamRequestBody:     true,
	})

	g := &Gateway{
		config:   config,
		store:    chats,
		uploads:  dir,
		verifier: auth.NewStaticVerifier(config.APITokens),
		logger:   logger,
		server:   app,
		httpClient: &http.Client{
			// Inference calls can be slow; image models in particular.
			Timeout: 5 * time.Minute,
		},
	}
	g.registerRoutes()

	return g, nil
}

func (g *Gateway) registerRoutes() {
	app := g.server

	app.Post("/chat", g.handleChat)
	app.Post("/image", g.handleGenerateImage)
	app.Post("/edit-image", g.handleEditImage)
	app.Post("/upload", g.handleUpload)

	app.Static("/uploads", g.uploads.Path())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(map[string]string{"status": "ok"})
	})

	chats := app.Group("/api/chats", g.requireUser)
	chats.Get("/", g.handleListChats)
	chats.Get("/:id", g.handleGetChat)
	chats.Post("/", g.handleSaveMessage)
	chats.Put("/:id", g.handleRenameChat)
	chats.Delete("/:id", g.handleDeleteChat)
}

// Run starts the server on the configured listening address and blocks.
func (g *Gateway) Run() error {
	g.logger.Info("starting gateway",
		zap.String("listen", g.config.ListenAddr),
		zap.String("router", g.config.RouterURL),
		zap.String("text_model", g.config.TextModel),
	)

	return g.server.Listen(g.config.ListenAddr)
}

// Shutdown stops accepting new connections and waits for in-flight requests.
func (g *Gateway) Shutdown() error {
	return g.server.Shutdown()
}

// Close releases the store and upload watcher.
func (g *Gateway) Close() error {
	if err := g.uploads.Close(); err != nil {
		g.store.Close()
		return err
	}
	return g.store.Close()
}
