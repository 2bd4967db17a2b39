package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/FedericoLuque/lightning-server-Nostr-zaps/internal/config"
	"github.com/FedericoLuque/lightning-server-Nostr-zaps/internal/handlers"
	"github.com/FedericoLuque/lightning-server-Nostr-zaps/internal/lnbits"
	"github.com/FedericoLuque/lightning-server-Nostr-zaps/internal/logger"
	"github.com/FedericoLuque/lightning-server-Nostr-zaps/internal/metrics"
	"github.com/FedericoLuque/lightning-server-Nostr-zaps/internal/poller"
	"github.com/FedericoLuque/lightning-server-Nostr-zaps/internal/publisher"
	"github.com/FedericoLuque/lightning-server-Nostr-zaps/internal/receipt"
	"github.com/FedericoLuque/lightning-server-Nostr-zaps/internal/routes"
	"github.com/FedericoLuque/lightning-server-Nostr-zaps/internal/store"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	if err := logger.Init(os.Getenv("LOG_LEVEL")); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// LNBits payment backend client
	backend, err := lnbits.New(&cfg.LNBits, logger.Logger)
	if err != nil {
		logger.Fatal("Failed to create LNBits client", zap.Error(err))
	}

	// Receipt signing with the server identity key
	builder, err := receipt.NewBuilder(cfg.Nostr.PrivateKey, logger.Logger)
	if err != nil {
		logger.Fatal("Failed to create receipt builder", zap.Error(err))
	}

	pendingStore := store.New()
	metrics.RegisterPendingGauge(pendingStore.Len)

	relayPublisher := publisher.New(cfg.Nostr.Relays, logger.Logger)

	// Start settlement polling and expiry sweeping
	settlementPoller := poller.New(pendingStore, backend, builder, relayPublisher, logger.Logger)
	if err := settlementPoller.Start(); err != nil {
		logger.Fatal("Failed to start settlement poller", zap.Error(err))
	}
	defer settlementPoller.Stop()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Lightning Address Service",
		ServerHeader: "Fiber",
	})

	// Middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// Setup routes
	lnurlHandler := handlers.NewLNURLHandler(cfg, pendingStore, backend, logger.Logger)
	healthHandler := handlers.NewHealthHandler(pendingStore)
	routes.SetupRoutes(app, lnurlHandler, healthHandler)

	// Start server in a goroutine
	go func() {
		addr := cfg.Server.Host + ":" + cfg.Server.Port
		logger.Info("Server starting",
			zap.String("address", addr),
			zap.String("lightning_address", cfg.LNURL.Address()),
			zap.String("server_pubkey", cfg.Nostr.PublicKey),
		)
		if err := app.Listen(addr); err != nil {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")
	if err := app.Shutdown(); err != nil {
		logger.Error("Error during server shutdown", zap.Error(err))
	}

	settlementPoller.Stop()
	logger.Info("Server stopped")
}
