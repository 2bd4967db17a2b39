package routes

import (
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/FedericoLuque/lightning-server-Nostr-zaps/internal/handlers"
)

// SetupRoutes configures all application routes with dependencies
func SetupRoutes(app *fiber.App, lnurlHandler *handlers.LNURLHandler, healthHandler *handlers.HealthHandler) {
	app.Get("/health", healthHandler.HealthCheck)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// LNURL-pay surface (LUD-06/LUD-16 + NIP-57)
	app.Get("/.well-known/lnurlp/:name", lnurlHandler.PayParams)
	app.Get("/lnurl-pay/callback", lnurlHandler.Callback)
}
