package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/FedericoLuque/lightning-server-Nostr-zaps/internal/store"
)

type HealthResponse struct {
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	PendingZaps int    `json:"pending_zaps"`
}

// HealthHandler reports service liveness and store depth
type HealthHandler struct {
	store *store.Store
}

func NewHealthHandler(st *store.Store) *HealthHandler {
	return &HealthHandler{store: st}
}

// HealthCheck handles the health check endpoint
func (h *HealthHandler) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:      "healthy",
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		PendingZaps: h.store.Len(),
	})
}
