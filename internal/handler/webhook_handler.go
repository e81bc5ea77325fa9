package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ordercast/wadispatch/internal/service"
)

// StatusReconciler applies provider delivery callbacks.
type StatusReconciler interface {
	Process(ctx context.Context, payload service.WebhookPayload)
}

// WebhookHandler serves the provider's webhook verification handshake and
// delivery-status callbacks.
type WebhookHandler struct {
	reconciler  StatusReconciler
	verifyToken string
}

func NewWebhookHandler(reconciler StatusReconciler, verifyToken string) (*WebhookHandler, error) {
	if reconciler == nil {
		return nil, fmt.Errorf("reconciler is required")
	}
	if strings.TrimSpace(verifyToken) == "" {
		return nil, fmt.Errorf("verify token is required")
	}
	return &WebhookHandler{reconciler: reconciler, verifyToken: verifyToken}, nil
}

func RegisterWebhookRoutes(router fiber.Router, reconciler StatusReconciler, verifyToken string) error {
	h, err := NewWebhookHandler(reconciler, verifyToken)
	if err != nil {
		return err
	}

	router.Get("/webhook/whatsapp", h.Verify)
	router.Post("/webhook/whatsapp", h.Receive)

	return nil
}

// Verify answers the provider's subscription handshake: echo the challenge
// when mode is subscribe and the token matches, refuse otherwise. Both the
// dotted and underscored query spellings are accepted.
func (h *WebhookHandler) Verify(c *fiber.Ctx) error {
	mode := webhookQuery(c, "hub.mode", "hub_mode")
	token := webhookQuery(c, "hub.verify_token", "hub_verify_token")
	challenge := webhookQuery(c, "hub.challenge", "hub_challenge")

	if mode == "subscribe" && token == h.verifyToken {
		return c.Status(fiber.StatusOK).SendString(challenge)
	}

	return c.SendStatus(fiber.StatusForbidden)
}

// Receive ingests a delivery-status callback. The response is always 200:
// a non-200 makes the provider redeliver the whole payload, replaying
// updates that were already applied.
func (h *WebhookHandler) Receive(c *fiber.Ctx) error {
	var payload service.WebhookPayload
	if err := json.Unmarshal(c.Body(), &payload); err != nil {
		return c.Status(fiber.StatusOK).SendString("OK")
	}

	h.reconciler.Process(c.Context(), payload)

	return c.Status(fiber.StatusOK).SendString("OK")
}

func webhookQuery(c *fiber.Ctx, names ...string) string {
	for _, name := range names {
		if value := strings.TrimSpace(c.Query(name)); value != "" {
			return value
		}
	}
	return ""
}
