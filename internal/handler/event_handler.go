package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/ordercast/wadispatch/internal/domain"
	"github.com/ordercast/wadispatch/internal/observability"
)

// OrderEventService receives order lifecycle triggers.
type OrderEventService interface {
	HandleOrderStatusChanged(ctx context.Context, event domain.OrderStatusEvent) error
}

type EventHandler struct {
	service OrderEventService
}

func NewEventHandler(service OrderEventService) (*EventHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("order event service is required")
	}
	return &EventHandler{service: service}, nil
}

func RegisterEventRoutes(router fiber.Router, service OrderEventService) error {
	h, err := NewEventHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/events/order-status", h.OrderStatusChanged)

	return nil
}

type orderStatusEventRequest struct {
	OrderID   int64  `json:"orderId"`
	OldStatus string `json:"oldStatus"`
	NewStatus string `json:"newStatus"`
}

// OrderStatusChanged accepts a status-change trigger. A 202 means the event
// was taken in, not that a message will be sent; non-dispatching statuses
// are accepted and dropped downstream.
func (h *EventHandler) OrderStatusChanged(c *fiber.Ctx) error {
	var req orderStatusEventRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.OrderID <= 0 {
		return toHTTPError(fmt.Errorf("%w: orderId must be positive", domain.ErrValidation))
	}
	newStatus := strings.TrimSpace(req.NewStatus)
	if newStatus == "" {
		return toHTTPError(fmt.Errorf("%w: newStatus is required", domain.ErrValidation))
	}

	event := domain.OrderStatusEvent{
		OrderID:   req.OrderID,
		OldStatus: strings.TrimSpace(req.OldStatus),
		NewStatus: newStatus,
	}

	correlationID := requestCorrelationID(c)
	ctx := observability.WithCorrelationID(c.Context(), correlationID)
	if err := h.service.HandleOrderStatusChanged(ctx, event); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status":        "accepted",
		"correlationId": correlationID,
	})
}

func requestCorrelationID(c *fiber.Ctx) string {
	if value := strings.TrimSpace(c.Get(fiber.HeaderXRequestID)); value != "" {
		return value
	}
	return uuid.NewString()
}
