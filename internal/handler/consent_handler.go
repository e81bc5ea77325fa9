package handler

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ordercast/wadispatch/internal/domain"
	"github.com/ordercast/wadispatch/internal/phone"
	"github.com/ordercast/wadispatch/internal/repository"
)

type ConsentHandler struct {
	consents repository.ConsentRepository
}

func NewConsentHandler(consents repository.ConsentRepository) (*ConsentHandler, error) {
	if consents == nil {
		return nil, fmt.Errorf("consent repository is required")
	}
	return &ConsentHandler{consents: consents}, nil
}

func RegisterConsentRoutes(router fiber.Router, consents repository.ConsentRepository) error {
	h, err := NewConsentHandler(consents)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/consents", h.RecordConsent)
	v1.Get("/consents/statistics", h.Statistics)
	v1.Get("/consents/:phone", h.GetConsent)

	return nil
}

type recordConsentRequest struct {
	Phone   string `json:"phone"`
	Consent bool   `json:"consent"`
	Source  string `json:"source"`
	UserID  *int64 `json:"userId,omitempty"`
	OrderID *int64 `json:"orderId,omitempty"`
}

type consentResponse struct {
	ID        int64     `json:"id"`
	Phone     string    `json:"phone"`
	Consent   bool      `json:"consent"`
	Source    string    `json:"source"`
	UserID    *int64    `json:"userId,omitempty"`
	OrderID   *int64    `json:"orderId,omitempty"`
	ConsentAt time.Time `json:"consentAt"`
}

func (h *ConsentHandler) RecordConsent(c *fiber.Ctx) error {
	var req recordConsentRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	phoneE164 := phone.Normalize(req.Phone)
	if phoneE164 == "" {
		return toHTTPError(fmt.Errorf("%w: phone is not a usable number", domain.ErrValidation))
	}

	record := domain.ConsentRecord{
		UserID:    req.UserID,
		OrderID:   req.OrderID,
		PhoneE164: phoneE164,
		Consent:   req.Consent,
		Source:    strings.TrimSpace(req.Source),
	}
	if err := h.consents.Record(c.Context(), &record); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toConsentResponse(&record))
}

func (h *ConsentHandler) GetConsent(c *fiber.Ctx) error {
	phoneE164 := phone.Normalize(c.Params("phone"))
	if phoneE164 == "" {
		return toHTTPError(fmt.Errorf("%w: phone is not a usable number", domain.ErrValidation))
	}

	record, err := h.consents.FindLatestByPhone(c.Context(), phoneE164)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toConsentResponse(record))
}

func (h *ConsentHandler) Statistics(c *fiber.Ctx) error {
	stats, err := h.consents.Statistics(c.Context())
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"totalRecords": stats.TotalRecords,
		"optedIn":      stats.OptedIn,
	})
}

func toConsentResponse(r *domain.ConsentRecord) consentResponse {
	return consentResponse{
		ID:        r.ID,
		Phone:     r.PhoneE164,
		Consent:   r.Consent,
		Source:    r.Source,
		UserID:    r.UserID,
		OrderID:   r.OrderID,
		ConsentAt: r.ConsentAt,
	}
}
