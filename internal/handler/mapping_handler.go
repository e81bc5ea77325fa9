package handler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ordercast/wadispatch/internal/domain"
	"github.com/ordercast/wadispatch/internal/repository"
	"github.com/ordercast/wadispatch/internal/resolver"
)

type MappingHandler struct {
	mappings repository.DispatchMappingRepository
}

func NewMappingHandler(mappings repository.DispatchMappingRepository) (*MappingHandler, error) {
	if mappings == nil {
		return nil, fmt.Errorf("mapping repository is required")
	}
	return &MappingHandler{mappings: mappings}, nil
}

func RegisterMappingRoutes(router fiber.Router, mappings repository.DispatchMappingRepository) error {
	h, err := NewMappingHandler(mappings)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/mappings", h.ListMappings)
	v1.Post("/mappings", h.CreateMapping)
	v1.Get("/mappings/:id", h.GetMapping)
	v1.Put("/mappings/:id", h.UpdateMapping)
	v1.Delete("/mappings/:id", h.DeleteMapping)
	v1.Get("/resolver-keys", h.ListResolverKeys)

	return nil
}

type mappingRequest struct {
	EventKey     string   `json:"eventKey"`
	TemplateName string   `json:"templateName"`
	Language     string   `json:"language"`
	ResolverKeys []string `json:"resolverKeys"`
	Enabled      *bool    `json:"enabled"`
}

type mappingResponse struct {
	ID           int64     `json:"id"`
	EventKey     string    `json:"eventKey"`
	TemplateName string    `json:"templateName"`
	Language     string    `json:"language"`
	ResolverKeys []string  `json:"resolverKeys"`
	Enabled      bool      `json:"enabled"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (h *MappingHandler) ListMappings(c *fiber.Ctx) error {
	mappings, err := h.mappings.List(c.Context())
	if err != nil {
		return toHTTPError(err)
	}

	responses := make([]mappingResponse, 0, len(mappings))
	for i := range mappings {
		responses = append(responses, toMappingResponse(&mappings[i]))
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": responses,
	})
}

func (h *MappingHandler) CreateMapping(c *fiber.Ctx) error {
	var req mappingRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	mapping, err := requestToDomainMapping(req)
	if err != nil {
		return toHTTPError(err)
	}

	if err := h.mappings.Upsert(c.Context(), &mapping); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toMappingResponse(&mapping))
}

func (h *MappingHandler) GetMapping(c *fiber.Ctx) error {
	id, err := parseIDParam(c)
	if err != nil {
		return toHTTPError(err)
	}

	mapping, err := h.mappings.GetByID(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toMappingResponse(mapping))
}

func (h *MappingHandler) UpdateMapping(c *fiber.Ctx) error {
	id, err := parseIDParam(c)
	if err != nil {
		return toHTTPError(err)
	}

	var req mappingRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	mapping, err := requestToDomainMapping(req)
	if err != nil {
		return toHTTPError(err)
	}
	mapping.ID = id

	if err := h.mappings.Upsert(c.Context(), &mapping); err != nil {
		return toHTTPError(err)
	}

	updated, err := h.mappings.GetByID(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toMappingResponse(updated))
}

func (h *MappingHandler) DeleteMapping(c *fiber.Ctx) error {
	id, err := parseIDParam(c)
	if err != nil {
		return toHTTPError(err)
	}

	if err := h.mappings.Delete(c.Context(), id); err != nil {
		return toHTTPError(err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *MappingHandler) ListResolverKeys(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": resolver.KnownKeys(),
	})
}

func parseIDParam(c *fiber.Ctx) (int64, error) {
	raw := strings.TrimSpace(c.Params("id"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: id must be a positive integer", domain.ErrValidation)
	}
	return id, nil
}

func requestToDomainMapping(req mappingRequest) (domain.DispatchMapping, error) {
	keys := make([]string, 0, len(req.ResolverKeys))
	for _, key := range req.ResolverKeys {
		trimmed := strings.TrimSpace(key)
		if trimmed == "" {
			continue
		}
		if !resolver.IsKnown(trimmed) {
			return domain.DispatchMapping{}, fmt.Errorf("%w: unknown resolver key %q", domain.ErrValidation, trimmed)
		}
		keys = append(keys, trimmed)
	}

	language := strings.TrimSpace(req.Language)
	if language == "" {
		language = domain.DefaultLanguage
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	mapping := domain.DispatchMapping{
		EventKey:     strings.TrimSpace(req.EventKey),
		TemplateName: strings.TrimSpace(req.TemplateName),
		Language:     language,
		ResolverKeys: keys,
		Enabled:      enabled,
	}
	if err := mapping.Validate(); err != nil {
		return domain.DispatchMapping{}, err
	}

	return mapping, nil
}

func toMappingResponse(m *domain.DispatchMapping) mappingResponse {
	keys := m.ResolverKeys
	if keys == nil {
		keys = []string{}
	}
	return mappingResponse{
		ID:           m.ID,
		EventKey:     m.EventKey,
		TemplateName: m.TemplateName,
		Language:     m.Language,
		ResolverKeys: keys,
		Enabled:      m.Enabled,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}
