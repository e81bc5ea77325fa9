package handler

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ordercast/wadispatch/internal/domain"
	"github.com/ordercast/wadispatch/internal/repository"
)

const (
	defaultPage     = 1
	defaultPageSize = 50
	maxPageSize     = 100

	defaultStatusCountsHours = 24
	maxStatusCountsHours     = 24 * 30
)

type LogHandler struct {
	logs repository.DispatchLogRepository
	now  func() time.Time
}

func NewLogHandler(logs repository.DispatchLogRepository) (*LogHandler, error) {
	if logs == nil {
		return nil, fmt.Errorf("dispatch log repository is required")
	}
	return &LogHandler{logs: logs, now: time.Now}, nil
}

func RegisterLogRoutes(router fiber.Router, logs repository.DispatchLogRepository) error {
	h, err := NewLogHandler(logs)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/logs", h.ListLogs)
	v1.Get("/logs/status-counts", h.StatusCounts)
	v1.Get("/logs/:id", h.GetLog)

	return nil
}

type logResponse struct {
	ID                int64           `json:"id"`
	OrderID           *int64          `json:"orderId,omitempty"`
	Phone             string          `json:"phone"`
	TemplateName      string          `json:"templateName"`
	Status            string          `json:"status"`
	ProviderMessageID *string         `json:"providerMessageId,omitempty"`
	ErrorCode         *string         `json:"errorCode,omitempty"`
	ErrorMessage      *string         `json:"errorMessage,omitempty"`
	Payload           json.RawMessage `json:"payload,omitempty"`
	Response          json.RawMessage `json:"response,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

type listLogsResponse struct {
	Data []logResponse `json:"data"`
	Meta listMeta      `json:"meta"`
}

type listMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

func (h *LogHandler) ListLogs(c *fiber.Ctx) error {
	params, err := parseLogListParams(c)
	if err != nil {
		return toHTTPError(err)
	}

	logs, total, err := h.logs.List(c.Context(), params)
	if err != nil {
		return toHTTPError(err)
	}

	responses := make([]logResponse, 0, len(logs))
	for i := range logs {
		responses = append(responses, toLogResponse(&logs[i]))
	}

	return c.Status(fiber.StatusOK).JSON(listLogsResponse{
		Data: responses,
		Meta: listMeta{
			Page:     params.Page,
			PageSize: params.PageSize,
			Total:    total,
		},
	})
}

func (h *LogHandler) GetLog(c *fiber.Ctx) error {
	id, err := parseIDParam(c)
	if err != nil {
		return toHTTPError(err)
	}

	log, err := h.logs.GetByID(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toLogResponse(log))
}

func (h *LogHandler) StatusCounts(c *fiber.Ctx) error {
	hours := c.QueryInt("hours", defaultStatusCountsHours)
	if hours < 1 || hours > maxStatusCountsHours {
		return toHTTPError(fmt.Errorf("%w: hours must be between 1 and %d", domain.ErrValidation, maxStatusCountsHours))
	}

	since := h.now().UTC().Add(-time.Duration(hours) * time.Hour)
	counts, err := h.logs.StatusCounts(c.Context(), since)
	if err != nil {
		return toHTTPError(err)
	}

	data := make(map[string]int64, len(counts))
	for status, count := range counts {
		data[status.String()] = count
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"since": since,
		"data":  data,
	})
}

func parseLogListParams(c *fiber.Ctx) (repository.LogListParams, error) {
	params := repository.LogListParams{
		Search:   strings.TrimSpace(c.Query("search")),
		Page:     c.QueryInt("page", defaultPage),
		PageSize: c.QueryInt("pageSize", defaultPageSize),
	}

	if params.Page < 1 {
		return repository.LogListParams{}, fmt.Errorf("%w: page must be >= 1", domain.ErrValidation)
	}
	if params.PageSize < 1 || params.PageSize > maxPageSize {
		return repository.LogListParams{}, fmt.Errorf("%w: pageSize must be between 1 and %d", domain.ErrValidation, maxPageSize)
	}

	if rawStatus := strings.TrimSpace(c.Query("status")); rawStatus != "" {
		status, err := domain.ParseStatusFromString(rawStatus)
		if err != nil {
			return repository.LogListParams{}, err
		}
		params.Status = &status
	}

	return params, nil
}

func toLogResponse(l *domain.DispatchLog) logResponse {
	return logResponse{
		ID:                l.ID,
		OrderID:           l.OrderID,
		Phone:             l.PhoneE164,
		TemplateName:      l.TemplateName,
		Status:            l.Status.String(),
		ProviderMessageID: l.ProviderMessageID,
		ErrorCode:         l.ErrorCode,
		ErrorMessage:      l.ErrorMessage,
		Payload:           l.Payload,
		Response:          l.Response,
		CreatedAt:         l.CreatedAt,
		UpdatedAt:         l.UpdatedAt,
	}
}
