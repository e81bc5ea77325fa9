package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ordercast/wadispatch/internal/domain"
	"github.com/ordercast/wadispatch/internal/observability"
	"github.com/ordercast/wadispatch/internal/phone"
	"github.com/ordercast/wadispatch/internal/provider"
	"github.com/ordercast/wadispatch/internal/queue"
	"github.com/ordercast/wadispatch/internal/ratelimit"
	"github.com/ordercast/wadispatch/internal/repository"
	"github.com/ordercast/wadispatch/internal/resolver"
)

const (
	defaultMaxRetries        = 2
	defaultRetryDelaySeconds = 10

	// sendRateScope is the rate limiter bucket shared by all workers.
	sendRateScope = "send"

	unknownErrorMessage = "Unknown error"
)

// DispatchService drives the order-event to template-message pipeline:
// trigger handling on the API side and send execution on the worker side.
type DispatchService struct {
	logs      repository.DispatchLogRepository
	mappings  repository.DispatchMappingRepository
	orders    repository.OrderSource
	sender    provider.TemplateSender
	scheduler queue.Scheduler
	resolver  *resolver.Resolver
	consent   ConsentPolicy
	limiter   ratelimit.RateLimiter
	metrics   *observability.Metrics
	logger    *zap.Logger

	// maxRetries counts additional attempts after the first send.
	maxRetries        int
	retryDelaySeconds int
	now               func() time.Time
}

func NewDispatchService(
	logs repository.DispatchLogRepository,
	mappings repository.DispatchMappingRepository,
	orders repository.OrderSource,
	sender provider.TemplateSender,
	scheduler queue.Scheduler,
	res *resolver.Resolver,
	consent ConsentPolicy,
	limiter ratelimit.RateLimiter,
	maxRetries int,
	retryDelaySeconds int,
	logger *zap.Logger,
) (*DispatchService, error) {
	if logs == nil {
		return nil, fmt.Errorf("dispatch log repository is required")
	}
	if mappings == nil {
		return nil, fmt.Errorf("dispatch mapping repository is required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order source is required")
	}
	if res == nil {
		return nil, fmt.Errorf("resolver is required")
	}
	if consent == nil {
		consent = AllowAllPolicy{}
	}
	if maxRetries < 0 {
		maxRetries = defaultMaxRetries
	}
	if retryDelaySeconds <= 0 {
		retryDelaySeconds = defaultRetryDelaySeconds
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DispatchService{
		logs:              logs,
		mappings:          mappings,
		orders:            orders,
		sender:            sender,
		scheduler:         scheduler,
		resolver:          res,
		consent:           consent,
		limiter:           limiter,
		logger:            logger,
		maxRetries:        maxRetries,
		retryDelaySeconds: retryDelaySeconds,
		now:               time.Now,
	}, nil
}

func (s *DispatchService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// HandleOrderStatusChanged enqueues a send job for an order status change.
// The trigger path never surfaces failures to the caller: a broken pipeline
// must not break order processing, so everything is logged and swallowed.
func (s *DispatchService) HandleOrderStatusChanged(ctx context.Context, event domain.OrderStatusEvent) error {
	log := observability.WithContextLogger(s.logger, ctx)

	eventKey := domain.EventKeyForOrderStatus(event.NewStatus)
	if eventKey == "" {
		log.Debug("order status does not trigger a dispatch",
			zap.Int64("orderId", event.OrderID),
			zap.String("newStatus", event.NewStatus),
		)
		return nil
	}

	if _, err := s.mappings.FindByEvent(ctx, eventKey); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Debug("no enabled mapping for event, skipping",
				zap.Int64("orderId", event.OrderID),
				zap.String("eventKey", eventKey),
			)
			return nil
		}
		log.Error("failed to look up mapping for event",
			zap.Int64("orderId", event.OrderID),
			zap.String("eventKey", eventKey),
			zap.Error(err),
		)
		return nil
	}

	job := queue.SendJob{OrderID: event.OrderID, EventKey: eventKey, Attempt: 0}
	if err := s.scheduler.ScheduleSend(ctx, job); err != nil {
		log.Error("failed to schedule send job",
			zap.Int64("orderId", event.OrderID),
			zap.String("eventKey", eventKey),
			zap.Error(err),
		)
		return nil
	}

	log.Info("send job scheduled",
		zap.Int64("orderId", event.OrderID),
		zap.String("eventKey", eventKey),
	)
	return nil
}

// ExecuteSend performs one send attempt for a job. Domain outcomes (skips,
// provider failures) resolve to nil so the job is acked; only infrastructure
// failures return an error, which redelivers the job.
func (s *DispatchService) ExecuteSend(ctx context.Context, job queue.SendJob) error {
	log := observability.WithContextLogger(s.logger, ctx).With(
		zap.Int64("orderId", job.OrderID),
		zap.String("eventKey", job.EventKey),
		zap.Int("attempt", job.Attempt),
	)

	if err := job.Validate(); err != nil {
		log.Warn("dropping invalid send job", zap.Error(err))
		return nil
	}

	if s.metrics != nil {
		s.metrics.IncWorkerInFlight()
		defer s.metrics.DecWorkerInFlight()
	}

	mapping, err := s.mappings.FindByEvent(ctx, job.EventKey)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Info("mapping disabled or removed since scheduling, skipping")
			return nil
		}
		return fmt.Errorf("failed to load mapping: %w", err)
	}

	order, err := s.orders.GetByID(ctx, job.OrderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Warn("order not found, skipping")
			return nil
		}
		return fmt.Errorf("failed to load order: %w", err)
	}

	phoneE164 := phone.Normalize(order.BillingPhone)
	if phoneE164 == "" {
		log.Debug("order has no usable billing phone, skipping")
		return nil
	}

	allowed, err := s.consent.Allow(ctx, phoneE164)
	if err != nil {
		return fmt.Errorf("failed to check consent: %w", err)
	}
	if !allowed {
		log.Info("recipient has not opted in, skipping",
			zap.String("phone", phoneE164),
		)
		return nil
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx, sendRateScope); err != nil {
			return fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}

	variables := s.resolver.Resolve(*order, mapping.ResolverKeys)

	payload, err := provider.BuildTemplatePayload(phoneE164, mapping.TemplateName, mapping.Language, variables)
	if err != nil {
		return fmt.Errorf("failed to encode template payload: %w", err)
	}

	orderID := job.OrderID
	record := &domain.DispatchLog{
		OrderID:      &orderID,
		PhoneE164:    phoneE164,
		TemplateName: mapping.TemplateName,
		Payload:      payload,
		Status:       domain.StatusQueued,
	}
	if err := s.logs.Create(ctx, record); err != nil {
		return fmt.Errorf("failed to create dispatch log: %w", err)
	}

	sendStart := s.now()
	result := s.sender.SendTemplate(ctx, phoneE164, mapping.TemplateName, mapping.Language, variables)
	if s.metrics != nil {
		s.metrics.ObserveSendDuration(s.now().Sub(sendStart))
	}

	if result.Success {
		update := domain.DispatchLogUpdate{
			Status:   statusPtr(domain.StatusSent),
			Payload:  result.Payload,
			Response: result.Response,
		}
		if messageID := strings.TrimSpace(result.MessageID); messageID != "" {
			update.ProviderMessageID = &messageID
		}
		if err := s.logs.Update(ctx, record.ID, update); err != nil {
			return fmt.Errorf("failed to mark dispatch log sent: %w", err)
		}
		if s.metrics != nil {
			s.metrics.IncDispatchSent(mapping.TemplateName)
		}
		log.Info("template message sent",
			zap.Int64("logId", record.ID),
			zap.String("providerMessageId", result.MessageID),
		)
		return nil
	}

	errorMessage := result.ErrorMessage
	if strings.TrimSpace(errorMessage) == "" {
		errorMessage = unknownErrorMessage
	}
	update := domain.DispatchLogUpdate{
		Status:       statusPtr(domain.StatusFailed),
		Payload:      result.Payload,
		Response:     result.Response,
		ErrorMessage: &errorMessage,
	}
	if result.ErrorCode != "" {
		errorCode := result.ErrorCode
		update.ErrorCode = &errorCode
	}
	if err := s.logs.Update(ctx, record.ID, update); err != nil {
		return fmt.Errorf("failed to mark dispatch log failed: %w", err)
	}
	if s.metrics != nil {
		s.metrics.IncDispatchFailed(mapping.TemplateName, "provider_error")
	}

	if job.Attempt < s.maxRetries {
		retry := queue.SendJob{OrderID: job.OrderID, EventKey: job.EventKey, Attempt: job.Attempt + 1}
		if err := s.scheduler.ScheduleSendIn(ctx, retry, s.retryDelaySeconds); err != nil {
			return fmt.Errorf("failed to schedule retry: %w", err)
		}
		if s.metrics != nil {
			s.metrics.IncRetryScheduled()
		}
		log.Warn("send failed, retry scheduled",
			zap.Int64("logId", record.ID),
			zap.String("errorMessage", errorMessage),
			zap.Int("retryDelaySeconds", s.retryDelaySeconds),
		)
		return nil
	}

	log.Error("send failed, retries exhausted",
		zap.Int64("logId", record.ID),
		zap.String("errorMessage", errorMessage),
	)
	return nil
}

func statusPtr(s domain.Status) *domain.Status {
	return &s
}
