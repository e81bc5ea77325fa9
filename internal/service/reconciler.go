package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/ordercast/wadispatch/internal/domain"
	"github.com/ordercast/wadispatch/internal/observability"
	"github.com/ordercast/wadispatch/internal/repository"
)

// WebhookPayload mirrors the provider's delivery-status callback envelope.
// Only the statuses array matters here; message echoes and other change
// fields are ignored.
type WebhookPayload struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

type WebhookEntry struct {
	ID      string          `json:"id"`
	Changes []WebhookChange `json:"changes"`
}

type WebhookChange struct {
	Field string       `json:"field"`
	Value WebhookValue `json:"value"`
}

type WebhookValue struct {
	Statuses []WebhookStatusUpdate `json:"statuses"`
}

type WebhookStatusUpdate struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	RecipientID string `json:"recipient_id"`
}

// Reconciler applies provider delivery callbacks to dispatch logs.
type Reconciler struct {
	logs    repository.DispatchLogRepository
	metrics *observability.Metrics
	logger  *zap.Logger
}

func NewReconciler(logs repository.DispatchLogRepository, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{logs: logs, logger: logger}
}

func (r *Reconciler) SetMetrics(metrics *observability.Metrics) {
	if r == nil {
		return
	}
	r.metrics = metrics
}

// Process walks every status update in the payload and applies it to the
// matching dispatch log. Individual failures never abort the batch, and
// Process itself never fails: the provider retries entire payloads on
// non-200 responses, which would replay updates we already applied.
func (r *Reconciler) Process(ctx context.Context, payload WebhookPayload) {
	log := observability.WithContextLogger(r.logger, ctx)

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, update := range change.Value.Statuses {
				r.applyStatusUpdate(ctx, log, update)
			}
		}
	}
}

func (r *Reconciler) applyStatusUpdate(ctx context.Context, log *zap.Logger, update WebhookStatusUpdate) {
	messageID := strings.TrimSpace(update.ID)
	token := strings.TrimSpace(update.Status)
	if messageID == "" || token == "" {
		log.Debug("skipping status update without id or status")
		return
	}

	status := domain.StatusFromWebhookToken(token)
	err := r.logs.UpdateByProviderMessageID(ctx, messageID, domain.DispatchLogUpdate{
		Status: &status,
	})
	if errors.Is(err, domain.ErrNotFound) {
		// Callbacks can reference sends from other systems sharing the
		// same WhatsApp number.
		log.Debug("no dispatch log for provider message id",
			zap.String("providerMessageId", messageID),
		)
		return
	}
	if err != nil {
		log.Error("failed to apply status update",
			zap.String("providerMessageId", messageID),
			zap.String("status", status.String()),
			zap.Error(err),
		)
		return
	}

	if r.metrics != nil {
		r.metrics.IncWebhookStatusUpdate(status.String())
	}
	log.Info("dispatch status updated from webhook",
		zap.String("providerMessageId", messageID),
		zap.String("status", status.String()),
	)
}
