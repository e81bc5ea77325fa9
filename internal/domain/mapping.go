package domain

import (
	"fmt"
	"strings"
	"time"
)

// Event keys for the order lifecycle events that can trigger a dispatch.
const (
	EventOrderProcessing = "order_status_processing"
	EventOrderCompleted  = "order_status_completed"
	EventOrderOnHold     = "order_status_on_hold"
	EventOrderCancelled  = "order_status_cancelled"
)

const DefaultLanguage = "en_US"

// orderStatusEvents is the fixed order-status to event-key table. Statuses
// outside this table never trigger a dispatch.
var orderStatusEvents = map[string]string{
	"processing": EventOrderProcessing,
	"completed":  EventOrderCompleted,
	"on-hold":    EventOrderOnHold,
	"cancelled":  EventOrderCancelled,
}

// EventKeyForOrderStatus returns the event key for an order status, or an
// empty string when the status does not participate in dispatching.
func EventKeyForOrderStatus(status string) string {
	return orderStatusEvents[strings.ToLower(strings.TrimSpace(status))]
}

// KnownEventKeys returns every event key a mapping may bind to.
func KnownEventKeys() []string {
	return []string{
		EventOrderProcessing,
		EventOrderCompleted,
		EventOrderOnHold,
		EventOrderCancelled,
	}
}

func IsKnownEventKey(eventKey string) bool {
	for _, key := range KnownEventKeys() {
		if key == eventKey {
			return true
		}
	}
	return false
}

// DispatchMapping binds an order lifecycle event to a message template and
// the ordered resolver keys that fill its positional slots.
type DispatchMapping struct {
	ID           int64
	EventKey     string
	TemplateName string
	Language     string
	ResolverKeys []string
	Enabled      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (m *DispatchMapping) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: mapping is required", ErrValidation)
	}
	if strings.TrimSpace(m.EventKey) == "" {
		return fmt.Errorf("%w: event key is required", ErrValidation)
	}
	if !IsKnownEventKey(m.EventKey) {
		return fmt.Errorf("%w: unknown event key %q", ErrValidation, m.EventKey)
	}
	if strings.TrimSpace(m.TemplateName) == "" {
		return fmt.Errorf("%w: template name is required", ErrValidation)
	}
	if strings.TrimSpace(m.Language) == "" {
		return fmt.Errorf("%w: language is required", ErrValidation)
	}
	return nil
}

// OrderStatusEvent is the inbound trigger emitted when an order changes
// status in the shop system.
type OrderStatusEvent struct {
	OrderID   int64
	OldStatus string
	NewStatus string
}
