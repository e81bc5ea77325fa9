package domain

import (
	"fmt"
	"strings"
)

// Status represents the lifecycle state of a dispatch attempt.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusSent      Status = "sent"
	StatusFailed    Status = "failed"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
)

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	switch s {
	case StatusQueued, StatusSent, StatusFailed, StatusDelivered, StatusRead:
		return true
	}
	return false
}

// IsTerminalForSend reports whether the send-result path may no longer touch
// the record. Webhook reconciliation can still advance delivered/read.
func (s Status) IsTerminalForSend() bool {
	return s != StatusQueued
}

func ParseStatusFromString(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid status %q", ErrValidation, s)
	}
	return st, nil
}

// WebhookStatus is the provider-side status vocabulary reported by delivery
// callbacks. It is deliberately a separate type from Status: the provider
// owns this vocabulary and may grow it without notice.
type WebhookStatus string

const (
	WebhookStatusSent      WebhookStatus = "sent"
	WebhookStatusDelivered WebhookStatus = "delivered"
	WebhookStatusRead      WebhookStatus = "read"
	WebhookStatusFailed    WebhookStatus = "failed"
)

func (s WebhookStatus) String() string { return string(s) }

func (s WebhookStatus) IsValid() bool {
	switch s {
	case WebhookStatusSent, WebhookStatusDelivered, WebhookStatusRead, WebhookStatusFailed:
		return true
	}
	return false
}

// ToStatus maps a provider webhook status token to the internal status.
// Unrecognized tokens map to sent, the conservative default: the provider
// accepted the message, we just do not understand the progression report.
func (s WebhookStatus) ToStatus() Status {
	switch s {
	case WebhookStatusSent:
		return StatusSent
	case WebhookStatusDelivered:
		return StatusDelivered
	case WebhookStatusRead:
		return StatusRead
	case WebhookStatusFailed:
		return StatusFailed
	default:
		return StatusSent
	}
}

// StatusFromWebhookToken maps a raw provider token to the internal status.
func StatusFromWebhookToken(token string) Status {
	return WebhookStatus(strings.ToLower(strings.TrimSpace(token))).ToStatus()
}
