package domain

import (
	"encoding/json"
	"time"
)

// DispatchLog is one durable record per send attempt. A row is created in
// status queued before the outbound call, updated exactly once with the send
// result, and may be advanced later by webhook reconciliation.
type DispatchLog struct {
	ID           int64
	OrderID      *int64
	PhoneE164    string
	TemplateName string
	// Payload and Response capture the outbound request body and whatever
	// the provider returned, verbatim, for audit.
	Payload  json.RawMessage
	Response json.RawMessage
	Status   Status
	// ProviderMessageID is assigned once the provider accepts the send and
	// is the only key by which webhook callbacks locate this record.
	ProviderMessageID *string
	ErrorCode         *string
	ErrorMessage      *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// DispatchLogUpdate is a partial update applied to an existing log row.
// Nil fields are left untouched; updated_at is always bumped.
type DispatchLogUpdate struct {
	Status            *Status
	Payload           json.RawMessage
	Response          json.RawMessage
	ProviderMessageID *string
	ErrorCode         *string
	ErrorMessage      *string
}

// IsEmpty reports whether the update would change nothing.
func (u DispatchLogUpdate) IsEmpty() bool {
	return u.Status == nil &&
		len(u.Payload) == 0 &&
		len(u.Response) == 0 &&
		u.ProviderMessageID == nil &&
		u.ErrorCode == nil &&
		u.ErrorMessage == nil
}
