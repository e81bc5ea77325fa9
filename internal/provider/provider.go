package provider

import (
	"context"
	"encoding/json"
)

// TemplateSender is the outbound template-message delivery port.
type TemplateSender interface {
	SendTemplate(ctx context.Context, phoneE164, templateName, language string, variables []string) SendResult
}

// SendResult carries the outcome of one send attempt. Payload and Response
// are always populated with whatever was sent and received, regardless of
// outcome, so the dispatch log can capture them verbatim.
type SendResult struct {
	Success      bool
	MessageID    string
	ErrorCode    string
	ErrorMessage string
	Payload      json.RawMessage
	Response     json.RawMessage
}
