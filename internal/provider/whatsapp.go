package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultAPIBaseURL = "https://graph.facebook.com"
	DefaultAPIVersion = "v18.0"

	defaultSendTimeout  = 20 * time.Second
	genericErrorMessage = "Request failed"
)

// Credentials identifies the WhatsApp Business phone and its access token.
type Credentials struct {
	PhoneNumberID string
	AccessToken   string
}

func (c Credentials) valid() bool {
	return strings.TrimSpace(c.PhoneNumberID) != "" && strings.TrimSpace(c.AccessToken) != ""
}

// WhatsAppClient sends template messages through the WhatsApp Cloud API.
type WhatsAppClient struct {
	client      *resty.Client
	baseURL     string
	version     string
	credentials Credentials
}

var _ TemplateSender = (*WhatsAppClient)(nil)

func NewWhatsAppClient(baseURL, version string, credentials Credentials) (*WhatsAppClient, error) {
	client := resty.New()
	client.SetTimeout(defaultSendTimeout)
	client.SetRetryCount(0)

	return NewWhatsAppClientWithClient(baseURL, version, credentials, client)
}

func NewWhatsAppClientWithClient(baseURL, version string, credentials Credentials, client *resty.Client) (*WhatsAppClient, error) {
	trimmedBase := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmedBase == "" {
		trimmedBase = DefaultAPIBaseURL
	}
	if _, err := url.ParseRequestURI(trimmedBase); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}

	trimmedVersion := strings.TrimSpace(version)
	if trimmedVersion == "" {
		trimmedVersion = DefaultAPIVersion
	}

	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}
	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultSendTimeout)
	}
	client.SetRetryCount(0)

	return &WhatsAppClient{
		client:      client,
		baseURL:     trimmedBase,
		version:     trimmedVersion,
		credentials: credentials,
	}, nil
}

type templateRequest struct {
	MessagingProduct string          `json:"messaging_product"`
	To               string          `json:"to"`
	Type             string          `json:"type"`
	Template         templatePayload `json:"template"`
}

type templatePayload struct {
	Name       string       `json:"name"`
	Language   languageCode `json:"language"`
	Components []component  `json:"components"`
}

type languageCode struct {
	Code string `json:"code"`
}

type component struct {
	Type       string          `json:"type"`
	Parameters []bodyParameter `json:"parameters"`
}

type bodyParameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type graphResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SendTemplate issues one synchronous send. Credentials and a non-empty
// recipient are checked before any network call; phoneE164 is otherwise
// trusted to be normalized already.
func (c *WhatsAppClient) SendTemplate(ctx context.Context, phoneE164, templateName, language string, variables []string) SendResult {
	if c == nil || c.client == nil {
		return failureResult("", "client is not initialized", nil, nil)
	}
	if !c.credentials.valid() {
		return failureResult("", "Missing API credentials.", nil, nil)
	}
	if strings.TrimSpace(phoneE164) == "" {
		return failureResult("", "Missing recipient phone.", nil, nil)
	}

	payload, err := BuildTemplatePayload(phoneE164, templateName, language, variables)
	if err != nil {
		return failureResult("", fmt.Sprintf("failed to encode request: %v", err), nil, nil)
	}

	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetAuthToken(c.credentials.AccessToken).
		SetBody(payload).
		Post(c.endpoint())
	if err != nil {
		return failureResult("", err.Error(), payload, nil)
	}
	if response == nil {
		return failureResult("", genericErrorMessage, payload, nil)
	}

	raw := response.Body()
	var decoded graphResponse
	// The capture stays useful even when the body is not valid JSON.
	_ = json.Unmarshal(raw, &decoded)

	statusCode := response.StatusCode()
	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		messageID := ""
		if len(decoded.Messages) > 0 {
			messageID = decoded.Messages[0].ID
		}
		return SendResult{
			Success:   true,
			MessageID: messageID,
			Payload:   payload,
			Response:  captureBody(raw),
		}
	}

	errorCode := ""
	errorMessage := genericErrorMessage
	if decoded.Error != nil {
		if decoded.Error.Message != "" {
			errorMessage = decoded.Error.Message
		}
		if decoded.Error.Code != 0 {
			errorCode = strconv.Itoa(decoded.Error.Code)
		}
	}

	return failureResult(errorCode, errorMessage, payload, raw)
}

func (c *WhatsAppClient) endpoint() string {
	return fmt.Sprintf("%s/%s/%s/messages", c.baseURL, c.version, url.PathEscape(c.credentials.PhoneNumberID))
}

// BuildTemplatePayload renders the Graph API request body for a template
// send. Dispatch logs store it on the queued row so an attempt interrupted
// mid-call still records what was being sent.
func BuildTemplatePayload(phoneE164, templateName, language string, variables []string) (json.RawMessage, error) {
	return json.Marshal(buildTemplateRequest(phoneE164, templateName, language, variables))
}

func buildTemplateRequest(phoneE164, templateName, language string, variables []string) templateRequest {
	parameters := make([]bodyParameter, 0, len(variables))
	for _, value := range variables {
		parameters = append(parameters, bodyParameter{Type: "text", Text: value})
	}

	return templateRequest{
		MessagingProduct: "whatsapp",
		To:               phoneE164,
		Type:             "template",
		Template: templatePayload{
			Name:     templateName,
			Language: languageCode{Code: language},
			Components: []component{
				{Type: "body", Parameters: parameters},
			},
		},
	}
}

func failureResult(errorCode, errorMessage string, payload, response []byte) SendResult {
	return SendResult{
		Success:      false,
		ErrorCode:    errorCode,
		ErrorMessage: errorMessage,
		Payload:      payload,
		Response:     captureBody(response),
	}
}

func captureBody(raw []byte) json.RawMessage {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return nil
	}
	if json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed)
	}

	// Non-JSON provider bodies are still captured, wrapped as a JSON string.
	quoted, err := json.Marshal(trimmed)
	if err != nil {
		return nil
	}
	return json.RawMessage(quoted)
}
