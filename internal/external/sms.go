package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"backoffice/internal/types"
)

// SmsClientConfig holds the configuration for creating an SmsClient.
type SmsClientConfig struct {
	BaseURL   string
	AccessKey string
	SignName  string
	Logger    types.Logger
}

// SmsClient implements SmsProvider against the SMS gateway's REST API.
// All requests go through BaseClient so SMS delivery shares the circuit
// breaker and retry behavior of the other providers.
type SmsClient struct {
	base      *BaseClient
	baseURL   string
	accessKey string
	signName  string
	logger    types.Logger
}

// NewSmsClient creates a new SmsClient.
func NewSmsClient(
	httpClient *http.Client,
	cfg SmsClientConfig,
) *SmsClient {
	base := NewBaseClient(
		httpClient,
		"sms-gateway",
		RetryPolicy{
			MaxRetries: 2,
			MinWait:    500 * time.Millisecond,
			MaxWait:    5 * time.Second,
		},
		"BackOffice/1.0",
		WithSleepFunc(time.Sleep),
	)

	return NewSmsClientWithBase(base, cfg)
}

// NewSmsClientWithBase creates an SmsClient with a pre-configured BaseClient.
func NewSmsClientWithBase(
	base *BaseClient,
	cfg SmsClientConfig,
) *SmsClient {
	return &SmsClient{
		base:      base,
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		accessKey: cfg.AccessKey,
		signName:  cfg.SignName,
		logger:    cfg.Logger,
	}
}

// smsSendRequest is the gateway's POST /v1/messages request body.
type smsSendRequest struct {
	Phones       []string          `json:"phones"`
	SignName     string            `json:"sign_name"`
	Content      string            `json:"content,omitempty"`
	TemplateCode string            `json:"template_code,omitempty"`
	Params       map[string]string `json:"params,omitempty"`
	ReferenceID  string            `json:"reference_id,omitempty"`
}

// smsSendResponse is the gateway's response body, shared between success
// and error shapes.
type smsSendResponse struct {
	MessageID string `json:"message_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// Send transmits an SMS batch through the gateway and returns the gateway
// message ID.
//
// Error mapping:
//   - 400/422 -> types.ErrCodeSmsRejected (bad number, content policy); terminal
//   - 429 -> handled by BaseClient (retry + ErrCodeUpstreamRateLimited)
//   - 5xx -> handled by BaseClient (retry + ErrCodeUpstreamUnavailable)
func (c *SmsClient) Send(ctx context.Context, input SmsSendInput) (string, error) {
	payload := smsSendRequest{
		Phones:       input.Phones,
		SignName:     c.signName,
		Content:      input.Content,
		TemplateCode: input.TemplateCode,
		Params:       input.Params,
		ReferenceID:  input.ReferenceID,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to marshal SMS send payload",
			err,
		)
	}

	reqURL := c.baseURL + "/v1/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return "", types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to create SMS send request",
			err,
		)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Access-Key", c.accessKey)

	resp, err := c.base.Do(req)
	if err != nil {
		if _, ok := err.(*types.AppError); ok {
			return "", err
		}
		return "", types.NewAppError(
			types.ErrCodeUpstreamUnavailable,
			fmt.Sprintf("Send: SMS gateway request failed: %v", err),
			err,
		)
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return "", types.NewAppError(
			types.ErrCodeUpstreamUnavailable,
			fmt.Sprintf("Send: SMS gateway returned status %d and response body was unreadable", resp.StatusCode),
			readErr,
		)
	}

	var gw smsSendResponse
	if jsonErr := json.Unmarshal(respBody, &gw); jsonErr != nil && resp.StatusCode == http.StatusOK {
		return "", types.NewAppError(
			types.ErrCodeUpstreamUnavailable,
			"Send: SMS gateway returned an unparseable body",
			jsonErr,
		)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return gw.MessageID, nil
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		// Rejected numbers or content never succeed on retry.
		return "", types.NewAppError(
			types.ErrCodeSmsRejected,
			fmt.Sprintf("Send: SMS gateway rejected message (%s): %s", gw.Code, gw.Message),
			nil,
		)
	default:
		return "", types.NewAppError(
			types.ErrCodeUpstreamUnavailable,
			fmt.Sprintf("Send: SMS gateway error (%d): %s", resp.StatusCode, gw.Message),
			nil,
		)
	}
}

// Compile-time assertion that SmsClient satisfies SmsProvider.
var _ SmsProvider = (*SmsClient)(nil)
