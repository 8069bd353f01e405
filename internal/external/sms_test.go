package external

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"backoffice/internal/types"
)

func newTestSmsClient(t *testing.T, serverURL string) *SmsClient {
	t.Helper()
	base := NewBaseClient(
		&http.Client{Timeout: 5 * time.Second},
		"test-sms",
		RetryPolicy{
			MaxRetries: 0,
			MinWait:    1 * time.Millisecond,
			MaxWait:    10 * time.Millisecond,
		},
		"BackOffice-Test/1.0",
		WithSleepFunc(noopSleep),
	)

	return NewSmsClientWithBase(base, SmsClientConfig{
		BaseURL:   serverURL,
		AccessKey: "ak_test_key",
		SignName:  "BackOffice",
	})
}

func TestSmsSend_Success(t *testing.T) {
	var receivedPayload smsSendRequest
	var receivedKey string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/v1/messages" {
			t.Errorf("expected path /v1/messages, got %s", r.URL.Path)
		}

		receivedKey = r.Header.Get("X-Access-Key")
		if err := json.NewDecoder(r.Body).Decode(&receivedPayload); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message_id":"sms_789","code":"OK"}`))
	}))
	defer server.Close()

	client := newTestSmsClient(t, server.URL)

	msgID, err := client.Send(context.Background(), SmsSendInput{
		Phones:       []string{"+15550100", "+15550101"},
		TemplateCode: "po_approved",
		Params:       map[string]string{"po": "PO-1042"},
		ReferenceID:  "push_7",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgID != "sms_789" {
		t.Errorf("expected message ID sms_789, got %s", msgID)
	}
	if receivedKey != "ak_test_key" {
		t.Errorf("unexpected access key header: %s", receivedKey)
	}
	if receivedPayload.SignName != "BackOffice" {
		t.Errorf("expected sign name from config, got %s", receivedPayload.SignName)
	}
	if len(receivedPayload.Phones) != 2 {
		t.Errorf("expected 2 phones, got %d", len(receivedPayload.Phones))
	}
	if receivedPayload.TemplateCode != "po_approved" {
		t.Errorf("unexpected template code: %s", receivedPayload.TemplateCode)
	}
}

func TestSmsSend_RejectedMapsToSmsRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"code":"INVALID_NUMBER","message":"number is not reachable"}`))
	}))
	defer server.Close()

	client := newTestSmsClient(t, server.URL)

	_, err := client.Send(context.Background(), SmsSendInput{
		Phones:  []string{"not-a-number"},
		Content: "hello",
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if got := types.CodeOf(err); got != types.ErrCodeSmsRejected {
		t.Errorf("expected %s, got %s", types.ErrCodeSmsRejected, got)
	}
	if types.IsRetryableUpstream(err) {
		t.Error("rejected sms must not be retryable")
	}
}

func TestSmsSend_ServerErrorRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestSmsClient(t, server.URL)

	_, err := client.Send(context.Background(), SmsSendInput{
		Phones:  []string{"+15550100"},
		Content: "hello",
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if got := types.CodeOf(err); got != types.ErrCodeUpstreamUnavailable {
		t.Errorf("expected %s, got %s", types.ErrCodeUpstreamUnavailable, got)
	}
	if !types.IsRetryableUpstream(err) {
		t.Error("gateway 5xx must stay retryable")
	}
}

func TestSmsSend_RateLimitedFromBaseClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestSmsClient(t, server.URL)

	_, err := client.Send(context.Background(), SmsSendInput{
		Phones:  []string{"+15550100"},
		Content: "hello",
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if got := types.CodeOf(err); got != types.ErrCodeUpstreamRateLimited {
		t.Errorf("expected %s, got %s", types.ErrCodeUpstreamRateLimited, got)
	}
}
