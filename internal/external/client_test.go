package external

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"backoffice/internal/types"

	"github.com/sony/gobreaker/v2"
)

// noopSleep is a sleep function that does nothing, for fast tests.
func noopSleep(time.Duration) {}

// fastPolicy keeps retry waits negligible so retry paths run instantly.
func fastPolicy(maxRetries int) RetryPolicy {
	return RetryPolicy{
		MaxRetries: maxRetries,
		MinWait:    time.Millisecond,
		MaxWait:    10 * time.Millisecond,
	}
}

// postJSON issues the kind of request the provider clients make: a JSON
// POST carrying a trace ID in the context.
func postJSON(t *testing.T, c *BaseClient, url, body string) (*http.Response, error) {
	t.Helper()
	ctx := types.WithTraceID(context.Background(), "trace-123")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.Do(req)
}

func newTestClient(policy RetryPolicy) *BaseClient {
	return NewBaseClient(
		&http.Client{Timeout: 5 * time.Second},
		"test-breaker",
		policy,
		"BackOffice-Test/1.0",
		WithSleepFunc(noopSleep),
	)
}

func TestDo_SuccessSetsProviderHeaders(t *testing.T) {
	var traceID, userAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID = r.Header.Get("X-B3-TraceId")
		userAgent = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"message_id":"m1"}`))
	}))
	defer server.Close()

	resp, err := postJSON(t, newTestClient(fastPolicy(3)), server.URL+"/send", `{"to":"a@b.c"}`)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}
	if traceID != "trace-123" {
		t.Errorf("expected trace ID 'trace-123', got %q", traceID)
	}
	if userAgent != "BackOffice-Test/1.0" {
		t.Errorf("expected User-Agent 'BackOffice-Test/1.0', got %q", userAgent)
	}
}

func TestDo_RetriedPostReplaysBody(t *testing.T) {
	var callCount atomic.Int32
	var receivedBodies []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		receivedBodies = append(receivedBodies, string(body))
		if callCount.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	body := `{"phones":["13800000000"],"content":"hi"}`
	resp, err := postJSON(t, newTestClient(fastPolicy(3)), server.URL+"/send", body)
	if err != nil {
		t.Fatalf("expected success after retries, got: %v", err)
	}
	resp.Body.Close()

	if calls := callCount.Load(); calls != 3 {
		t.Errorf("expected 3 attempts (2 failures + 1 success), got %d", calls)
	}
	for i, rb := range receivedBodies {
		if rb != body {
			t.Errorf("attempt %d: expected body %q, got %q", i, body, rb)
		}
	}
}

func TestDo_RetryAfterHonoredAndCapped(t *testing.T) {
	tests := []struct {
		name       string
		retryAfter string
		maxWait    time.Duration
		wantSleep  time.Duration
	}{
		{name: "honored", retryAfter: "2", maxWait: 10 * time.Second, wantSleep: 2 * time.Second},
		{name: "capped at max wait", retryAfter: "3600", maxWait: 5 * time.Second, wantSleep: 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var callCount atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if callCount.Add(1) == 1 {
					w.Header().Set("Retry-After", tt.retryAfter)
					w.WriteHeader(http.StatusTooManyRequests)
					return
				}
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			var sleeps []time.Duration
			client := NewBaseClient(
				&http.Client{Timeout: 5 * time.Second},
				"test-retry-after-"+tt.name,
				RetryPolicy{MaxRetries: 1, MinWait: 100 * time.Millisecond, MaxWait: tt.maxWait},
				"BackOffice-Test/1.0",
				WithSleepFunc(func(d time.Duration) { sleeps = append(sleeps, d) }),
			)

			resp, err := postJSON(t, client, server.URL+"/send", `{}`)
			if err != nil {
				t.Fatalf("expected success, got: %v", err)
			}
			resp.Body.Close()

			if len(sleeps) != 1 {
				t.Fatalf("expected 1 sleep, got %d", len(sleeps))
			}
			if sleeps[0] != tt.wantSleep {
				t.Errorf("expected sleep %v, got %v", tt.wantSleep, sleeps[0])
			}
		})
	}
}

func TestDo_ExhaustedRetriesMapToUpstreamCodes(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantCode types.ErrorCode
	}{
		{name: "persistent 500", status: http.StatusInternalServerError, wantCode: types.ErrCodeUpstreamUnavailable},
		{name: "persistent 429", status: http.StatusTooManyRequests, wantCode: types.ErrCodeUpstreamRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var callCount atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				callCount.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			resp, err := postJSON(t, newTestClient(fastPolicy(2)), server.URL+"/send", `{}`)
			if resp != nil {
				t.Error("expected nil response on exhausted retries")
			}
			if err == nil {
				t.Fatal("expected error on exhausted retries, got nil")
			}

			var appErr *types.AppError
			if !errors.As(err, &appErr) {
				t.Fatalf("expected *types.AppError, got %T: %v", err, err)
			}
			if appErr.Code != tt.wantCode {
				t.Errorf("expected error code %s, got %s", tt.wantCode, appErr.Code)
			}
			if calls := callCount.Load(); calls != 3 {
				t.Errorf("expected 3 attempts (1 + 2 retries), got %d", calls)
			}
		})
	}
}

func TestDo_4xxReturnedWithoutRetry(t *testing.T) {
	// Provider clients decode 4xx payloads themselves (blocked address,
	// bad template), so the response must come back as-is, once.
	var callCount atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errors":[{"message":"invalid template"}]}`))
	}))
	defer server.Close()

	resp, err := postJSON(t, newTestClient(fastPolicy(3)), server.URL+"/send", `{}`)
	if err != nil {
		t.Fatalf("expected no error for 400, got: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", resp.StatusCode)
	}
	if calls := callCount.Load(); calls != 1 {
		t.Errorf("expected exactly 1 call for 4xx, got %d", calls)
	}
}

func TestDo_OpenBreakerShortCircuits(t *testing.T) {
	var callCount atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	breaker := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "test-open",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
	})
	client := NewBaseClientWithBreaker(
		&http.Client{Timeout: 5 * time.Second},
		breaker,
		fastPolicy(0),
		"BackOffice-Test/1.0",
		WithSleepFunc(noopSleep),
	)

	for i := 0; i < 4; i++ {
		_, _ = postJSON(t, client, server.URL+"/send", `{}`)
	}
	callsBefore := callCount.Load()

	resp, err := postJSON(t, client, server.URL+"/send", `{}`)
	if resp != nil {
		resp.Body.Close()
		t.Error("expected nil response when breaker is open")
	}
	if err == nil {
		t.Fatal("expected error when breaker is open, got nil")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *types.AppError, got %T: %v", err, err)
	}
	if appErr.Code != types.ErrCodeUpstreamRateLimited {
		t.Errorf("expected error code %s, got %s", types.ErrCodeUpstreamRateLimited, appErr.Code)
	}
	if callCount.Load() != callsBefore {
		t.Errorf("expected no server call through an open breaker, got %d more",
			callCount.Load()-callsBefore)
	}
}

func TestDo_NetworkErrorMapsToInternal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	serverURL := server.URL
	server.Close() // connections now fail

	resp, err := postJSON(t, newTestClient(fastPolicy(1)), serverURL+"/send", `{}`)
	if resp != nil {
		resp.Body.Close()
		t.Error("expected nil response for network error")
	}
	if err == nil {
		t.Fatal("expected error for network error, got nil")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *types.AppError, got %T: %v", err, err)
	}
	if appErr.Code != types.ErrCodeInternalUnexpected {
		t.Errorf("expected error code %s, got %s", types.ErrCodeInternalUnexpected, appErr.Code)
	}
}

func TestComputeBackoff_StaysWithinBounds(t *testing.T) {
	client := &BaseClient{
		retryPolicy: RetryPolicy{
			MaxRetries: 5,
			MinWait:    100 * time.Millisecond,
			MaxWait:    10 * time.Second,
		},
	}

	// Jitter makes exact values unpredictable; check bounds.
	for attempt := 0; attempt < 5; attempt++ {
		backoff := client.computeBackoff(attempt, nil)
		if backoff < client.retryPolicy.MinWait {
			t.Errorf("attempt %d: backoff %v < MinWait %v", attempt, backoff, client.retryPolicy.MinWait)
		}
		if backoff > client.retryPolicy.MaxWait {
			t.Errorf("attempt %d: backoff %v > MaxWait %v", attempt, backoff, client.retryPolicy.MaxWait)
		}
	}
}
