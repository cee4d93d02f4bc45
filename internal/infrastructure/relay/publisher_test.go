package relay

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"

	"github.com/riskibarqy/duelhub/internal/platform/resilience"
	"github.com/riskibarqy/duelhub/internal/usecase"
)

func TestPublisher_Notify_PostsEnvelope(t *testing.T) {
	t.Parallel()

	var (
		gotAuth        string
		gotContentType string
		gotBody        []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	publisher := NewPublisher(PublisherConfig{
		Endpoint: srv.URL,
		Token:    "secret-token",
		Timeout:  2 * time.Second,
	}, nil)

	event := usecase.MatchEvent{
		Type:       usecase.EventMatchFound,
		MatchID:    "m1",
		OpponentID: "p2",
		Status:     "pending",
	}
	if err := publisher.Notify(context.Background(), "p1", event); err != nil {
		t.Fatalf("notify: %v", err)
	}

	if gotAuth != "Bearer secret-token" {
		t.Fatalf("unexpected authorization header: %q", gotAuth)
	}
	if gotContentType != "application/json" {
		t.Fatalf("unexpected content type: %q", gotContentType)
	}

	var envelope relayEnvelope
	if err := sonic.Unmarshal(gotBody, &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.PlayerID != "p1" || envelope.Event.MatchID != "m1" {
		t.Fatalf("unexpected envelope: %+v", envelope)
	}
	if envelope.SentAt.IsZero() {
		t.Fatalf("expected sent_at to be stamped")
	}
}

func TestPublisher_Notify_NonRetryableStatusIsPermanent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad payload", http.StatusBadRequest)
	}))
	defer srv.Close()

	publisher := NewPublisher(PublisherConfig{Endpoint: srv.URL}, nil)

	err := publisher.Notify(context.Background(), "p1", usecase.MatchEvent{Type: usecase.EventMatchFound})
	if err == nil {
		t.Fatalf("expected error for 400 response")
	}
	if !strings.Contains(err.Error(), "status=400") {
		t.Fatalf("expected status in error, got %v", err)
	}
}

func TestPublisher_Notify_TransientFailuresOpenCircuit(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "downstream down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	publisher := NewPublisher(PublisherConfig{
		Endpoint: srv.URL,
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          true,
			FailureThreshold: 2,
			OpenTimeout:      time.Minute,
			HalfOpenMaxReq:   1,
		},
	}, nil)

	event := usecase.MatchEvent{Type: usecase.EventMatchFound}
	for i := 0; i < 2; i++ {
		if err := publisher.Notify(context.Background(), "p1", event); err == nil {
			t.Fatalf("expected 503 to surface as error on attempt %d", i)
		}
	}

	// Threshold reached: the next call must be rejected before touching the
	// endpoint.
	err := publisher.Notify(context.Background(), "p1", event)
	if err == nil {
		t.Fatalf("expected circuit breaker rejection")
	}
	if !strings.Contains(err.Error(), "temporarily unavailable") {
		t.Fatalf("expected breaker rejection, got %v", err)
	}
}

func TestPublisher_Notify_InvalidEndpoint(t *testing.T) {
	t.Parallel()

	publisher := NewPublisher(PublisherConfig{Endpoint: "ftp://relay.internal"}, nil)

	err := publisher.Notify(context.Background(), "p1", usecase.MatchEvent{Type: usecase.EventMatchFound})
	if err == nil {
		t.Fatalf("expected error for unsupported scheme")
	}
}

func TestValidateHTTPBaseURL(t *testing.T) {
	t.Parallel()

	if _, err := validateHTTPBaseURL(""); err == nil {
		t.Fatalf("expected error for empty value")
	}
	if _, err := validateHTTPBaseURL("https://"); err == nil {
		t.Fatalf("expected error for empty host")
	}

	got, err := validateHTTPBaseURL("https://relay.internal/events/")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got != "https://relay.internal/events" {
		t.Fatalf("expected trailing slash trimmed, got %q", got)
	}
}

func TestBuildRelayCurlPreview_MasksToken(t *testing.T) {
	t.Parallel()

	preview := buildRelayCurlPreview("https://relay.internal/events", `{"playerId":"p1"}`, true)
	if !strings.Contains(preview, "Authorization: Bearer ***") {
		t.Fatalf("expected masked token in preview: %s", preview)
	}
	if strings.Contains(preview, "secret") {
		t.Fatalf("preview leaked a token: %s", preview)
	}
}

func TestTruncateForLog(t *testing.T) {
	t.Parallel()

	if got := truncateForLog("short", 10); got != "short" {
		t.Fatalf("unexpected: %q", got)
	}
	if got := truncateForLog("0123456789abc", 10); got != "0123456789...(truncated)" {
		t.Fatalf("unexpected: %q", got)
	}
}
