// Package relay mirrors match events to an external HTTP endpoint so other
// services (stats, chat, moderation) can react to matchmaking outcomes
// without polling the API.
package relay

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/valyala/bytebufferpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/riskibarqy/duelhub/internal/platform/resilience"
	"github.com/riskibarqy/duelhub/internal/usecase"
)

var errRelayTransient = crerr.New("relay transient failure")

type PublisherConfig struct {
	Endpoint       string
	Token          string
	Timeout        time.Duration
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Publisher posts match events to the configured endpoint. It satisfies
// usecase.Notifier so the match service can fan events out to it alongside
// the push hub. Failures are surfaced to the caller but delivery stays best
// effort there.
type Publisher struct {
	client         *http.Client
	endpoint       string
	token          string
	logger         *slog.Logger
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
}

var _ usecase.Notifier = (*Publisher)(nil)

func NewPublisher(cfg PublisherConfig, logger *slog.Logger) *Publisher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	breakerCfg := resilience.NormalizeCircuitBreakerConfig(cfg.CircuitBreaker)

	return &Publisher{
		client: &http.Client{
			Timeout: timeout,
		},
		endpoint:       strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/"),
		token:          strings.TrimSpace(cfg.Token),
		logger:         logger,
		breaker:        resilience.NewCircuitBreaker(breakerCfg.FailureThreshold, breakerCfg.OpenTimeout, breakerCfg.HalfOpenMaxReq),
		circuitEnabled: breakerCfg.Enabled,
	}
}

type relayEnvelope struct {
	PlayerID string             `json:"playerId"`
	Event    usecase.MatchEvent `json:"event"`
	SentAt   time.Time          `json:"sentAt"`
}

func (p *Publisher) Notify(ctx context.Context, playerID string, event usecase.MatchEvent) error {
	if p.circuitEnabled {
		if err := p.breaker.Allow(); err != nil {
			p.logger.WarnContext(ctx, "relay circuit breaker rejected request", "state", p.breaker.State())
			return fmt.Errorf("relay is temporarily unavailable: %w", err)
		}
	}

	endpoint, err := validateHTTPBaseURL(p.endpoint)
	if err != nil {
		return crerr.Wrap(err, "invalid RELAY_ENDPOINT")
	}

	body, err := sonic.Marshal(relayEnvelope{
		PlayerID: playerID,
		Event:    event,
		SentAt:   time.Now().UTC(),
	})
	if err != nil {
		return crerr.Wrap(err, "marshal relay payload")
	}
	bodyText := truncateForLog(string(body), 4096)
	curlPreview := buildRelayCurlPreview(endpoint, bodyText, p.token != "")

	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.SetAttributes(
			attribute.String("relay.endpoint", endpoint),
			attribute.String("relay.event_type", event.Type),
			attribute.String("relay.request_body", bodyText),
			attribute.String("relay.request_curl_preview", curlPreview),
		)
	}
	p.logger.DebugContext(ctx, "relay publish request", "endpoint", endpoint, "event_type", event.Type, "curl_preview", curlPreview)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(body)))
	if err != nil {
		return crerr.Wrap(err, "create relay request")
	}
	req.Header.Set("Content-Type", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		callErr := fmt.Errorf("%w: publish match event endpoint=%s: %v", errRelayTransient, endpoint, err)
		p.recordCircuitResult(callErr)
		return callErr
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode/100 != 2 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if isRetryableStatus(resp.StatusCode) {
			callErr := fmt.Errorf(
				"%w: publish match event status=%d endpoint=%s body=%s",
				errRelayTransient,
				resp.StatusCode,
				endpoint,
				strings.TrimSpace(string(raw)),
			)
			p.recordCircuitResult(callErr)
			return callErr
		}

		callErr := fmt.Errorf(
			"publish match event status=%d endpoint=%s body=%s",
			resp.StatusCode,
			endpoint,
			strings.TrimSpace(string(raw)),
		)
		p.recordCircuitResult(callErr)
		return callErr
	}

	p.logger.DebugContext(ctx, "relay event published", "event_type", event.Type, "match_id", event.MatchID)
	p.recordCircuitResult(nil)
	return nil
}

func (p *Publisher) recordCircuitResult(err error) {
	if !p.circuitEnabled || p.breaker == nil {
		return
	}
	if err == nil {
		p.breaker.RecordSuccess()
		return
	}
	if stderrors.Is(err, errRelayTransient) {
		p.breaker.RecordFailure()
		return
	}
	p.breaker.RecordSuccess()
}

func isRetryableStatus(statusCode int) bool {
	return statusCode == http.StatusRequestTimeout ||
		statusCode == http.StatusTooManyRequests ||
		statusCode >= http.StatusInternalServerError
}

func validateHTTPBaseURL(raw string) (string, error) {
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return "", crerr.New("value is empty")
	}

	parsed, err := url.Parse(candidate)
	if err != nil {
		return "", crerr.Wrapf(err, "parse %q", candidate)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", crerr.Newf("%q uses unsupported scheme=%q; expected http or https", candidate, parsed.Scheme)
	}
	if strings.TrimSpace(parsed.Host) == "" {
		return "", crerr.Newf("%q has empty host", candidate)
	}

	return strings.TrimRight(candidate, "/"), nil
}

func buildRelayCurlPreview(endpoint, body string, withToken bool) string {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	appendPart := func(part string) {
		if buf.Len() > 0 {
			_ = buf.WriteByte(' ')
		}
		_, _ = buf.WriteString(part)
	}

	appendPart("curl")
	appendPart("-X")
	appendPart("POST")
	appendPart(shellQuote(endpoint))
	appendPart("-H")
	appendPart(shellQuote("Content-Type: application/json"))
	if withToken {
		appendPart("-H")
		appendPart(shellQuote("Authorization: Bearer ***"))
	}
	appendPart("-d")
	appendPart(shellQuote(body))

	return buf.String()
}

func shellQuote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "'\"'\"'") + "'"
}

func truncateForLog(value string, max int) string {
	if max <= 0 || len(value) <= max {
		return value
	}
	return value[:max] + "...(truncated)"
}
