package notifier

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/parchment-io/k8s-events-to-slack-streamer/internal/formatter"
)

const (
	defaultWebhookTimeout = 10 * time.Second
	maxResponseSnippet    = 256
	userAgent             = "k8s-events-streamer/v1"
)

// DeliveryError is returned when a payload could not reach the webhook.
type DeliveryError struct {
	// URL is the redacted webhook URL.
	URL string
	Err error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver to %s: %v", e.URL, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// WebhookSender implements Sender for a Slack-compatible incoming webhook.
type WebhookSender struct {
	httpClient *http.Client
	logger     *zap.Logger
	url        string
}

// WebhookSenderConfig holds the configuration for creating a WebhookSender.
type WebhookSenderConfig struct {
	URL                string
	Timeout            time.Duration
	InsecureSkipVerify bool
}

// NewWebhookSender creates a WebhookSender. Returns an error if the URL is invalid.
func NewWebhookSender(logger *zap.Logger, cfg WebhookSenderConfig) (*WebhookSender, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook URL is required")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("webhook URL must use http or https scheme, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("webhook URL must include a host")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // user-configured
		logger.Warn("Webhook TLS certificate verification is disabled",
			zap.String("url", RedactURL(cfg.URL)))
	}

	return &WebhookSender{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		logger: logger.Named("webhook-sender"),
		url:    cfg.URL,
	}, nil
}

// Name implements Sender.
func (ws *WebhookSender) Name() string { return "webhook" }

// Timeout returns the per-request timeout.
func (ws *WebhookSender) Timeout() time.Duration { return ws.httpClient.Timeout }

// Send implements Sender. It performs one POST and does not retry.
func (ws *WebhookSender) Send(ctx context.Context, p formatter.Payload) error {
	body, err := formatter.Marshal(p)
	if err != nil {
		webhookSendTotal.WithLabelValues("error").Inc()
		return err
	}

	if ce := ws.logger.Check(zap.DebugLevel, "Posting message"); ce != nil {
		ce.Write(zap.String("url", RedactURL(ws.url)), zap.ByteString("body", body))
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ws.url, bytes.NewReader(body))
	if err != nil {
		webhookSendTotal.WithLabelValues("error").Inc()
		return &DeliveryError{URL: RedactURL(ws.url), Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := ws.httpClient.Do(req)
	duration := time.Since(start).Seconds()
	if err != nil {
		webhookSendTotal.WithLabelValues("error").Inc()
		webhookSendDuration.WithLabelValues("error").Observe(duration)
		return &DeliveryError{URL: RedactURL(ws.url), Err: err}
	}
	defer func() {
		// Drain and close body to reuse connections.
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		webhookSendTotal.WithLabelValues("success").Inc()
		webhookSendDuration.WithLabelValues("success").Observe(duration)
		return nil
	}

	// The receiver answered; delivery is best-effort, so this is reported
	// but not returned.
	webhookSendTotal.WithLabelValues("rejected").Inc()
	webhookSendDuration.WithLabelValues("rejected").Observe(duration)
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseSnippet))
	ws.logger.Warn("Webhook rejected notification",
		zap.String("url", RedactURL(ws.url)),
		zap.Int("status", resp.StatusCode),
		zap.ByteString("response", snippet),
	)
	return nil
}

// RedactURL masks credentials in a URL for safe logging.
// It redacts userinfo passwords, query parameter values and the path, which
// is where incoming-webhook services keep their token.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	r, err := url.Parse(u.Redacted())
	if err != nil {
		return "<invalid-url>"
	}
	if r.Path != "" && r.Path != "/" {
		r.Path = "/REDACTED"
		r.RawPath = ""
	}
	if r.RawQuery != "" {
		q := r.Query()
		for key := range q {
			q.Set(key, "REDACTED")
		}
		r.RawQuery = q.Encode()
	}
	return r.String()
}
