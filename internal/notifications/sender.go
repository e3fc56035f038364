package notifications

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"github.com/albapepper/dropwatch/internal/pricing"
)

// DiscordNotifier posts alerts to a Discord webhook.
type DiscordNotifier struct {
	cfg        DiscordConfig
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

// NewDiscordNotifier creates a webhook sender.
// Returns nil if the webhook URL is empty (notifications disabled).
func NewDiscordNotifier(cfg DiscordConfig, logger *slog.Logger) *DiscordNotifier {
	if cfg.WebhookURL == "" {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Username == "" {
		cfg.Username = defaultUsername
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &DiscordNotifier{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With("webhook", RedactURL(cfg.WebhookURL)),
		now:        time.Now,
	}
}

// SendBatch posts all alerts, split into messages of at most ten embeds.
// Every chunk is attempted; failures are joined into the returned error and
// the count covers the chunks that were delivered.
func (n *DiscordNotifier) SendBatch(ctx context.Context, alerts []pricing.Alert) (int, error) {
	if n == nil || len(alerts) == 0 {
		return 0, nil // no-op when not configured
	}

	now := n.now()
	embeds := make([]embed, len(alerts))
	for i, a := range alerts {
		embeds[i] = buildEmbed(a, now)
	}
	chunks := chunkEmbeds(embeds, maxEmbedsPerPost)

	var errs []error
	delivered := 0
	for i, chunk := range chunks {
		body, err := json.Marshal(webhookPayload{
			Username:  n.cfg.Username,
			AvatarURL: n.cfg.AvatarURL,
			Embeds:    chunk,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("encode payload: %w", err))
			continue
		}

		attempts, err := n.cfg.Retry.Do(ctx, func(int) error {
			return n.post(ctx, body)
		}, func(attempt int, wait time.Duration, err error) {
			n.logger.Warn("Webhook delivery failed, retrying",
				"chunk", i+1, "attempt", attempt, "max_attempts", n.cfg.Retry.MaxAttempts,
				"wait", wait, "error", err)
		})
		if err != nil {
			n.logger.Error("Webhook delivery abandoned",
				"chunk", i+1, "chunks", len(chunks), "embeds", len(chunk),
				"attempts", attempts, "retryable", IsRetryable(err), "error", err)
			errs = append(errs, fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err))
			continue
		}
		delivered += len(chunk)
		n.logger.Info("Webhook delivered",
			"chunk", i+1, "chunks", len(chunks), "embeds", len(chunk), "attempts", attempts)
	}
	return delivered, errors.Join(errs...)
}

func (n *DiscordNotifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return errors.New("create request: invalid webhook URL")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyLimit))
	de := &DeliveryError{StatusCode: resp.StatusCode, Body: string(snippet)}
	if resp.StatusCode == http.StatusTooManyRequests {
		de.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
	}
	return de
}

// parseRetryAfter reads a seconds value (possibly fractional) and pads it
// by one second.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(int64(secs)+1) * time.Second
}

// --------------------------------------------------------------------------
// Dry run
// --------------------------------------------------------------------------

// LogNotifier logs alerts instead of delivering them.
type LogNotifier struct {
	Logger *slog.Logger
}

// SendBatch logs one line per alert.
func (l LogNotifier) SendBatch(_ context.Context, alerts []pricing.Alert) (int, error) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	for _, a := range alerts {
		logger.Info("Alert (dry run)",
			"sku", a.SKU, "name", a.Name, "price", a.Price.StringFixed(2),
			"history_points", a.HistoryLength, "reason", a.Reason)
	}
	return len(alerts), nil
}
