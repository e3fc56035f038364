package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/dropwatch/internal/pricing"
)

type webhookRecorder struct {
	mu       sync.Mutex
	payloads []webhookPayload
	statuses []int // consumed per request; 204 once exhausted
	headers  map[string]string
}

func (r *webhookRecorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var p webhookPayload
	_ = json.NewDecoder(req.Body).Decode(&p)
	r.payloads = append(r.payloads, p)

	status := http.StatusNoContent
	if len(r.statuses) > 0 {
		status = r.statuses[0]
		r.statuses = r.statuses[1:]
	}
	for k, v := range r.headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(status)
	if status >= 400 {
		w.Write([]byte(`{"message":"nope"}`))
	}
}

func newTestNotifier(t *testing.T, rec *webhookRecorder, logBuf *bytes.Buffer) (*DiscordNotifier, *[]time.Duration) {
	t.Helper()
	srv := httptest.NewServer(rec)
	t.Cleanup(srv.Close)

	var waits []time.Duration
	policy := DefaultRetryPolicy(3, time.Second)
	policy.Sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	var out io.Writer = io.Discard
	if logBuf != nil {
		out = logBuf
	}
	n := NewDiscordNotifier(DiscordConfig{
		WebhookURL: srv.URL + "/api/webhooks/42/super-secret-token",
		AvatarURL:  "https://img/avatar.png",
		Retry:      policy,
	}, slog.New(slog.NewTextHandler(out, nil)))
	n.now = func() time.Time { return time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC) }
	return n, &waits
}

func testAlert(i int) pricing.Alert {
	low := decimal.NewFromInt(45)
	return pricing.Alert{
		SKU:           fmt.Sprintf("SKU%d", i),
		Name:          fmt.Sprintf("Item %d", i),
		Price:         decimal.NewFromInt(45),
		Link:          "https://www.bestbuy.ca/p/" + fmt.Sprint(i),
		ImageURL:      "https://img/x.jpg",
		RemoteMin:     &low,
		HistoryLength: 3,
		Reason:        "Matches all-time low of $45.00.",
	}
}

func TestSendBatch_SinglePost(t *testing.T) {
	rec := &webhookRecorder{}
	n, _ := newTestNotifier(t, rec, nil)

	sent, err := n.SendBatch(context.Background(), []pricing.Alert{testAlert(1), testAlert(2)})
	require.NoError(t, err)
	assert.Equal(t, 2, sent)

	require.Len(t, rec.payloads, 1)
	p := rec.payloads[0]
	assert.Equal(t, defaultUsername, p.Username)
	assert.Equal(t, "https://img/avatar.png", p.AvatarURL)
	require.Len(t, p.Embeds, 2)

	e := p.Embeds[0]
	assert.Equal(t, "🚨 Price Drop: Item 1", e.Title)
	assert.Equal(t, "https://www.bestbuy.ca/p/1", e.URL)
	assert.Equal(t, "$45.00", e.Fields[1].Value)
	assert.Equal(t, "$45.00", e.Fields[3].Value)
	assert.Equal(t, "3", e.Fields[9].Value)
	require.NotNil(t, e.Thumbnail)
	assert.Equal(t, "StockTrack Monitor | 2026-05-01 09:30:00", e.Footer.Text)
}

func TestSendBatch_ChunksAtTenEmbeds(t *testing.T) {
	rec := &webhookRecorder{}
	n, _ := newTestNotifier(t, rec, nil)

	alerts := make([]pricing.Alert, 23)
	for i := range alerts {
		alerts[i] = testAlert(i)
	}
	sent, err := n.SendBatch(context.Background(), alerts)
	require.NoError(t, err)
	assert.Equal(t, 23, sent)

	require.Len(t, rec.payloads, 3)
	assert.Len(t, rec.payloads[0].Embeds, 10)
	assert.Len(t, rec.payloads[1].Embeds, 10)
	assert.Len(t, rec.payloads[2].Embeds, 3)
	assert.Equal(t, "SKU10", rec.payloads[1].Embeds[0].Fields[0].Value, "feed order is kept")
}

func TestSendBatch_RetriesRateLimit(t *testing.T) {
	rec := &webhookRecorder{
		statuses: []int{http.StatusTooManyRequests, http.StatusTooManyRequests},
		headers:  map[string]string{"Retry-After": "2.5"},
	}
	n, waits := newTestNotifier(t, rec, nil)

	_, err := n.SendBatch(context.Background(), []pricing.Alert{testAlert(1)})
	require.NoError(t, err)

	assert.Len(t, rec.payloads, 3)
	assert.Equal(t, []time.Duration{3 * time.Second, 3 * time.Second}, *waits)
}

func TestSendBatch_ExhaustedRetries(t *testing.T) {
	rec := &webhookRecorder{statuses: []int{500, 502, 503, 504}}
	n, waits := newTestNotifier(t, rec, nil)

	sent, err := n.SendBatch(context.Background(), []pricing.Alert{testAlert(1)})

	require.Error(t, err)
	assert.Equal(t, 0, sent)
	assert.Len(t, rec.payloads, 3)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *waits)
	var de *DeliveryError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 503, de.StatusCode)
}

func TestSendBatch_NonRetryableAbandoned(t *testing.T) {
	rec := &webhookRecorder{statuses: []int{http.StatusBadRequest}}
	n, waits := newTestNotifier(t, rec, nil)

	_, err := n.SendBatch(context.Background(), []pricing.Alert{testAlert(1)})

	require.Error(t, err)
	assert.Len(t, rec.payloads, 1)
	assert.Empty(t, *waits)
	assert.False(t, IsRetryable(err))
}

func TestSendBatch_OneChunkFailingDoesNotStopOthers(t *testing.T) {
	rec := &webhookRecorder{statuses: []int{http.StatusBadRequest}}
	n, _ := newTestNotifier(t, rec, nil)

	alerts := make([]pricing.Alert, 12)
	for i := range alerts {
		alerts[i] = testAlert(i)
	}
	sent, err := n.SendBatch(context.Background(), alerts)

	require.Error(t, err)
	assert.Equal(t, 2, sent, "second chunk was delivered")
	assert.Contains(t, err.Error(), "chunk 1/2")
	assert.Len(t, rec.payloads, 2)
}

func TestSendBatch_NeverLogsWebhookToken(t *testing.T) {
	var logs bytes.Buffer
	rec := &webhookRecorder{statuses: []int{500, 500, 500}}
	n, _ := newTestNotifier(t, rec, &logs)

	_, _ = n.SendBatch(context.Background(), []pricing.Alert{testAlert(1)})

	assert.NotEmpty(t, logs.String())
	assert.False(t, strings.Contains(logs.String(), "super-secret-token"))
	assert.Contains(t, logs.String(), "/api/webhooks/42/***")
}

func TestSendBatch_TransportErrorRedacted(t *testing.T) {
	policy := DefaultRetryPolicy(1, 0)
	n := NewDiscordNotifier(DiscordConfig{
		WebhookURL: "http://127.0.0.1:1/api/webhooks/42/super-secret-token",
		Retry:      policy,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := n.SendBatch(context.Background(), []pricing.Alert{testAlert(1)})

	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.NotContains(t, err.Error(), "super-secret-token")
}

func TestSendBatch_NilAndEmpty(t *testing.T) {
	var n *DiscordNotifier
	sent, err := n.SendBatch(context.Background(), []pricing.Alert{testAlert(1)})
	assert.NoError(t, err)
	assert.Equal(t, 0, sent)
	assert.Nil(t, NewDiscordNotifier(DiscordConfig{}, nil))

	rec := &webhookRecorder{}
	live, _ := newTestNotifier(t, rec, nil)
	_, err = live.SendBatch(context.Background(), nil)
	assert.NoError(t, err)
	assert.Empty(t, rec.payloads)
}

func TestBuildEmbed_NoHistory(t *testing.T) {
	a := pricing.Alert{SKU: "B2", Name: "Thing", Price: decimal.NewFromInt(99)}
	e := buildEmbed(a, time.Now())

	assert.Equal(t, "Yes (no history)", e.Fields[2].Value)
	assert.Equal(t, "N/A", e.Fields[3].Value)
	assert.Equal(t, "N/A", e.Fields[8].Value)
	assert.Nil(t, e.Thumbnail)
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 6*time.Second, parseRetryAfter("5"))
	assert.Equal(t, 2*time.Second, parseRetryAfter("1.2"))
	assert.Equal(t, time.Duration(0), parseRetryAfter("Wed, 21 Oct 2015 07:28:00 GMT"))
	assert.Equal(t, time.Duration(0), parseRetryAfter(""))
}
