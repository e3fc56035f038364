// Package notifications delivers price-drop alerts to a Discord webhook.
//
// Pipeline: alerts for one cycle → embeds → chunks of at most 10 → POST with
// bounded exponential-backoff retry per chunk.
package notifications

import (
	"context"
	"time"

	"github.com/albapepper/dropwatch/internal/pricing"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	defaultUsername   = "StockTrack Price Monitor"
	defaultTimeout    = 10 * time.Second
	maxEmbedsPerPost  = 10 // Discord limit per message
	embedColorRed     = 15158332
	footerText        = "StockTrack Monitor"
	responseBodyLimit = 200
)

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Notifier sends every alert of one cycle as a single logical delivery and
// reports how many alerts actually went out.
type Notifier interface {
	SendBatch(ctx context.Context, alerts []pricing.Alert) (int, error)
}

// DiscordConfig configures the webhook sink.
type DiscordConfig struct {
	WebhookURL string
	Username   string
	AvatarURL  string
	Timeout    time.Duration
	Retry      RetryPolicy
}

type webhookPayload struct {
	Username  string  `json:"username,omitempty"`
	AvatarURL string  `json:"avatar_url,omitempty"`
	Embeds    []embed `json:"embeds"`
}

type embed struct {
	Title     string        `json:"title"`
	URL       string        `json:"url,omitempty"`
	Color     int           `json:"color"`
	Fields    []embedField  `json:"fields"`
	Footer    embedFooter   `json:"footer"`
	Thumbnail *embedPicture `json:"thumbnail,omitempty"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type embedFooter struct {
	Text string `json:"text"`
}

type embedPicture struct {
	URL string `json:"url"`
}
