package notifications

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/albapepper/dropwatch/internal/pricing"
)

// buildEmbed renders one alert as a Discord embed.
func buildEmbed(a pricing.Alert, now time.Time) embed {
	name := a.Name
	if name == "" {
		name = "N/A"
	}
	atl := "Yes"
	if a.RemoteMin == nil {
		atl = "Yes (no history)"
	}
	st := a.Stats

	e := embed{
		Title: fmt.Sprintf("🚨 Price Drop: %s", name),
		URL:   a.Link,
		Color: embedColorRed,
		Fields: []embedField{
			{Name: "SKU", Value: orNA(a.SKU), Inline: true},
			{Name: "Current Price", Value: "$" + a.Price.StringFixed(2), Inline: true},
			{Name: "All-Time Low", Value: atl, Inline: true},
			{Name: "Lowest Hist.", Value: money(a.RemoteMin), Inline: true},
			{Name: "Highest Hist.", Value: money(st.Highest), Inline: true},
			{Name: "Average Hist.", Value: money(st.Average), Inline: true},
			{Name: "Diff (Highest-Now)", Value: money(st.HighestToCurrent), Inline: true},
			{Name: "Diff (2ndLow-Now)", Value: money(st.SecondLowestDiff), Inline: true},
			{Name: "Discount vs Avg.", Value: percent(st.DiscountVsAverage), Inline: true},
			{Name: "History Points", Value: fmt.Sprintf("%d", a.HistoryLength), Inline: true},
			{Name: "In Stock", Value: yesNo(a.InStock), Inline: true},
			{Name: "Alert Reason", Value: orNA(a.Reason), Inline: false},
		},
		Footer: embedFooter{Text: fmt.Sprintf("%s | %s", footerText, now.Format("2006-01-02 15:04:05"))},
	}
	if a.ImageURL != "" {
		e.Thumbnail = &embedPicture{URL: a.ImageURL}
	}
	return e
}

// chunkEmbeds splits embeds into groups Discord accepts in one message.
func chunkEmbeds(embeds []embed, size int) [][]embed {
	if size < 1 {
		size = maxEmbedsPerPost
	}
	var chunks [][]embed
	for len(embeds) > 0 {
		n := min(size, len(embeds))
		chunks = append(chunks, embeds[:n])
		embeds = embeds[n:]
	}
	return chunks
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

func money(d *decimal.Decimal) string {
	if d == nil {
		return "N/A"
	}
	return "$" + d.StringFixed(2)
}

func percent(d *decimal.Decimal) string {
	if d == nil {
		return "N/A"
	}
	return d.StringFixed(2) + "%"
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
