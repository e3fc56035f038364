package stocktrack

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/albapepper/dropwatch/internal/pricing"
	"github.com/albapepper/dropwatch/internal/provider"
)

// Item is one entry of the drops list.
type Item struct {
	SKU        string
	Name       string
	Price      decimal.Decimal
	PriceValid bool // false when NewPrice was missing or unparseable
	Link       string
	ImageURL   string
	InStock    bool
}

// Observation converts the item into the evaluator's input.
func (it Item) Observation() pricing.Observation {
	return pricing.Observation{
		SKU:      it.SKU,
		Name:     it.Name,
		Price:    it.Price,
		Link:     it.Link,
		ImageURL: it.ImageURL,
		InStock:  it.InStock,
	}
}

type dropsResponse struct {
	TotalCount *int      `json:"total_count"`
	Data       []rawItem `json:"data"`
}

type rawItem struct {
	Sku      json.RawMessage `json:"Sku"`
	Name     string          `json:"Name"`
	NewPrice json.RawMessage `json:"NewPrice"`
	Href     string          `json:"Href"`
	Image    string          `json:"Image"`
	InStock  json.RawMessage `json:"InStock"`
}

type historyResponse struct {
	FirstParty []rawPoint `json:"1P"`
}

type rawPoint struct {
	X json.RawMessage `json:"x"`
	Y json.RawMessage `json:"y"`
}

func dropsParams(count int) url.Values {
	return url.Values{
		"t":        {"today"},
		"oss":      {"false"},
		"posStart": {"0"},
		"count":    {strconv.Itoa(count)},
	}
}

// DropsCount returns the number of items currently listed as dropped.
func (c *Client) DropsCount(ctx context.Context) (int, error) {
	body, err := c.get(ctx, OpDropsCount, "", c.cfg.DropsURL, dropsParams(0))
	if err != nil {
		return 0, err
	}
	var resp dropsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, &FetchError{Op: OpDropsCount, Err: fmt.Errorf("decode response: %w", err)}
	}
	if resp.TotalCount == nil {
		return 0, &FetchError{Op: OpDropsCount, Err: fmt.Errorf("response has no total_count")}
	}
	if *resp.TotalCount < 0 {
		return 0, &FetchError{Op: OpDropsCount, Err: fmt.Errorf("negative total_count %d", *resp.TotalCount)}
	}
	return *resp.TotalCount, nil
}

// DropsList fetches count items from the drops feed, in feed order.
func (c *Client) DropsList(ctx context.Context, count int) ([]Item, error) {
	if count <= 0 {
		return nil, nil
	}
	c.logger.Info("Fetching drops list", "count", count)
	body, err := c.get(ctx, OpDropsList, "", c.cfg.DropsURL, dropsParams(count))
	if err != nil {
		return nil, err
	}
	var resp dropsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &FetchError{Op: OpDropsList, Err: fmt.Errorf("decode response: %w", err)}
	}
	if resp.Data == nil {
		return nil, &FetchError{Op: OpDropsList, Err: fmt.Errorf("response has no data array")}
	}

	items := make([]Item, 0, len(resp.Data))
	for _, raw := range resp.Data {
		price, ok := provider.ExtractPriceJSON(raw.NewPrice)
		items = append(items, Item{
			SKU:        rawString(raw.Sku),
			Name:       raw.Name,
			Price:      price,
			PriceValid: ok && price.IsPositive(),
			Link:       c.productLink(raw.Href),
			ImageURL:   raw.Image,
			InStock:    truthy(raw.InStock),
		})
	}
	return items, nil
}

// History fetches the remote price series for sku. Calls are throttled;
// a cached body younger than the cache TTL is reused without a request.
func (c *Client) History(ctx context.Context, sku string) ([]pricing.RemotePoint, error) {
	body, _, cached := c.history.Get(sku)
	if cached {
		c.logger.Debug("Using cached history", "sku", sku)
	} else {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &FetchError{Op: OpHistory, SKU: sku, Err: fmt.Errorf("rate limit wait: %w", err)}
		}
		var err error
		body, err = c.get(ctx, OpHistory, sku, c.cfg.HistoryURL, url.Values{"sku": {sku}})
		if err != nil {
			return nil, err
		}
	}

	points, err := decodeHistory(body)
	if err != nil {
		return nil, &FetchError{Op: OpHistory, SKU: sku, Err: err}
	}
	if !cached {
		c.history.Set(sku, body)
	}
	return points, nil
}

func decodeHistory(body []byte) ([]pricing.RemotePoint, error) {
	var resp historyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	points := make([]pricing.RemotePoint, 0, len(resp.FirstParty))
	for _, p := range resp.FirstParty {
		price, ok := provider.ExtractPriceJSON(p.Y)
		if !ok {
			continue
		}
		points = append(points, pricing.RemotePoint{Date: parseDate(p.X), Price: price})
	}
	return points, nil
}

func (c *Client) productLink(href string) string {
	if href == "" || strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return strings.TrimRight(c.cfg.ProductBaseURL, "/") + "/" + strings.TrimLeft(href, "/")
}

// rawString returns a JSON string's value, or the literal text of any other
// scalar (the feed sometimes sends numeric SKUs).
func rawString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return string(raw)
}

func truthy(raw json.RawMessage) bool {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t > 0
	case string:
		b, err := strconv.ParseBool(t)
		if err == nil {
			return b
		}
		n, err := strconv.ParseFloat(t, 64)
		return err == nil && n > 0
	default:
		return false
	}
}

// parseDate accepts epoch milliseconds or an ISO-like date string.
func parseDate(raw json.RawMessage) time.Time {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return time.Time{}
	}
	switch t := v.(type) {
	case float64:
		return time.UnixMilli(int64(t)).UTC()
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
			if ts, err := time.Parse(layout, t); err == nil {
				return ts.UTC()
			}
		}
	}
	return time.Time{}
}
