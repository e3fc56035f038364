// Package state persists the price point store and notification ledger
// between cycles.
//
// The on-disk document is versioned JSON:
//
//	{"version":1,
//	 "price_history":{"<sku>":[{"timestamp":"<RFC3339>","price":"<decimal>"}]},
//	 "last_notified":{"<sku>":"<decimal>"}}
//
// Backends (file, Postgres) store the same document.
package state

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/albapepper/dropwatch/internal/pricing"
)

// Version is the only document version this build reads and writes.
const Version = 1

// Backend loads and saves both stores as one unit.
type Backend interface {
	Load(ctx context.Context) (*pricing.Store, *pricing.Ledger, error)
	Save(ctx context.Context, store *pricing.Store, ledger *pricing.Ledger) error
}

type document struct {
	Version      int                        `json:"version"`
	PriceHistory map[string][]pointRecord   `json:"price_history"`
	LastNotified map[string]decimal.Decimal `json:"last_notified"`
}

type pointRecord struct {
	Timestamp time.Time       `json:"timestamp"`
	Price     decimal.Decimal `json:"price"`
}

// Encode serializes both stores. Keys come out sorted, so equal state
// encodes to equal bytes.
func Encode(store *pricing.Store, ledger *pricing.Ledger) ([]byte, error) {
	doc := document{
		Version:      Version,
		PriceHistory: make(map[string][]pointRecord),
		LastNotified: ledger.Entries(),
	}
	for _, sku := range store.SKUs() {
		series := store.Series(sku)
		recs := make([]pointRecord, len(series))
		for i, p := range series {
			recs[i] = pointRecord{Timestamp: p.Timestamp.UTC(), Price: p.Price}
		}
		doc.PriceHistory[sku] = recs
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses a document produced by Encode. Anything malformed, including
// data trailing the document, or a version other than Version, is a
// *CorruptStateError.
func Decode(data []byte, source string) (*pricing.Store, *pricing.Ledger, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, &CorruptStateError{Source: source, Err: err}
	}
	if doc.Version != Version {
		return nil, nil, &CorruptStateError{
			Source: source,
			Err:    fmt.Errorf("unsupported version %d (want %d)", doc.Version, Version),
		}
	}

	store := pricing.NewStore()
	for sku, recs := range doc.PriceHistory {
		if sku == "" {
			return nil, nil, &CorruptStateError{Source: source, Err: fmt.Errorf("empty sku in price_history")}
		}
		pts := make([]pricing.Point, len(recs))
		for i, r := range recs {
			if r.Timestamp.IsZero() {
				return nil, nil, &CorruptStateError{
					Source: source,
					Err:    fmt.Errorf("sku %s point %d: missing timestamp", sku, i),
				}
			}
			pts[i] = pricing.Point{Timestamp: r.Timestamp.UTC(), Price: r.Price}
		}
		store.Replace(sku, pts)
	}

	ledger := pricing.NewLedger()
	for sku, price := range doc.LastNotified {
		ledger.Record(sku, price)
	}
	return store, ledger, nil
}
