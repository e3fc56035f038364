// Package pricing holds the price-history evaluation and deduplication engine.
//
// Pipeline per item: remote history → all-time-low check → ledger floor check
// → record alert → append observation → prune by age.
// The Store and Ledger are owned by the cycle coordinator; nothing else reads
// or writes them while a cycle is running.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	DefaultMaxHistoryDays = 30
	DefaultMaxSKUEntries  = 1000

	day = 24 * time.Hour
)

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Point is a single locally observed price for an item.
type Point struct {
	Timestamp time.Time
	Price     decimal.Decimal
}

// RemotePoint is one entry of the data source's historical series.
// Date is informational only and may be zero when the source omits it.
type RemotePoint struct {
	Date  time.Time
	Price decimal.Decimal
}

// Observation is the current state of an item as listed by the drops feed.
type Observation struct {
	SKU      string
	Name     string
	Price    decimal.Decimal
	Link     string
	ImageURL string
	InStock  bool
}

// Alert describes an item that qualified for notification in a cycle.
type Alert struct {
	SKU           string
	Name          string
	Price         decimal.Decimal
	Link          string
	ImageURL      string
	InStock       bool
	RemoteMin     *decimal.Decimal // nil when the remote history was empty
	HistoryLength int
	Stats         Stats
	Reason        string
}

// Decision is the evaluator's verdict for one observation.
type Decision struct {
	AllTimeLow         bool
	NotificationWorthy bool
	Details            Alert
}
