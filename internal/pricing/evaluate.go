package pricing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Evaluator decides whether an observation is a new notification-worthy
// all-time low and updates the store and ledger accordingly.
type Evaluator struct {
	Store          *Store
	Ledger         *Ledger
	MaxHistoryDays int
	Clock          func() time.Time
}

// NewEvaluator creates an evaluator over the given stores using wall-clock time.
func NewEvaluator(store *Store, ledger *Ledger, maxHistoryDays int) *Evaluator {
	if maxHistoryDays <= 0 {
		maxHistoryDays = DefaultMaxHistoryDays
	}
	return &Evaluator{
		Store:          store,
		Ledger:         ledger,
		MaxHistoryDays: maxHistoryDays,
		Clock:          time.Now,
	}
}

// Evaluate runs the low-detection rules for one item.
//
// An empty remote history counts as an all-time low. A low qualifies only
// when the price is strictly below the item's last notified price. The
// observation is appended to the store whether or not it qualifies.
func (e *Evaluator) Evaluate(obs Observation, remote []RemotePoint) Decision {
	now := e.Clock().UTC()

	remoteMin, hasMin := RemoteMin(remote)
	atl := !hasMin || obs.Price.LessThanOrEqual(remoteMin)

	d := Decision{AllTimeLow: atl}
	if atl && e.Ledger.CheckAndRecord(obs.SKU, obs.Price) {
		d.NotificationWorthy = true
		d.Details = Alert{
			SKU:           obs.SKU,
			Name:          obs.Name,
			Price:         obs.Price,
			Link:          obs.Link,
			ImageURL:      obs.ImageURL,
			InStock:       obs.InStock,
			HistoryLength: len(remote),
			Stats:         ComputeStats(obs.Price, remote),
			Reason:        reason(obs, remoteMin, hasMin),
		}
		if hasMin {
			m := remoteMin
			d.Details.RemoteMin = &m
		}
	}

	e.Store.Append(obs.SKU, Point{Timestamp: now, Price: obs.Price})
	e.Store.Prune(obs.SKU, now, e.MaxHistoryDays)
	return d
}

func reason(obs Observation, remoteMin decimal.Decimal, hasMin bool) string {
	switch {
	case !hasMin:
		return "No price history available; trusting the drops feed."
	case obs.Price.LessThan(remoteMin):
		return fmt.Sprintf("New all-time low, below previous low of $%s.", remoteMin.StringFixed(2))
	default:
		return fmt.Sprintf("Matches all-time low of $%s.", remoteMin.StringFixed(2))
	}
}
