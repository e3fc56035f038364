package pricing

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// Ledger maps a SKU to the price at which it was last notified.
// An entry only ever moves down; there is no age-based expiry.
type Ledger struct {
	mu   sync.Mutex
	last map[string]decimal.Decimal
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{last: make(map[string]decimal.Decimal)}
}

// ShouldNotify reports whether candidate is below the recorded floor for sku,
// or whether sku has never been notified.
func (l *Ledger) ShouldNotify(sku string, candidate decimal.Decimal) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.shouldNotify(sku, candidate)
}

// Record overwrites the floor for sku.
func (l *Ledger) Record(sku string, price decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.last[sku] = price
}

// CheckAndRecord performs ShouldNotify and Record as one step and reports
// whether the floor was lowered.
func (l *Ledger) CheckAndRecord(sku string, candidate decimal.Decimal) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.shouldNotify(sku, candidate) {
		return false
	}
	l.last[sku] = candidate
	return true
}

// LastNotified returns the floor for sku, if any.
func (l *Ledger) LastNotified(sku string) (decimal.Decimal, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.last[sku]
	return p, ok
}

// Len returns the number of SKUs with a recorded floor.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.last)
}

// Entries returns a copy of the ledger contents.
func (l *Ledger) Entries() map[string]decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]decimal.Decimal, len(l.last))
	for k, v := range l.last {
		out[k] = v
	}
	return out
}

// SKUs returns ledger keys in lexical order.
func (l *Ledger) SKUs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	keys := make([]string, 0, len(l.last))
	for k := range l.last {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (l *Ledger) shouldNotify(sku string, candidate decimal.Decimal) bool {
	prev, ok := l.last[sku]
	return !ok || candidate.LessThan(prev)
}
