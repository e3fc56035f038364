package monitor

import (
	"fmt"
	"time"
)

// Result tracks the outcome of one monitoring cycle.
type Result struct {
	CycleID       string        `json:"cycle_id"`
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration_ns"`
	ItemsListed   int           `json:"items_listed"`
	Evaluated     int           `json:"evaluated"`
	AllTimeLows   int           `json:"all_time_lows"`
	Alerts        int           `json:"alerts"`
	Notified      int           `json:"notified"`
	HistoryErrors int           `json:"history_errors"`
	InvalidItems  int           `json:"invalid_items"`
	PrunedPoints  int           `json:"pruned_points"`
	PrunedSKUs    int           `json:"pruned_skus"`
	TrackedSKUs   int           `json:"tracked_skus"`
	LedgerEntries int           `json:"ledger_entries"`
	OverCapacity  bool          `json:"over_capacity"`
	Persisted     bool          `json:"persisted"`
	Abandoned     bool          `json:"abandoned"`
	Errors        []string      `json:"errors,omitempty"`
}

// Summary returns a human-readable summary.
func (r *Result) Summary() string {
	return fmt.Sprintf(
		"listed=%d evaluated=%d lows=%d alerts=%d notified=%d history_errors=%d invalid=%d tracked=%d dur=%s",
		r.ItemsListed, r.Evaluated, r.AllTimeLows, r.Alerts, r.Notified,
		r.HistoryErrors, r.InvalidItems, r.TrackedSKUs,
		r.Duration.Round(time.Millisecond))
}

// OK reports whether the cycle finished without any recorded error.
func (r *Result) OK() bool {
	return !r.Abandoned && len(r.Errors) == 0
}

func (r *Result) fail(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}
