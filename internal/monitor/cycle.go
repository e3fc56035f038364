// Package monitor runs batch monitoring cycles over the drops feed and
// schedules them.
//
// Cycle: list drops → per item [history (throttled) → evaluate] → aggregate
// qualifying alerts → notify once → persist.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/albapepper/dropwatch/internal/notifications"
	"github.com/albapepper/dropwatch/internal/pricing"
	"github.com/albapepper/dropwatch/internal/provider/stocktrack"
	"github.com/albapepper/dropwatch/internal/state"
)

// ErrCycleInProgress is returned when a cycle is requested while another is
// still running.
var ErrCycleInProgress = errors.New("monitor: cycle already in progress")

// Source is the remote data source.
type Source interface {
	DropsCount(ctx context.Context) (int, error)
	DropsList(ctx context.Context, count int) ([]stocktrack.Item, error)
	History(ctx context.Context, sku string) ([]pricing.RemotePoint, error)
}

// Options tunes the coordinator. Zero values fall back to package defaults.
type Options struct {
	MaxHistoryDays int
	MaxSKUEntries  int
	Clock          func() time.Time
}

// Coordinator owns the price store and ledger and runs one cycle at a time.
type Coordinator struct {
	mu       sync.Mutex
	source   Source
	notifier notifications.Notifier
	backend  state.Backend
	store    *pricing.Store
	ledger   *pricing.Ledger
	eval     *pricing.Evaluator
	opts     Options
	logger   *slog.Logger

	lastMu  sync.RWMutex
	last    *Result
	running bool
	cycles  int
}

// NewCoordinator wires a coordinator over loaded state.
func NewCoordinator(
	source Source,
	notifier notifications.Notifier,
	backend state.Backend,
	store *pricing.Store,
	ledger *pricing.Ledger,
	opts Options,
	logger *slog.Logger,
) *Coordinator {
	if opts.MaxHistoryDays <= 0 {
		opts.MaxHistoryDays = pricing.DefaultMaxHistoryDays
	}
	if opts.MaxSKUEntries < 0 {
		opts.MaxSKUEntries = pricing.DefaultMaxSKUEntries
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	eval := pricing.NewEvaluator(store, ledger, opts.MaxHistoryDays)
	eval.Clock = opts.Clock

	return &Coordinator{
		source:   source,
		notifier: notifier,
		backend:  backend,
		store:    store,
		ledger:   ledger,
		eval:     eval,
		opts:     opts,
		logger:   logger,
	}
}

// RunCycle executes one full cycle.
//
// A failure to fetch the drops list aborts the cycle with nothing mutated.
// Per-item failures skip that item only and leave its series untouched.
// Series of SKUs no longer in the feed are aged out at the end. Qualifying
// alerts go out in one notify step, and state is persisted afterwards
// whenever the stores changed, whatever the notify outcome. Cancelling ctx
// mid-cycle abandons it without notifying or persisting.
func (c *Coordinator) RunCycle(ctx context.Context) (Result, error) {
	if !c.mu.TryLock() {
		return Result{}, ErrCycleInProgress
	}
	defer c.mu.Unlock()

	result := Result{CycleID: uuid.NewString(), StartedAt: c.opts.Clock().UTC()}
	logger := c.logger.With("cycle_id", result.CycleID)
	start := time.Now()
	c.setRunning(true)

	err := c.runCycle(ctx, logger, &result)

	result.Duration = time.Since(start)
	result.TrackedSKUs = c.store.CountTrackedItems()
	result.LedgerEntries = c.ledger.Len()
	c.finish(result)

	switch {
	case result.Abandoned:
		logger.Warn("Cycle abandoned", "summary", result.Summary(), "error", err)
	case err != nil:
		logger.Error("Cycle failed", "summary", result.Summary(), "error", err)
	default:
		logger.Info("Cycle complete", "summary", result.Summary())
	}
	return result, err
}

func (c *Coordinator) runCycle(ctx context.Context, logger *slog.Logger, result *Result) error {
	// FETCH_LIST
	count, err := c.source.DropsCount(ctx)
	if err != nil {
		result.fail("drops count: %v", err)
		return fmt.Errorf("fetch drops count: %w", err)
	}
	items, err := c.source.DropsList(ctx, count)
	if err != nil {
		result.fail("drops list: %v", err)
		return fmt.Errorf("fetch drops list: %w", err)
	}
	result.ItemsListed = len(items)
	logger.Info("Drops list fetched", "total_count", count, "items", len(items))

	// Per item: FETCH_HISTORY → EVALUATE
	var alerts []pricing.Alert
	listed := make(map[string]bool, len(items))
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			result.Abandoned = true
			return err
		}
		if item.SKU == "" {
			result.InvalidItems++
			logger.Warn("Skipping item without SKU", "position", i)
			continue
		}
		listed[item.SKU] = true
		if !item.PriceValid {
			result.InvalidItems++
			logger.Warn("Skipping item with invalid price", "sku", item.SKU)
			continue
		}

		remote, err := c.source.History(ctx, item.SKU)
		if err != nil {
			if ctx.Err() != nil {
				result.Abandoned = true
				return ctx.Err()
			}
			result.HistoryErrors++
			logger.Warn("History fetch failed, skipping item", "sku", item.SKU, "error", err)
			continue
		}

		d := c.eval.Evaluate(item.Observation(), remote)
		result.Evaluated++
		if d.AllTimeLow {
			result.AllTimeLows++
		}
		if d.NotificationWorthy {
			alerts = append(alerts, d.Details)
			logger.Info("Price drop qualifies",
				"sku", item.SKU, "price", item.Price.StringFixed(2), "reason", d.Details.Reason)
		} else {
			logger.Debug("Item evaluated",
				"sku", item.SKU, "price", item.Price.StringFixed(2), "all_time_low", d.AllTimeLow)
		}

		if (i+1)%50 == 0 {
			logger.Info("Cycle progress", "processed", i+1, "total", len(items))
		}
	}
	result.Alerts = len(alerts)

	// Listed items were pruned by Evaluate or skipped on purpose.
	result.PrunedPoints, result.PrunedSKUs = c.store.PruneAll(c.opts.Clock().UTC(), c.opts.MaxHistoryDays, listed)
	if c.store.OverCapacity(c.opts.MaxSKUEntries) {
		result.OverCapacity = true
		logger.Warn("Tracked SKUs exceed configured maximum",
			"tracked", c.store.CountTrackedItems(), "max", c.opts.MaxSKUEntries)
	}

	// NOTIFY
	if len(alerts) > 0 && c.notifier != nil {
		sent, err := c.notifier.SendBatch(ctx, alerts)
		result.Notified = sent
		if err != nil {
			result.fail("notify: %v", err)
			logger.Error("Notification failed", "alerts", len(alerts), "delivered", sent, "error", err)
		}
	}
	if err := ctx.Err(); err != nil {
		result.Abandoned = true
		return err
	}

	// PERSIST
	if result.Evaluated == 0 && result.PrunedPoints == 0 && result.PrunedSKUs == 0 {
		return nil
	}
	if err := c.backend.Save(ctx, c.store, c.ledger); err != nil {
		result.fail("persist: %v", err)
		return fmt.Errorf("persist state: %w", err)
	}
	result.Persisted = true
	return nil
}

// --------------------------------------------------------------------------
// Status snapshot
// --------------------------------------------------------------------------

// Status is a copy of the coordinator's externally visible state.
type Status struct {
	Running bool    `json:"running"`
	Cycles  int     `json:"cycles"`
	Last    *Result `json:"last_cycle,omitempty"`
}

// Status returns a snapshot that is safe to read while a cycle runs.
func (c *Coordinator) Status() Status {
	c.lastMu.RLock()
	defer c.lastMu.RUnlock()
	s := Status{Running: c.running, Cycles: c.cycles}
	if c.last != nil {
		r := *c.last
		r.Errors = append([]string(nil), c.last.Errors...)
		s.Last = &r
	}
	return s
}

func (c *Coordinator) setRunning(v bool) {
	c.lastMu.Lock()
	c.running = v
	c.lastMu.Unlock()
}

func (c *Coordinator) finish(r Result) {
	c.lastMu.Lock()
	c.running = false
	c.cycles++
	c.last = &r
	c.lastMu.Unlock()
}
