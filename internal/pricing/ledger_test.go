package pricing

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestLedger_ShouldNotify(t *testing.T) {
	tests := []struct {
		name      string
		floor     string // empty = no entry
		candidate string
		want      bool
	}{
		{"no entry", "", "45", true},
		{"strictly lower", "45", "44.99", true},
		{"equal", "45", "45.00", false},
		{"higher", "45", "46", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLedger()
			if tt.floor != "" {
				l.Record("A1", dec(tt.floor))
			}
			assert.Equal(t, tt.want, l.ShouldNotify("A1", dec(tt.candidate)))
		})
	}
}

func TestLedger_CheckAndRecordMonotonicFloor(t *testing.T) {
	l := NewLedger()

	sequence := []struct {
		price  string
		lowers bool
	}{
		{"100", true},
		{"100", false},
		{"120", false},
		{"90", true},
		{"95", false},
		{"90", false},
		{"10", true},
	}

	for _, step := range sequence {
		assert.Equal(t, step.lowers, l.CheckAndRecord("SKU", dec(step.price)), "price %s", step.price)
	}

	floor, ok := l.LastNotified("SKU")
	assert.True(t, ok)
	assert.True(t, floor.Equal(dec("10")))
}

func TestLedger_CheckAndRecordConcurrentSameKey(t *testing.T) {
	l := NewLedger()
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.CheckAndRecord("SKU", dec("10")) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins, "only one caller may claim the same floor")
}

func TestLedger_EntriesIsCopy(t *testing.T) {
	l := NewLedger()
	l.Record("B", dec("2"))
	l.Record("A", dec("1"))

	e := l.Entries()
	delete(e, "A")

	assert.Equal(t, 2, l.Len())
	assert.Equal(t, []string{"A", "B"}, l.SKUs())
}
