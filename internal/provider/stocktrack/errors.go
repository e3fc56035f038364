package stocktrack

import "fmt"

// Fetch operations, used in FetchError and log attributes.
const (
	OpDropsCount = "drops_count"
	OpDropsList  = "drops_list"
	OpHistory    = "history"
)

// FetchError is a transient failure talking to the data source: transport
// errors, non-200 responses and undecodable bodies.
type FetchError struct {
	Op         string
	SKU        string // set for history fetches
	StatusCode int    // zero when no response was received
	Err        error
}

func (e *FetchError) Error() string {
	if e.SKU != "" {
		return fmt.Sprintf("stocktrack %s (sku %s): %v", e.Op, e.SKU, e.Err)
	}
	return fmt.Sprintf("stocktrack %s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
