package state

import "fmt"

// CorruptStateError means persisted state exists but cannot be read.
// It is fatal at start-up; the operator must move the document away.
type CorruptStateError struct {
	Source string
	Err    error
}

func (e *CorruptStateError) Error() string {
	return fmt.Sprintf("corrupt state in %s: %v", e.Source, e.Err)
}

func (e *CorruptStateError) Unwrap() error { return e.Err }
