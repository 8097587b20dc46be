package ledger

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates the requested event or chain has no appended rows.
var ErrNotFound = errors.New("ledger event not found")

// ErrSequenceGap indicates an append arrived ahead of its predecessor. The
// append worker treats it as transient and retries once the gap fills.
var ErrSequenceGap = errors.New("ledger append ahead of chain head")

// WriteError indicates an event could not be durably appended to its chain.
type WriteError struct {
	EntityType string
	EntityID   string
	Seq        int64
	Err        error
}

func (e WriteError) Error() string {
	return fmt.Sprintf("ledger append %s/%s seq %d: %v", e.EntityType, e.EntityID, e.Seq, e.Err)
}

func (e WriteError) Unwrap() error {
	return e.Err
}

// CorruptionError indicates a stored chain failed integrity replay: a hash
// no longer matches its recomputation, a link does not point at its
// predecessor, or positions are out of order.
type CorruptionError struct {
	EntityType string
	EntityID   string
	Seq        int64
	Reason     string
}

func (e CorruptionError) Error() string {
	return fmt.Sprintf("ledger chain %s/%s corrupt at seq %d: %s", e.EntityType, e.EntityID, e.Seq, e.Reason)
}
