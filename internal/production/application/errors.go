package application

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrTaskNotFound  = errors.New("production task not found")
	ErrInvalidDelta  = errors.New("completed quantity delta must be greater than zero")
	ErrExceedsTotal  = errors.New("completed quantity cannot exceed total quantity")
	ErrInvalidStatus = errors.New("invalid task status")
	ErrEmptyUpdate   = errors.New("no fields to update")

	// ErrAlreadySynced is returned by the transactional flag flip when a
	// concurrent sync of the same order committed first.
	ErrAlreadySynced = errors.New("order already synced into production")
)

// SyncError wraps a failed synchronization transaction with the order it
// belonged to. The whole transaction has been rolled back, so the caller
// may retry; a retry after a successful run is a no-op thanks to the
// productionSynced guard.
type SyncError struct {
	OrderID int64
	Err     error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("production sync failed for order %d: %v", e.OrderID, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }
