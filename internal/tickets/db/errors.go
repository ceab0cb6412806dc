package db

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrBusinessTypeNotFound means the business type id does not reference an
	// existing row. The surrounding transaction is rolled back in full.
	ErrBusinessTypeNotFound = errors.New("business type does not exist")

	// ErrCounterNotFound means the counter number does not resolve to a
	// counter. Raised mid-transaction by AdvanceCall; the sequence increment
	// already applied inside the transaction is rolled back with it.
	ErrCounterNotFound = errors.New("counter does not exist")

	// ErrConflict is a lock timeout or busy database. The whole operation can
	// be retried from the top; never retry just the write half.
	ErrConflict = errors.New("storage conflict, retry the operation")
)

// mapStorageErr converts driver-level lock/timeout failures into ErrConflict
// so callers can distinguish retryable contention from fatal storage errors.
func mapStorageErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrConflict
	}
	msg := err.Error()
	if strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY") {
		return ErrConflict
	}
	return err
}
