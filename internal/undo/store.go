package undo

import (
	"errors"
	"time"
)

// ErrNoOperation is returned by Get when a project's slot is empty.
var ErrNoOperation = errors.New("no operation to undo")

// Store holds the most recent invertible operation per project. One slot
// per project: recording overwrites, a successful undo clears.
type Store interface {
	// Record replaces the project's slot with op.
	Record(projectID uint, op Operation) error

	// Get returns the recorded operation, or ErrNoOperation if the slot
	// is empty. The slot is left in place; callers clear it only after
	// the inverse has been applied successfully.
	Get(projectID uint) (Operation, error)

	// Clear empties the project's slot. Clearing an empty slot is a no-op.
	Clear(projectID uint) error

	// Sweep drops slots recorded before cutoff and reports how many were
	// removed.
	Sweep(cutoff time.Time) (int, error)
}
