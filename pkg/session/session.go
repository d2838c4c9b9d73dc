// Package session implements the hand-off point between the dial-out path
// and the call engine.
//
// The dial-out path writes a customer snapshot keyed by the provider call id
// just before (or while) the provider dials; the engine reads it when the
// stream's start envelope arrives. The store is eventually consistent, so the
// engine polls for a grace period before declaring the context missing (that
// policy lives in the call package, not here).
package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by [Store.Get] when no snapshot exists for the
// call id (not yet written, expired, or deleted).
var ErrNotFound = errors.New("session: snapshot not found")

// Customer is the read-only context snapshot for one call. The engine never
// mutates it.
type Customer struct {
	Name              string `json:"name"`
	Phone             string `json:"phone"`
	State             string `json:"state"`
	LoanID            string `json:"loan_id"`
	OutstandingAmount string `json:"outstanding_amount"`
	DueDate           string `json:"due_date"`
	PreferredLanguage string `json:"preferred_language,omitempty"`
}

// Store is the key-value contract between the dial-out path and the engine.
type Store interface {
	// Put writes the snapshot under callID with the given TTL.
	Put(ctx context.Context, callID string, customer Customer, ttl time.Duration) error

	// Get returns the snapshot for callID or [ErrNotFound].
	Get(ctx context.Context, callID string) (Customer, error)

	// Delete removes the snapshot. Deleting a missing key is not an error.
	Delete(ctx context.Context, callID string) error
}
