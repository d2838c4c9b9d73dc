// Package transfer defines the capability that bridges a live call leg to a
// human agent's phone number.
package transfer

import (
	"context"
	"errors"
)

// ErrFailed indicates the provider refused the bridge or timed out. The
// dialog loop detours through the goodbye prompt and ends the call.
var ErrFailed = errors.New("transfer: provider refused or timed out")

// Outcome reports the result of a transfer attempt.
type Outcome struct {
	// Success is true when the provider accepted the bridge request.
	Success bool

	// ProviderRef is an opaque reference for correlation with provider logs
	// (for Twilio, the idempotency key derived from the call id).
	ProviderRef string
}

// Client requests a live-call bridge from the telephony provider.
type Client interface {
	// Transfer bridges the call identified by callID to agentNumber (E.164).
	// The operation is idempotent per callID: a repeated call returns the
	// recorded outcome of the first attempt instead of re-dialing.
	Transfer(ctx context.Context, callID, agentNumber string) (Outcome, error)

	// Name identifies the provider in logs and metrics.
	Name() string
}
