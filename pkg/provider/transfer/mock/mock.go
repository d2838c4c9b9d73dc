// Package mock provides a test double for the transfer package interface.
package mock

import (
	"context"
	"sync"

	"github.com/vaanilabs/vaani/pkg/provider/transfer"
)

// TransferCall records a single invocation of Client.Transfer.
type TransferCall struct {
	CallID      string
	AgentNumber string
}

// Client is a mock implementation of transfer.Client. Thread-safe.
type Client struct {
	mu sync.Mutex

	// Err, if non-nil, is returned from every Transfer call with a failed
	// Outcome.
	Err error

	// TransferCalls records every call to Transfer.
	TransferCalls []TransferCall
}

// Compile-time assertion that Client implements transfer.Client.
var _ transfer.Client = (*Client)(nil)

// Transfer records the call and returns a successful outcome unless Err is
// set.
func (c *Client) Transfer(_ context.Context, callID, agentNumber string) (transfer.Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.TransferCalls = append(c.TransferCalls, TransferCall{CallID: callID, AgentNumber: agentNumber})
	if c.Err != nil {
		return transfer.Outcome{Success: false}, c.Err
	}
	return transfer.Outcome{Success: true, ProviderRef: "mock-" + callID}, nil
}

// Name identifies the mock in logs.
func (c *Client) Name() string { return "mock-transfer" }

// Calls returns a snapshot of recorded calls. Thread-safe.
func (c *Client) Calls() []TransferCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]TransferCall, len(c.TransferCalls))
	copy(out, c.TransferCalls)
	return out
}
