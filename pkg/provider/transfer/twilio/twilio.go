// Package twilio provides a transfer client backed by the Twilio REST API.
//
// Bridging redirects the live call leg with an inline TwiML <Dial> to the
// agent number. The request is idempotent per call id: the idempotency key is
// a UUIDv5 derived from the call id, and outcomes are cached so a duplicate
// transfer request for the same call returns the first result without
// re-dialing the agent.
package twilio

import (
	"context"
	"errors"
	"fmt"
	"html"
	"sync"
	"time"

	"github.com/google/uuid"
	twiliosdk "github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/vaanilabs/vaani/pkg/provider/transfer"
)

// transferNamespace is the UUIDv5 namespace for idempotency keys. Fixed so
// key derivation is stable across processes and restarts.
var transferNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// defaultTimeout bounds one bridge request.
const defaultTimeout = 5 * time.Second

// Compile-time assertion that Client implements transfer.Client.
var _ transfer.Client = (*Client)(nil)

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout. Defaults to 5 s.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// api is the slice of the Twilio SDK the client uses; tests substitute it.
type api interface {
	UpdateCall(sid string, params *twilioapi.UpdateCallParams) (*twilioapi.ApiV2010Call, error)
}

// Client implements transfer.Client against the Twilio calls API. Safe for
// concurrent use.
type Client struct {
	api     api
	timeout time.Duration

	mu   sync.Mutex
	done map[string]transfer.Outcome
}

// New creates a Client with the given Twilio credentials.
func New(accountSID, authToken string, opts ...Option) (*Client, error) {
	if accountSID == "" || authToken == "" {
		return nil, errors.New("twilio: accountSID and authToken must not be empty")
	}
	c := &Client{
		timeout: defaultTimeout,
		done:    make(map[string]transfer.Outcome),
	}
	for _, o := range opts {
		o(c)
	}

	base := &twilioclient.Client{
		Credentials: twilioclient.NewCredentials(accountSID, authToken),
	}
	base.SetTimeout(c.timeout)
	rest := twiliosdk.NewRestClientWithParams(twiliosdk.ClientParams{
		Username: accountSID,
		Password: authToken,
		Client:   base,
	})
	c.api = rest.Api
	return c, nil
}

// newWithAPI is the test constructor.
func newWithAPI(a api) *Client {
	return &Client{api: a, timeout: defaultTimeout, done: make(map[string]transfer.Outcome)}
}

// IdempotencyKey derives the stable UUIDv5 key for a call id.
func IdempotencyKey(callID string) string {
	return uuid.NewSHA1(transferNamespace, []byte(callID)).String()
}

// Transfer implements transfer.Client. The live call identified by callID is
// redirected to dial agentNumber. Duplicate calls for the same callID return
// the cached outcome.
func (c *Client) Transfer(ctx context.Context, callID, agentNumber string) (transfer.Outcome, error) {
	if callID == "" || agentNumber == "" {
		return transfer.Outcome{}, errors.New("twilio: callID and agentNumber must not be empty")
	}

	c.mu.Lock()
	if out, ok := c.done[callID]; ok {
		c.mu.Unlock()
		if !out.Success {
			return out, transfer.ErrFailed
		}
		return out, nil
	}
	c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return transfer.Outcome{}, err
	}

	key := IdempotencyKey(callID)
	twiml := fmt.Sprintf("<Response><Dial>%s</Dial></Response>", html.EscapeString(agentNumber))
	params := &twilioapi.UpdateCallParams{}
	params.SetTwiml(twiml)

	_, err := c.api.UpdateCall(callID, params)

	out := transfer.Outcome{Success: err == nil, ProviderRef: key}
	c.mu.Lock()
	c.done[callID] = out
	c.mu.Unlock()

	if err != nil {
		return out, fmt.Errorf("%w: %v", transfer.ErrFailed, err)
	}
	return out, nil
}

// Name identifies the provider in logs and metrics.
func (c *Client) Name() string { return "twilio" }
