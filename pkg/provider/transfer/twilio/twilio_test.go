package twilio

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/vaanilabs/vaani/pkg/provider/transfer"
)

// fakeAPI records UpdateCall invocations and returns a scripted error.
type fakeAPI struct {
	mu    sync.Mutex
	calls []string
	twiml []string
	err   error
}

func (f *fakeAPI) UpdateCall(sid string, params *twilioapi.UpdateCallParams) (*twilioapi.ApiV2010Call, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sid)
	if params.Twiml != nil {
		f.twiml = append(f.twiml, *params.Twiml)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &twilioapi.ApiV2010Call{}, nil
}

func TestTransferRedirectsToAgent(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	c := newWithAPI(api)

	out, err := c.Transfer(context.Background(), "CA123", "+919876543210")
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if !out.Success {
		t.Error("outcome not successful")
	}
	if len(api.calls) != 1 || api.calls[0] != "CA123" {
		t.Errorf("calls = %v", api.calls)
	}
	if !strings.Contains(api.twiml[0], "<Dial>+919876543210</Dial>") {
		t.Errorf("twiml = %q", api.twiml[0])
	}
}

func TestTransferIdempotentPerCallID(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	c := newWithAPI(api)

	first, err := c.Transfer(context.Background(), "CA123", "+919876543210")
	if err != nil {
		t.Fatalf("first Transfer: %v", err)
	}
	second, err := c.Transfer(context.Background(), "CA123", "+919876543210")
	if err != nil {
		t.Fatalf("second Transfer: %v", err)
	}
	if first != second {
		t.Errorf("outcomes differ: %+v vs %+v", first, second)
	}
	if len(api.calls) != 1 {
		t.Errorf("provider called %d times, want 1", len(api.calls))
	}
}

func TestTransferFailure(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{err: errors.New("status 400")}
	c := newWithAPI(api)

	out, err := c.Transfer(context.Background(), "CA456", "+919876543210")
	if !errors.Is(err, transfer.ErrFailed) {
		t.Fatalf("err = %v, want ErrFailed", err)
	}
	if out.Success {
		t.Error("failed transfer reported success")
	}

	// Failure outcome is cached too; the agent is not re-dialed.
	if _, err := c.Transfer(context.Background(), "CA456", "+919876543210"); !errors.Is(err, transfer.ErrFailed) {
		t.Errorf("repeat err = %v, want ErrFailed", err)
	}
	if len(api.calls) != 1 {
		t.Errorf("provider called %d times, want 1", len(api.calls))
	}
}

func TestIdempotencyKeyStable(t *testing.T) {
	t.Parallel()

	k1 := IdempotencyKey("CA123")
	k2 := IdempotencyKey("CA123")
	k3 := IdempotencyKey("CA124")
	if k1 != k2 {
		t.Errorf("same call id gave different keys: %s vs %s", k1, k2)
	}
	if k1 == k3 {
		t.Error("different call ids gave the same key")
	}
}

func TestNewValidatesCredentials(t *testing.T) {
	t.Parallel()

	if _, err := New("", "token"); err == nil {
		t.Error("New with empty SID succeeded")
	}
	if _, err := New("AC123", ""); err == nil {
		t.Error("New with empty token succeeded")
	}
}
