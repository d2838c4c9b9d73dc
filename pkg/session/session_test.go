package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

var rajesh = Customer{
	Name:              "Rajesh Kumar",
	Phone:             "+919876543210",
	State:             "Uttar Pradesh",
	LoanID:            "LOAN123",
	OutstandingAmount: "45000",
	DueDate:           "2025-11-20",
}

func TestMemoryStorePutGetDelete(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Put(ctx, "CA1", rajesh, time.Hour); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Get(ctx, "CA1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != rajesh {
		t.Errorf("Get = %+v, want %+v", got, rajesh)
	}

	if err := s.Delete(ctx, "CA1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "CA1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Delete = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreMissingKey(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	if _, err := s.Get(context.Background(), "CA404"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) = %v, want ErrNotFound", err)
	}
	// Deleting a missing key is not an error.
	if err := s.Delete(context.Background(), "CA404"); err != nil {
		t.Errorf("Delete(missing) = %v", err)
	}
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Put(ctx, "CA2", rajesh, 10*time.Millisecond); err != nil {
		t.Fatalf("Put: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, err := s.Get(ctx, "CA2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after expiry = %v, want ErrNotFound", err)
	}
}

func TestNormalizePhone(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"+919876543210", "+919876543210"},
		{"9876543210", "+919876543210"},
		{"09876543210", "+919876543210"},
		{"919876543210", "+919876543210"},
		{"98765 43210", "+919876543210"},
		{"+91-98765-43210", "+919876543210"},
		{"12345", ""},
		{"", ""},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			if got := NormalizePhone(tc.in); got != tc.want {
				t.Errorf("NormalizePhone(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestRedisKeyPrefix(t *testing.T) {
	t.Parallel()

	s := NewRedisStore(nil)
	if got := s.key("CA1"); got != "vaani:call:CA1" {
		t.Errorf("key = %q, want vaani:call:CA1", got)
	}

	s = NewRedisStore(nil, WithPrefix("custom"))
	if got := s.key("CA1"); got != "custom:call:CA1" {
		t.Errorf("key = %q, want custom:call:CA1", got)
	}
}
