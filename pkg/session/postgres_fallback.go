package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PhoneLookup is the secondary context source consulted when the key-value
// store never received a snapshot for a call id. It resolves the caller by
// normalized phone number from the relational customers table. The lookup is
// read-only and optional; deployments without a Postgres DSN run without it.
type PhoneLookup struct {
	pool *pgxpool.Pool
}

// NewPhoneLookup creates a PhoneLookup on the given pool.
func NewPhoneLookup(pool *pgxpool.Pool) *PhoneLookup {
	return &PhoneLookup{pool: pool}
}

// ByPhone returns the customer whose phone matches the E.164 normalization
// of phone, or [ErrNotFound].
func (l *PhoneLookup) ByPhone(ctx context.Context, phone string) (Customer, error) {
	normalized := NormalizePhone(phone)
	if normalized == "" {
		return Customer{}, ErrNotFound
	}

	const q = `
		SELECT name, phone, state, loan_id, outstanding_amount::text, due_date::text,
		       COALESCE(preferred_language, '')
		FROM customers
		WHERE phone = $1
		ORDER BY updated_at DESC
		LIMIT 1`

	var c Customer
	err := l.pool.QueryRow(ctx, q, normalized).Scan(
		&c.Name, &c.Phone, &c.State, &c.LoanID,
		&c.OutstandingAmount, &c.DueDate, &c.PreferredLanguage,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Customer{}, ErrNotFound
		}
		return Customer{}, fmt.Errorf("session: phone lookup: %w", err)
	}
	return c, nil
}

// Ping reports database reachability; wired into the readiness probe.
func (l *PhoneLookup) Ping(ctx context.Context) error {
	return l.pool.Ping(ctx)
}

// NormalizePhone canonicalizes an Indian phone number to E.164. Spaces,
// dashes, and parentheses are stripped; a bare 10-digit number gets the +91
// country code; a "0" trunk prefix is replaced. Returns "" when the input
// cannot be normalized.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' || r == '+' {
			b.WriteRune(r)
		}
	}
	p := b.String()

	switch {
	case strings.HasPrefix(p, "+") && len(p) >= 12:
		return p
	case strings.HasPrefix(p, "0") && len(p) == 11:
		return "+91" + p[1:]
	case len(p) == 10:
		return "+91" + p
	case strings.HasPrefix(p, "91") && len(p) == 12:
		return "+" + p
	}
	return ""
}
