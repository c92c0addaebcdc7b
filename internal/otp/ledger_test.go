package otp

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"identity-service/internal/otp/domain"
)

type memRepo struct {
	mu   sync.Mutex
	rows map[string]domain.Challenge
	err  error
}

func (m *memRepo) Get(_ context.Context, phone string) (*domain.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.rows[phone]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *memRepo) Upsert(_ context.Context, c *domain.Challenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.rows[c.Phone] = *c
	return nil
}

func newTestLedger(codes ...string) (*Ledger, *memRepo, *time.Time) {
	repo := &memRepo{rows: map[string]domain.Challenge{}}
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewLedger(repo, 0, func() time.Time { return now })
	i := 0
	l.generate = func() (string, error) {
		c := codes[i%len(codes)]
		i++
		return c, nil
	}
	return l, repo, &now
}

func TestLedger_IssueStoresDigest(t *testing.T) {
	l, repo, now := newTestLedger("4821")
	code, exp, err := l.Issue(context.Background(), "+15551234567")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if code != "4821" {
		t.Errorf("code = %q, want 4821", code)
	}
	if !exp.Equal(now.Add(DefaultTTL)) {
		t.Errorf("expiresAt = %v, want %v", exp, now.Add(DefaultTTL))
	}
	stored := repo.rows["+15551234567"]
	if stored.CodeHash == "4821" || stored.CodeHash != HashCode("4821") {
		t.Errorf("stored hash = %q, want digest of code", stored.CodeHash)
	}
}

func TestLedger_VerifyWithinWindow(t *testing.T) {
	l, _, now := newTestLedger("4821")
	ctx := context.Background()
	_, _, _ = l.Issue(ctx, "+15551234567")

	*now = now.Add(119 * time.Second)
	ok, err := l.Verify(ctx, "+15551234567", "4821")
	if err != nil || !ok {
		t.Fatalf("Verify: %v, %v", ok, err)
	}
	expired, err := l.IsExpired(ctx, "+15551234567")
	if err != nil || expired {
		t.Errorf("IsExpired: %v, %v; want false", expired, err)
	}
}

func TestLedger_ExpiredCodeStillMatchesButIsExpired(t *testing.T) {
	l, _, now := newTestLedger("4821")
	ctx := context.Background()
	_, _, _ = l.Issue(ctx, "+15551234567")

	*now = now.Add(DefaultTTL)
	if expired, _ := l.IsExpired(ctx, "+15551234567"); expired {
		t.Error("code at exact expiry should not be expired")
	}
	*now = now.Add(time.Second)
	if ok, _ := l.Verify(ctx, "+15551234567", "4821"); !ok {
		t.Error("Verify does not check expiry and should still match")
	}
	if expired, _ := l.IsExpired(ctx, "+15551234567"); !expired {
		t.Error("IsExpired should be true after 120s")
	}
}

func TestLedger_ReissueOverwrites(t *testing.T) {
	l, repo, _ := newTestLedger("4821", "1234")
	ctx := context.Background()
	_, _, _ = l.Issue(ctx, "+15551234567")
	_, _, _ = l.Issue(ctx, "+15551234567")

	if len(repo.rows) != 1 {
		t.Errorf("rows = %d, want 1", len(repo.rows))
	}
	if ok, _ := l.Verify(ctx, "+15551234567", "4821"); ok {
		t.Error("old code should no longer verify")
	}
	if ok, _ := l.Verify(ctx, "+15551234567", "1234"); !ok {
		t.Error("new code should verify")
	}
}

func TestLedger_MissingPhone(t *testing.T) {
	l, _, _ := newTestLedger("4821")
	ctx := context.Background()
	if ok, err := l.Verify(ctx, "+10000000000", "4821"); err != nil || ok {
		t.Errorf("Verify missing: %v, %v; want false, nil", ok, err)
	}
	if expired, err := l.IsExpired(ctx, "+10000000000"); err != nil || !expired {
		t.Errorf("IsExpired missing: %v, %v; want true, nil", expired, err)
	}
}

func TestLedger_StoreError(t *testing.T) {
	l, repo, _ := newTestLedger("4821")
	repo.err = errors.New("db down")
	if _, _, err := l.Issue(context.Background(), "+15551234567"); err == nil {
		t.Error("Issue should surface store errors")
	}
	if _, err := l.Verify(context.Background(), "+15551234567", "4821"); err == nil {
		t.Error("Verify should surface store errors")
	}
}
