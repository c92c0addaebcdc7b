// Package devotp keeps the plain OTP per phone while dev OTP mode is enabled, so it can be read
// back on GET /dev/otp. Never used in production.
package devotp

import (
	"context"
	"sync"
	"time"
)

// Store holds the plain OTP by phone for dev-only retrieval.
type Store interface {
	// Put stores otp for phone until expiresAt, replacing any earlier code.
	Put(ctx context.Context, phone, otp string, expiresAt time.Time)
	// Get returns the otp for phone if present and not expired.
	Get(ctx context.Context, phone string) (otp string, ok bool)
}

type entry struct {
	otp       string
	expiresAt time.Time
}

// MemoryStore is an in-memory Store implementation.
type MemoryStore struct {
	mu   sync.RWMutex
	m    map[string]entry
	nowF func() time.Time
}

// NewMemoryStore returns a new in-memory dev OTP store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		m:    make(map[string]entry),
		nowF: func() time.Time { return time.Now().UTC() },
	}
}

// Put stores otp for phone until expiresAt.
func (s *MemoryStore) Put(_ context.Context, phone, otp string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[phone] = entry{otp: otp, expiresAt: expiresAt}
}

// Get returns the otp for phone if present and not expired. Expired entries are evicted.
func (s *MemoryStore) Get(_ context.Context, phone string) (string, bool) {
	s.mu.RLock()
	e, ok := s.m[phone]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}
	if s.nowF().After(e.expiresAt) {
		s.mu.Lock()
		if cur, ok := s.m[phone]; ok && cur == e {
			delete(s.m, phone)
		}
		s.mu.Unlock()
		return "", false
	}
	return e.otp, true
}
