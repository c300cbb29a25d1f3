package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is the registry of conversation contexts keyed by (user, session).
//
// Locking is two-level: the registry lock guards the map structure
// (insert/remove/iterate) while each Context carries its own lock for state
// mutation. Structural operations never hold the registry lock across
// anything slower than a map access, so users do not serialize behind one
// another.
type Store struct {
	mu       sync.RWMutex
	contexts map[contextKey]*Context
	bounds   Bounds
	ttl      time.Duration
	onSweep  func(removed int)
}

type contextKey struct {
	userID    string
	sessionID string
}

// DefaultTTL is how long an idle context survives before the sweeper
// removes it.
const DefaultTTL = 2 * time.Hour

// NewStore creates an empty registry. A non-positive ttl falls back to
// DefaultTTL.
func NewStore(ttl time.Duration, bounds Bounds) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		contexts: make(map[contextKey]*Context),
		bounds:   bounds.withDefaults(),
		ttl:      ttl,
	}
}

// SetSweepHook registers a callback invoked after each sweep that removed at
// least one context.
func (s *Store) SetSweepHook(hook func(removed int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSweep = hook
}

// NewSessionID mints a fresh session identifier for callers that do not
// bring their own.
func NewSessionID() string {
	return uuid.NewString()
}

// GetOrCreate returns the context for the key, creating and registering one
// when absent. Concurrent calls with the same key observe the same instance.
func (s *Store) GetOrCreate(userID, sessionID string) *Context {
	key := contextKey{userID: userID, sessionID: sessionID}

	s.mu.RLock()
	c, ok := s.contexts[key]
	s.mu.RUnlock()
	if ok {
		return c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.contexts[key]; ok {
		return c
	}
	c = newContext(userID, sessionID, s.bounds)
	s.contexts[key] = c
	return c
}

// Get returns the context for the key without creating one.
func (s *Store) Get(userID, sessionID string) (*Context, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contexts[contextKey{userID: userID, sessionID: sessionID}]
	return c, ok
}

// Delete removes the context for the key, reporting whether one existed.
func (s *Store) Delete(userID, sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := contextKey{userID: userID, sessionID: sessionID}
	if _, ok := s.contexts[key]; !ok {
		return false
	}
	delete(s.contexts, key)
	return true
}

// Clear drops every context.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contexts = make(map[contextKey]*Context)
}

// Len reports the number of registered contexts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.contexts)
}

// SweepExpired removes contexts idle for longer than ttl and returns how
// many were removed. Safe to run concurrently with traffic: each candidate's
// lastActivity is re-checked under the entry's own lock right before
// removal, so a context that receives activity during the scan survives.
func (s *Store) SweepExpired(ttl time.Duration) int {
	if ttl <= 0 {
		ttl = s.ttl
	}
	now := time.Now().UTC()

	type candidate struct {
		key contextKey
		ctx *Context
	}
	var stale []candidate

	s.mu.RLock()
	for key, c := range s.contexts {
		if now.Sub(c.LastActivity()) > ttl {
			stale = append(stale, candidate{key: key, ctx: c})
		}
	}
	hook := s.onSweep
	s.mu.RUnlock()

	if len(stale) == 0 {
		return 0
	}

	removed := 0
	s.mu.Lock()
	for _, cand := range stale {
		if current, ok := s.contexts[cand.key]; !ok || current != cand.ctx {
			continue
		}
		cand.ctx.mu.Lock()
		if now.Sub(cand.ctx.lastActivity) > ttl {
			delete(s.contexts, cand.key)
			removed++
		}
		cand.ctx.mu.Unlock()
	}
	s.mu.Unlock()

	if removed > 0 && hook != nil {
		hook(removed)
	}
	return removed
}

// Stats returns a read-only aggregate snapshot over all contexts.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	contexts := make([]*Context, 0, len(s.contexts))
	for _, c := range s.contexts {
		contexts = append(contexts, c)
	}
	s.mu.RUnlock()

	st := Stats{ActiveSessions: len(contexts)}
	for _, c := range contexts {
		st.BufferedMessages += c.TurnCount()
		if c.ActiveCartID() != "" {
			st.ActiveCarts++
		}
	}
	return st
}

// StartJanitor sweeps expired contexts on a fixed interval until ctx is
// cancelled.
func (s *Store) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.SweepExpired(s.ttl)
			}
		}
	}()
}
