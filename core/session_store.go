package core

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"
)

const sessionStateBytes = 32

type SessionStoreOption func(*MemorySessionStore)

func WithSessionClock(now func() time.Time) SessionStoreOption {
	return func(s *MemorySessionStore) {
		if now != nil {
			s.now = now
		}
	}
}

func WithSessionStateGenerator(generate func() (string, error)) SessionStoreOption {
	return func(s *MemorySessionStore) {
		if generate != nil {
			s.generate = generate
		}
	}
}

// MemorySessionStore keeps pending handshakes for the life of the process.
// Entries leave the map only through Take or Sweep.
type MemorySessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	entries  map[string]PendingHandshake
	now      func() time.Time
	generate func() (string, error)

	sweepMu     sync.Mutex
	sweepCancel context.CancelFunc
	sweepDone   chan struct{}
}

func NewMemorySessionStore(ttl time.Duration, opts ...SessionStoreOption) *MemorySessionStore {
	if ttl <= 0 {
		ttl = DefaultHandshakeTTL
	}
	store := &MemorySessionStore{
		ttl:      ttl,
		entries:  map[string]PendingHandshake{},
		now:      func() time.Time { return time.Now().UTC() },
		generate: generateSessionState,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store
}

func (s *MemorySessionStore) Issue(_ context.Context, ownerUserID string) (string, error) {
	if s == nil {
		return "", fmt.Errorf("core: session store is not configured")
	}
	ownerUserID = strings.TrimSpace(ownerUserID)
	if ownerUserID == "" {
		return "", InvalidRequestError("userId is required")
	}

	state, err := s.generate()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[state]; exists {
		return "", ErrSessionStateCollision
	}
	s.entries[state] = PendingHandshake{
		State:       state,
		OwnerUserID: ownerUserID,
		IssuedAt:    s.now(),
	}
	return state, nil
}

func (s *MemorySessionStore) Take(_ context.Context, state string) (PendingHandshake, bool) {
	if s == nil {
		return PendingHandshake{}, false
	}
	state = strings.TrimSpace(state)
	if state == "" {
		return PendingHandshake{}, false
	}

	s.mu.Lock()
	handshake, ok := s.entries[state]
	if ok {
		delete(s.entries, state)
	}
	s.mu.Unlock()

	return handshake, ok
}

func (s *MemorySessionStore) IsExpired(handshake PendingHandshake) bool {
	if s == nil {
		return true
	}
	return s.now().Sub(handshake.IssuedAt) > s.ttl
}

// Sweep drops every entry older than the TTL as of now.
func (s *MemorySessionStore) Sweep(now time.Time) int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for state, handshake := range s.entries {
		if now.Sub(handshake.IssuedAt) > s.ttl {
			delete(s.entries, state)
			removed++
		}
	}
	return removed
}

func (s *MemorySessionStore) Len() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// StartSweeper runs Sweep every interval until ctx ends or Stop is called.
// Calling it while a sweeper is already running does nothing.
func (s *MemorySessionStore) StartSweeper(ctx context.Context, interval time.Duration, onSweep func(removed int)) {
	if s == nil {
		return
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if ctx == nil {
		ctx = context.Background()
	}

	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()
	if s.sweepCancel != nil {
		return
	}

	sweepCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.sweepCancel = cancel
	s.sweepDone = done

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				removed := s.Sweep(s.now())
				if onSweep != nil {
					onSweep(removed)
				}
			}
		}
	}()
}

// Stop halts the sweeper and waits for it to exit.
func (s *MemorySessionStore) Stop() {
	if s == nil {
		return
	}
	s.sweepMu.Lock()
	cancel, done := s.sweepCancel, s.sweepDone
	s.sweepCancel, s.sweepDone = nil, nil
	s.sweepMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func generateSessionState() (string, error) {
	raw := make([]byte, sessionStateBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("core: generate session state: %w", err)
	}
	return hex.EncodeToString(raw), nil
}
