package core

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type stubVerifier struct {
	mu       sync.Mutex
	accepted map[string]ProviderIdentity
	calls    int
	err      error
}

func (v *stubVerifier) Verify(_ context.Context, token string) (ProviderIdentity, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls++
	if v.err != nil {
		return ProviderIdentity{}, v.err
	}
	identity, ok := v.accepted[token]
	if !ok {
		return ProviderIdentity{}, fmt.Errorf("stub verifier: token rejected")
	}
	return identity, nil
}

func (v *stubVerifier) callCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls
}

type stubURLBuilder struct {
	err error
}

func (b stubURLBuilder) AuthorizeURL(state string) (string, error) {
	if b.err != nil {
		return "", b.err
	}
	return "https://trello.test/1/authorize?state=" + state, nil
}

type memoryCredentialStore struct {
	mu        sync.Mutex
	rows      map[string]LinkedCredential
	upserts   int
	upsertErr error
}

func newMemoryCredentialStore() *memoryCredentialStore {
	return &memoryCredentialStore{rows: map[string]LinkedCredential{}}
}

func (s *memoryCredentialStore) Upsert(_ context.Context, in UpsertCredentialInput) (LinkedCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts++
	if s.upsertErr != nil {
		return LinkedCredential{}, s.upsertErr
	}
	now := time.Now().UTC()
	row, ok := s.rows[in.UserID]
	if !ok {
		row = LinkedCredential{ID: "cred_" + in.UserID, UserID: in.UserID, CreatedAt: now}
	}
	row.AccessToken = in.AccessToken
	row.RefreshToken = in.RefreshToken
	row.ExpiresAt = in.ExpiresAt
	row.UpdatedAt = now
	s.rows[in.UserID] = row
	return row, nil
}

func (s *memoryCredentialStore) Get(_ context.Context, userID string) (LinkedCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[userID]
	if !ok {
		return LinkedCredential{}, ErrCredentialNotFound
	}
	return row, nil
}

func (s *memoryCredentialStore) upsertCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upserts
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock(start time.Time) *manualClock {
	return &manualClock{now: start}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Trello.APIKey = "test-api-key"
	cfg.Trello.RedirectURI = "http://localhost:3001/auth/callback"
	return cfg
}
