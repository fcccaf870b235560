package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-trellolink/core"
)

const credentialCacheKeyPrefix = "go-trellolink::credential::v1"

// CachedCredentialStore serves credential reads from a cache and drops the
// cached entry whenever the user relinks. A per-user generation, bumped by
// every Upsert, keeps a read that raced a relink from pinning the old token.
type CachedCredentialStore struct {
	base  core.CredentialStore
	cache repositorycache.CacheService

	mu          sync.Mutex
	generations map[string]uint64
}

func NewCachedCredentialStore(
	base core.CredentialStore,
	cacheService repositorycache.CacheService,
) (*CachedCredentialStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base credential store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: credential cache service is required")
	}
	return &CachedCredentialStore{
		base:        base,
		cache:       cacheService,
		generations: map[string]uint64{},
	}, nil
}

// CredentialCacheKey returns go-trellolink::credential::v1::<user_id> with
// the user id URL-path escaped.
func CredentialCacheKey(userID string) (string, error) {
	trimmed := strings.TrimSpace(userID)
	if trimmed == "" {
		return "", fmt.Errorf("sqlstore: user id is required")
	}
	return credentialCacheKeyPrefix + "::" + url.PathEscape(trimmed), nil
}

func (s *CachedCredentialStore) Get(ctx context.Context, userID string) (core.LinkedCredential, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.LinkedCredential{}, fmt.Errorf("sqlstore: cached credential store is not configured")
	}
	cacheKey, err := CredentialCacheKey(userID)
	if err != nil {
		return core.LinkedCredential{}, err
	}
	userID = strings.TrimSpace(userID)

	generation := s.generation(cacheKey)
	credential, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.LinkedCredential, error) {
		return s.base.Get(ctx, userID)
	})
	if err != nil {
		return core.LinkedCredential{}, err
	}
	if s.generation(cacheKey) != generation {
		// A relink landed while this read was in flight; what was cached may
		// predate it.
		if err := s.cache.Delete(ctx, cacheKey); err != nil {
			return core.LinkedCredential{}, err
		}
		return s.base.Get(ctx, userID)
	}
	return cloneCredential(credential), nil
}

func (s *CachedCredentialStore) Upsert(ctx context.Context, in core.UpsertCredentialInput) (core.LinkedCredential, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.LinkedCredential{}, fmt.Errorf("sqlstore: cached credential store is not configured")
	}
	cacheKey, err := CredentialCacheKey(in.UserID)
	if err != nil {
		return core.LinkedCredential{}, err
	}
	stored, err := s.base.Upsert(ctx, in)
	if err != nil {
		return core.LinkedCredential{}, err
	}
	s.bumpGeneration(cacheKey)
	if err := s.cache.Delete(ctx, cacheKey); err != nil {
		return core.LinkedCredential{}, err
	}
	return stored, nil
}

func (s *CachedCredentialStore) generation(cacheKey string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[cacheKey]
}

func (s *CachedCredentialStore) bumpGeneration(cacheKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generations == nil {
		s.generations = map[string]uint64{}
	}
	s.generations[cacheKey]++
}

func cloneCredential(in core.LinkedCredential) core.LinkedCredential {
	out := in
	out.RefreshToken = copyStringPointer(in.RefreshToken)
	out.ExpiresAt = copyTimePointer(in.ExpiresAt)
	return out
}
