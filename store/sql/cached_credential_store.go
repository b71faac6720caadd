package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-deployer/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const credentialCacheKeyPrefix = "go-deployer::credential::v1"

// DriverCredentialStore is a credential store bound to one driver identity.
type DriverCredentialStore interface {
	core.CredentialStore
	Driver() string
}

// CachedCredentialStore reads through a cache and drops the entry on save.
type CachedCredentialStore struct {
	base  DriverCredentialStore
	cache repositorycache.CacheService
}

type cachedCredential struct {
	Token core.AccessToken
	Found bool
}

func NewCachedCredentialStore(
	base DriverCredentialStore,
	cacheService repositorycache.CacheService,
) (*CachedCredentialStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base credential store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: credential cache service is required")
	}
	return &CachedCredentialStore{base: base, cache: cacheService}, nil
}

// CredentialCacheKey returns go-deployer::credential::v1::<driver> with the
// driver URL-path escaped.
func CredentialCacheKey(driver string) (string, error) {
	driver = strings.TrimSpace(driver)
	if driver == "" {
		return "", fmt.Errorf("sqlstore: driver is required for credential cache key")
	}
	return credentialCacheKeyPrefix + "::" + url.PathEscape(driver), nil
}

func (s *CachedCredentialStore) Load(ctx context.Context) (core.AccessToken, bool, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.AccessToken{}, false, fmt.Errorf("sqlstore: cached credential store is not configured")
	}
	cacheKey, err := CredentialCacheKey(s.base.Driver())
	if err != nil {
		return core.AccessToken{}, false, err
	}

	cached, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (cachedCredential, error) {
		token, found, fetchErr := s.base.Load(ctx)
		if fetchErr != nil {
			return cachedCredential{}, fetchErr
		}
		return cachedCredential{Token: token.Clone(), Found: found}, nil
	})
	if err != nil {
		return core.AccessToken{}, false, err
	}
	if !cached.Found {
		return core.AccessToken{}, false, nil
	}
	return cached.Token.Clone(), true, nil
}

func (s *CachedCredentialStore) Save(ctx context.Context, token core.AccessToken) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached credential store is not configured")
	}
	if err := s.base.Save(ctx, token); err != nil {
		return err
	}
	cacheKey, err := CredentialCacheKey(s.base.Driver())
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}

func (s *CachedCredentialStore) Driver() string {
	if s == nil || s.base == nil {
		return ""
	}
	return s.base.Driver()
}
