package sqlstore

import (
	"fmt"
	"time"

	"github.com/goliatone/go-deployer/core"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"
)

type FactoryOption func(*RepositoryFactory)

func WithDriver(driver string) FactoryOption {
	return func(f *RepositoryFactory) {
		f.driver = driver
	}
}

func WithCipher(cipher core.TokenCipher) FactoryOption {
	return func(f *RepositoryFactory) {
		f.cipher = cipher
	}
}

func WithStateTTL(ttl time.Duration) FactoryOption {
	return func(f *RepositoryFactory) {
		f.stateTTL = ttl
	}
}

// WithCredentialCache puts a read-through cache in front of the credential
// store.
func WithCredentialCache(cacheService repositorycache.CacheService) FactoryOption {
	return func(f *RepositoryFactory) {
		f.cache = cacheService
	}
}

// RepositoryFactory builds the SQL backed stores the deployer needs.
type RepositoryFactory struct {
	db       *bun.DB
	driver   string
	cipher   core.TokenCipher
	stateTTL time.Duration
	cache    repositorycache.CacheService

	credentialStore core.CredentialStore
	oauthStateStore *OAuthStateStore
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client, opts ...FactoryOption) (*RepositoryFactory, error) {
	return newRepositoryFactory(client, opts...)
}

func NewRepositoryFactoryFromDB(db *bun.DB, opts ...FactoryOption) (*RepositoryFactory, error) {
	return newRepositoryFactory(db, opts...)
}

func newRepositoryFactory(candidate any, opts ...FactoryOption) (*RepositoryFactory, error) {
	db, err := resolveBunDB(candidate)
	if err != nil {
		return nil, err
	}
	factory := &RepositoryFactory{db: db}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(factory)
	}
	if err := factory.initStores(); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) CredentialStore() core.CredentialStore {
	if f == nil {
		return nil
	}
	return f.credentialStore
}

func (f *RepositoryFactory) OAuthStateStore() *OAuthStateStore {
	if f == nil {
		return nil
	}
	return f.oauthStateStore
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

// Options returns the deployer options that wire these stores.
func (f *RepositoryFactory) Options() []core.Option {
	if f == nil {
		return nil
	}
	return []core.Option{
		core.WithCredentialStore(f.credentialStore),
		core.WithOAuthStateStore(f.oauthStateStore),
	}
}

func (f *RepositoryFactory) initStores() error {
	credentialOpts := []CredentialStoreOption{}
	if f.cipher != nil {
		credentialOpts = append(credentialOpts, WithTokenCipher(f.cipher))
	}
	credentialStore, err := NewCredentialStore(f.db, f.driver, credentialOpts...)
	if err != nil {
		return err
	}
	f.credentialStore = credentialStore
	if f.cache != nil {
		cached, cacheErr := NewCachedCredentialStore(credentialStore, f.cache)
		if cacheErr != nil {
			return cacheErr
		}
		f.credentialStore = cached
	}

	oauthStateStore, err := NewOAuthStateStore(f.db, f.stateTTL)
	if err != nil {
		return err
	}
	f.oauthStateStore = oauthStateStore
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		if typed == nil {
			return nil, fmt.Errorf("sqlstore: bun db is required")
		}
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
