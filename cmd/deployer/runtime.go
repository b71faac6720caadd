package main

import (
	"context"
	"fmt"
	"os"

	deployer "github.com/goliatone/go-deployer"
	"github.com/goliatone/go-deployer/core"
	"github.com/goliatone/go-deployer/security"
	"github.com/goliatone/go-deployer/snapshot"
	sqlstore "github.com/goliatone/go-deployer/store/sql"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/mitchellh/go-homedir"
)

// runtime is the deployer wired for one CLI invocation.
type runtime struct {
	Deployer *deployer.Deployer
	Config   deployer.Config
	Logger   *cliLogger

	client *persistence.Client
}

func newRuntime(ctx context.Context) (*runtime, error) {
	logger := newCLILogger(os.Stderr, Debug)

	cfg, err := core.NewCfgxConfigProvider(core.StaticRawConfigLoader{Values: RawConfig}).
		Load(ctx, deployer.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("deployer: load config: %w", err)
	}

	client, err := openDatabase(ctx)
	if err != nil {
		return nil, err
	}
	rt := &runtime{Config: cfg, Logger: logger, client: client}

	opts, err := rt.storeOptions(cfg)
	if err != nil {
		rt.Close()
		return nil, err
	}
	netlifyOpts, err := deployer.NetlifyOptions(cfg, logger)
	if err != nil {
		rt.Close()
		return nil, err
	}
	opts = append(opts, netlifyOpts...)
	opts = append(opts, deployer.WithLogger(logger))

	if SnapshotsDir != "" {
		dir, err := homedir.Expand(SnapshotsDir)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("deployer: unable to expand homedir: %w", err)
		}
		source, err := snapshot.NewFileSource(dir)
		if err != nil {
			rt.Close()
			return nil, err
		}
		opts = append(opts, deployer.WithSnapshotSource(source))
	}

	d, err := deployer.Setup(cfg, opts...)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Deployer = d
	rt.Config = d.Config()
	return rt, nil
}

func openDatabase(ctx context.Context) (*persistence.Client, error) {
	pcfg, err := persistenceConfig()
	if err != nil {
		return nil, err
	}
	debugLog("database: %s %s\n", pcfg.Driver, pcfg.DSN)
	client, err := sqlstore.Open(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	if AutoMigrate {
		if err := client.Migrate(ctx); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("deployer: migrate: %w", err)
		}
	}
	return client, nil
}

func (r *runtime) storeOptions(cfg deployer.Config) ([]deployer.Option, error) {
	factoryOpts := []sqlstore.FactoryOption{
		sqlstore.WithDriver(cfg.DriverName),
		sqlstore.WithStateTTL(cfg.OAuth.StateTTL),
	}
	if CipherKey != "" {
		cipher, err := security.NewTokenCipherFromString(CipherKey)
		if err != nil {
			return nil, fmt.Errorf("deployer: token cipher: %w", err)
		}
		factoryOpts = append(factoryOpts, sqlstore.WithCipher(cipher))
	}
	if ttl := ParsedConfig.CredentialCacheTTL; ttl > 0 {
		cacheCfg := repositorycache.DefaultConfig()
		cacheCfg.TTL = ttl
		cacheService, err := repositorycache.NewCacheService(cacheCfg)
		if err != nil {
			return nil, fmt.Errorf("deployer: credential cache: %w", err)
		}
		factoryOpts = append(factoryOpts, sqlstore.WithCredentialCache(cacheService))
	}

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(r.client, factoryOpts...)
	if err != nil {
		return nil, err
	}
	return factory.Options(), nil
}

func (r *runtime) Close() {
	if r == nil || r.client == nil {
		return
	}
	_ = r.client.Close()
}
