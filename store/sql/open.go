package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/goliatone/go-deployer/migrations"
	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

const defaultPingTimeout = 5 * time.Second

// PersistenceConfig describes the database behind the SQL stores.
type PersistenceConfig struct {
	Driver      string        `koanf:"driver" yaml:"driver" json:"driver"`
	DSN         string        `koanf:"dsn" yaml:"dsn" json:"dsn"`
	Debug       bool          `koanf:"debug" yaml:"debug" json:"debug"`
	PingTimeout time.Duration `koanf:"ping_timeout" yaml:"ping_timeout" json:"ping_timeout"`
}

func (c PersistenceConfig) GetDebug() bool {
	return c.Debug
}

func (c PersistenceConfig) GetDriver() string {
	return strings.TrimSpace(c.Driver)
}

func (c PersistenceConfig) GetServer() string {
	return strings.TrimSpace(c.DSN)
}

func (c PersistenceConfig) GetPingTimeout() time.Duration {
	if c.PingTimeout <= 0 {
		return defaultPingTimeout
	}
	return c.PingTimeout
}

func (c PersistenceConfig) GetOtelIdentifier() string {
	return "go-deployer"
}

// Open connects to the database and returns a persistence client with the
// deployer migrations registered for the matching dialect. Migrations are
// not applied; call Migrate on the client.
func Open(ctx context.Context, cfg PersistenceConfig) (*persistence.Client, error) {
	dialect, err := migrations.DialectFor(cfg.GetDriver())
	if err != nil {
		return nil, err
	}
	if cfg.GetServer() == "" {
		return nil, fmt.Errorf("sqlstore: dsn is required")
	}

	driverName := "postgres"
	var bunDialect schema.Dialect = pgdialect.New()
	if dialect == migrations.DialectSQLite {
		driverName = "sqlite3"
		bunDialect = sqlitedialect.New()
	}

	sqlDB, err := sql.Open(driverName, cfg.GetServer())
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", driverName, err)
	}
	if dialect == migrations.DialectSQLite {
		sqlDB.SetMaxOpenConns(1)
	}

	client, err := persistence.New(cfg, sqlDB, bunDialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlstore: new persistence client: %w", err)
	}
	if err := RegisterMigrations(ctx, client, dialect); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// RegisterMigrations adds the deployer schema for one dialect to client.
func RegisterMigrations(ctx context.Context, client *persistence.Client, dialect string) error {
	if client == nil {
		return fmt.Errorf("sqlstore: persistence client is required")
	}
	_, err := migrations.Register(ctx, func(_ context.Context, _ string, _ string, fsys fs.FS) error {
		client.RegisterSQLMigrations(fsys)
		return nil
	}, migrations.WithValidationTargets(dialect))
	return err
}
