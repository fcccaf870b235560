package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-trellolink/core"
	trellomigrations "github.com/goliatone/go-trellolink/migrations"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

// persistenceConfig exposes DatabaseConfig through the accessor set
// go-persistence-bun reads.
type persistenceConfig struct {
	db      core.DatabaseConfig
	service string
}

func (c persistenceConfig) GetDebug() bool { return c.db.Debug }

func (c persistenceConfig) GetDriver() string { return c.db.Driver }

func (c persistenceConfig) GetServer() string { return c.db.DSN }

func (c persistenceConfig) GetPingTimeout() time.Duration {
	if c.db.PingTimeout <= 0 {
		return 5 * time.Second
	}
	return c.db.PingTimeout
}

func (c persistenceConfig) GetOtelIdentifier() string { return c.service }

type driverSpec struct {
	sqlDriver       string
	migrationTarget string
	dialect         func() schema.Dialect
}

func resolveDriver(driver string) (driverSpec, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite", "sqlite3":
		return driverSpec{
			sqlDriver:       "sqlite3",
			migrationTarget: trellomigrations.DialectSQLite,
			dialect:         func() schema.Dialect { return sqlitedialect.New() },
		}, nil
	case "postgres", "postgresql", "pg":
		return driverSpec{
			sqlDriver:       "postgres",
			migrationTarget: trellomigrations.DialectPostgres,
			dialect:         func() schema.Dialect { return pgdialect.New() },
		}, nil
	}
	return driverSpec{}, fmt.Errorf("bootstrap: unsupported database driver %q", driver)
}

// OpenDatabase opens the configured database, wraps it in a persistence
// client and registers the embedded migrations for its dialect. Migrations
// are not applied; call Migrate.
func OpenDatabase(cfg core.DatabaseConfig, serviceName string) (*persistence.Client, error) {
	spec, err := resolveDriver(cfg.Driver)
	if err != nil {
		return nil, err
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, fmt.Errorf("bootstrap: database dsn is required")
	}

	sqlDB, err := sql.Open(spec.sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: open %s: %w", spec.sqlDriver, err)
	}
	if spec.sqlDriver == "sqlite3" {
		sqlDB.SetMaxOpenConns(1)
	}

	cfg.Driver = spec.sqlDriver
	cfg.DSN = dsn
	client, err := persistence.New(persistenceConfig{db: cfg, service: serviceName}, sqlDB, spec.dialect())
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("bootstrap: persistence client: %w", err)
	}

	_, err = trellomigrations.Register(context.Background(), func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != spec.migrationTarget {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, trellomigrations.WithValidationTargets(spec.migrationTarget))
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("bootstrap: register migrations: %w", err)
	}
	return client, nil
}

func Migrate(ctx context.Context, client *persistence.Client) error {
	if client == nil {
		return fmt.Errorf("bootstrap: persistence client is required")
	}
	if err := client.Migrate(ctx); err != nil {
		return fmt.Errorf("bootstrap: migrate: %w", err)
	}
	return nil
}
