// Package store is tap-go's per-agent persistence layer: one schema (sqlite
// file or Postgres schema) per local agent DID, so message history and
// travel-rule customer data never cross agent boundaries (spec.md §3
// "Ownership"). It follows the teacher's database.go dual-driver
// ConnectToDB shape (gorm.io/driver/sqlite primary, gorm.io/driver/postgres
// optional). Filtered list queries (ListMessages) are built with gorm;
// jmoiron/sqlx runs the Postgres schema creation and is exposed on Store.
package store

import (
	"embed"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"github.com/tap-rsvp/tap-go/pkg/config"
)

//go:embed migrations/postgres/*.sql
var embedMigrations embed.FS

// Store is one local agent's durable storage handle: a gorm.DB for CRUD
// and model-level transactions, plus a sqlx.DB over the same underlying
// connection for callers' ad hoc SQL (no Store method uses it), mirroring the teacher's
// own gorm+sqlx split (database.go/rpc_store.go).
type Store struct {
	DB   *gorm.DB
	SQLX *sqlx.DB
}

// unsafeDIDChars matches anything not safe to use verbatim in a sqlite
// filename or Postgres schema identifier.
var unsafeDIDChars = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

// schemaNameFor derives a stable, identifier-safe name from an agent DID,
// used as a sqlite filename stem and a Postgres schema name so that one
// physical database can host every local agent without their tables
// colliding.
func schemaNameFor(agentDID string) string {
	return "tap_" + strings.Trim(unsafeDIDChars.ReplaceAllString(agentDID, "_"), "_")
}

// Open connects to and migrates the store for one local agent, honoring
// cfg.DB.Driver ("sqlite" default, "postgres"). For sqlite, storageRoot is
// the directory resolved by pkg/config's TAP_HOME/TAP_ROOT/TAP_TEST_DIR/
// ~/.tap precedence; each agent gets its own WAL-mode database file inside
// it. For Postgres, each agent gets its own schema within cfg.DB.Name,
// migrated via embedded goose migrations the same way the teacher applies
// config/migrations/postgres.
func Open(cfg config.DatabaseConfig, storageRoot, agentDID string) (*Store, error) {
	name := schemaNameFor(agentDID)

	switch cfg.Driver {
	case "postgres":
		return openPostgres(cfg, name)
	case "sqlite", "":
		return openSqlite(storageRoot, name)
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", cfg.Driver)
	}
}

func openSqlite(storageRoot, name string) (*Store, error) {
	path := filepath.Join(storageRoot, name+".db")
	dsn := fmt.Sprintf("file:%s?cache=shared&_journal_mode=WAL", path)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	if err := db.AutoMigrate(allModels()...); err != nil {
		return nil, fmt.Errorf("store: automigrate sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("store: underlying sqlite handle: %w", err)
	}
	return &Store{DB: db, SQLX: sqlx.NewDb(sqlDB, "sqlite")}, nil
}

func openPostgres(cfg config.DatabaseConfig, schemaName string) (*Store, error) {
	dsn := fmt.Sprintf(
		"user=%s password=%s host=%s port=%s dbname=%s sslmode=disable search_path=%s",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Name, schemaName,
	)

	if err := ensureSchema(dsn, schemaName); err != nil {
		return nil, err
	}
	if err := migratePostgres(dsn, schemaName); err != nil {
		return nil, err
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{TablePrefix: ""},
	})
	if err != nil {
		return nil, fmt.Errorf("store: open postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("store: underlying postgres handle: %w", err)
	}
	return &Store{DB: db, SQLX: sqlx.NewDb(sqlDB, "postgres")}, nil
}

func ensureSchema(dsn, schemaName string) error {
	sqlxDB, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return fmt.Errorf("store: connect for schema creation: %w", err)
	}
	defer sqlxDB.Close()

	if _, err := sqlxDB.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schemaName)); err != nil {
		return fmt.Errorf("store: create schema %s: %w", schemaName, err)
	}
	return nil
}

func migratePostgres(dsn, schemaName string) error {
	db, err := goose.OpenDBWithDriver("postgres", dsn)
	if err != nil {
		return fmt.Errorf("store: open migration connection: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec(fmt.Sprintf("SET search_path TO %s", schemaName)); err != nil {
		return fmt.Errorf("store: set search_path: %w", err)
	}

	goose.SetBaseFS(embedMigrations)
	defer goose.SetBaseFS(nil)
	if err := goose.Up(db, "migrations/postgres"); err != nil {
		return fmt.Errorf("store: apply migrations: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
