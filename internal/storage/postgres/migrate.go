package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"go.uber.org/zap"

	"github.com/JakeFAU/curation-crawler/migrations"
)

// Migrator applies the embedded schema migrations.
type Migrator struct {
	m      *migrate.Migrate
	logger *zap.Logger
}

// NewMigrator opens a dedicated database/sql handle for migrations.
func NewMigrator(dsn string, logger *zap.Logger) (*Migrator, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database.url is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database connection: %w", err)
	}

	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create pgx migration driver: %w", err)
	}
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	return &Migrator{m: m, logger: logger}, nil
}

// Up applies all pending migrations.
func (m *Migrator) Up() error {
	if err := m.m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Info("no pending migrations")
			return nil
		}
		return fmt.Errorf("run migrations: %w", err)
	}
	m.logger.Info("migrations applied")
	return nil
}

// Down rolls back steps migrations (default 1).
func (m *Migrator) Down(steps int) error {
	if steps <= 0 {
		steps = 1
	}
	if err := m.m.Steps(-steps); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Info("no migrations to roll back")
			return nil
		}
		return fmt.Errorf("rollback migrations: %w", err)
	}
	m.logger.Info("migrations rolled back", zap.Int("steps", steps))
	return nil
}

// Version reports the current schema version.
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("get migration version: %w", err)
	}
	return version, dirty, nil
}

// Close releases the migration source and database handle.
func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()
	if srcErr != nil {
		return fmt.Errorf("close migration source: %w", srcErr)
	}
	if dbErr != nil {
		return fmt.Errorf("close migration database: %w", dbErr)
	}
	return nil
}
