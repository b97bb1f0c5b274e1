package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"fleetrouting/pkg/config"
	"fleetrouting/pkg/logger"
)

// Migrator применяет goose-миграции, встроенные в бинарь через
// embed.FS. SQL-файлы живут рядом с хранилищем сервиса.
type Migrator struct {
	pool       *pgxpool.Pool
	migrations embed.FS
	dir        string
}

func NewMigrator(pool *pgxpool.Pool, migrations embed.FS, dir string) *Migrator {
	return &Migrator{
		pool:       pool,
		migrations: migrations,
		dir:        dir,
	}
}

// withGoose открывает database/sql поверх пула и настраивает goose.
// goose работает только с database/sql, поэтому на время миграций
// пул оборачивается через stdlib.
func (m *Migrator) withGoose(fn func(db *sql.DB) error) error {
	db := stdlib.OpenDBFromPool(m.pool)
	defer db.Close()

	goose.SetBaseFS(m.migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	return fn(db)
}

// Up применяет все недостающие миграции
func (m *Migrator) Up(ctx context.Context) error {
	err := m.withGoose(func(db *sql.DB) error {
		return goose.UpContext(ctx, db, m.dir)
	})
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	logger.Log.Info("Migrations applied successfully")
	return nil
}

// Down откатывает одну последнюю миграцию
func (m *Migrator) Down(ctx context.Context) error {
	err := m.withGoose(func(db *sql.DB) error {
		return goose.DownContext(ctx, db, m.dir)
	})
	if err != nil {
		return fmt.Errorf("rollback migration: %w", err)
	}

	logger.Log.Info("Migration rolled back successfully")
	return nil
}

// Status печатает состояние миграций в лог goose
func (m *Migrator) Status(ctx context.Context) error {
	return m.withGoose(func(db *sql.DB) error {
		return goose.StatusContext(ctx, db, m.dir)
	})
}

// RunMigrations применяет миграции на старте сервиса, если в
// конфигурации включён auto_migrate.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, cfg *config.DatabaseConfig, migrations embed.FS, dir string) error {
	if !cfg.AutoMigrate {
		logger.Log.Info("Auto-migration is disabled")
		return nil
	}

	return NewMigrator(pool, migrations, dir).Up(ctx)
}
