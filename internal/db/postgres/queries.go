// Package postgres — queries.go применяет миграции схемы.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

// Migration — одна версия схемы.
type Migration struct {
	Version int
	SQL     string
}

// Migrations — схема кармы и голосований.
var Migrations = []Migration{
	{1, migration001Karma},
	{2, migration002Votings},
}

var migration001Karma = `
CREATE TABLE IF NOT EXISTS karma (
    id BIGSERIAL PRIMARY KEY,
    user_id TEXT NOT NULL UNIQUE,
    points INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

var migration002Votings = `
CREATE TABLE IF NOT EXISTS votings (
    id BIGSERIAL PRIMARY KEY,
    initiator_id TEXT NOT NULL,
    target_id TEXT NOT NULL,
    channel TEXT NOT NULL,
    message_ts TEXT NOT NULL,
    bot_message_ts TEXT NOT NULL,
    posted_at TIMESTAMPTZ NOT NULL,
    message_text TEXT NOT NULL DEFAULT '',
    delta INTEGER NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    closed BOOLEAN NOT NULL DEFAULT FALSE,
    UNIQUE (message_ts, channel)
);
CREATE INDEX IF NOT EXISTS idx_votings_open ON votings(posted_at) WHERE closed = FALSE;
CREATE INDEX IF NOT EXISTS idx_votings_closed_created ON votings(created_at) WHERE closed = TRUE;
`

// Migrate создаёт таблицу schema_migrations и применяет недостающие миграции.
func Migrate(ctx context.Context, pool *pgxpool.Pool, migrations []Migration) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("ошибка создания таблицы миграций: %w", err)
	}

	for _, m := range migrations {
		if err := ExecMigrationSQL(ctx, pool, m.Version, m.SQL); err != nil {
			return err
		}
	}
	log.WithField("versions", len(migrations)).Info("Миграции PostgreSQL применены")
	return nil
}

// ExecMigrationSQL выполняет одну миграцию в транзакции.
// Уже применённая версия пропускается.
func ExecMigrationSQL(ctx context.Context, pool *pgxpool.Pool, version int, sql string) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	err = tx.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", version,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("ошибка проверки миграции: %w", err)
	}
	if exists {
		return nil
	}

	if _, err := tx.Exec(ctx, sql); err != nil {
		return fmt.Errorf("ошибка выполнения миграции %d: %w", version, err)
	}

	if _, err := tx.Exec(ctx,
		"INSERT INTO schema_migrations (version) VALUES ($1)", version,
	); err != nil {
		return fmt.Errorf("ошибка записи версии миграции: %w", err)
	}

	return tx.Commit(ctx)
}
