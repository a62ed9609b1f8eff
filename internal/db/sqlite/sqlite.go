// Package sqlite открывает файл базы SQLite (драйвер modernc.org/sqlite, без cgo)
// и применяет к нему схему. Используется по умолчанию (DB_DRIVER=sqlite).
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// Параметры соединения:
//   - WAL — чтение не блокируется записью
//   - busy_timeout — ждём блокировку другого процесса (karmactl) до 5 секунд
//   - _txlock=immediate — BEGIN IMMEDIATE: транзакция сразу берёт блокировку записи
func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(NORMAL)")
	q.Add("_pragma", "foreign_keys(1)")
	q.Set("_txlock", "immediate")
	return "file:" + path + "?" + q.Encode()
}

// Open открывает (или создаёт) файл базы и применяет миграции.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия SQLite: %w", err)
	}

	// SQLite допускает одного писателя; одно соединение исключает SQLITE_BUSY внутри процесса
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("база данных недоступна: %w", err)
	}

	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	log.WithField("path", path).Info("База SQLite открыта")
	return db, nil
}

var migrations = []struct {
	version int
	sql     string
}{
	{1, `
CREATE TABLE IF NOT EXISTS karma (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id TEXT NOT NULL UNIQUE,
    points INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);`},
	{2, `
CREATE TABLE IF NOT EXISTS votings (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    initiator_id TEXT NOT NULL,
    target_id TEXT NOT NULL,
    channel TEXT NOT NULL,
    message_ts TEXT NOT NULL,
    bot_message_ts TEXT NOT NULL,
    posted_at INTEGER NOT NULL,
    message_text TEXT NOT NULL DEFAULT '',
    delta INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    closed INTEGER NOT NULL DEFAULT 0,
    UNIQUE (message_ts, channel)
);
CREATE INDEX IF NOT EXISTS idx_votings_open ON votings(closed, posted_at);
CREATE INDEX IF NOT EXISTS idx_votings_closed_created ON votings(closed, created_at);`},
}

// Migrate применяет недостающие версии схемы.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		return fmt.Errorf("ошибка создания таблицы миграций: %w", err)
	}

	for _, m := range migrations {
		if err := applyMigration(ctx, db, m.version, m.sql); err != nil {
			return err
		}
	}
	return nil
}

func applyMigration(ctx context.Context, db *sql.DB, version int, stmt string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	if err := tx.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = ?)", version,
	).Scan(&exists); err != nil {
		return fmt.Errorf("ошибка проверки миграции: %w", err)
	}
	if exists {
		return nil
	}

	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("ошибка выполнения миграции %d: %w", version, err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version) VALUES (?)", version,
	); err != nil {
		return fmt.Errorf("ошибка записи версии миграции: %w", err)
	}
	return tx.Commit()
}

// Snapshot записывает согласованную копию базы в файл dest (VACUUM INTO).
// Файл dest не должен существовать.
func Snapshot(ctx context.Context, db *sql.DB, dest string) error {
	if _, err := db.ExecContext(ctx, "VACUUM INTO ?", dest); err != nil {
		return fmt.Errorf("ошибка снимка базы: %w", err)
	}
	return nil
}
