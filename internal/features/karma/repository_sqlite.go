// Package karma — repository_sqlite.go выполняет операции с таблицами karma и votings в SQLite.
// Время хранится в микросекундах Unix (INTEGER), чтобы сравнения в SQL были числовыми.
package karma

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"serotonyl.ru/karmabot/internal/common"
)

// SQLiteRepository работает с файлом SQLite через database/sql.
// Соединение должно быть открыто с _txlock=immediate (см. internal/db/sqlite):
// тогда каждая транзакция сразу берёт блокировку записи.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository создаёт репозиторий SQLite.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// WithTx выполняет fn в транзакции.
func (r *SQLiteRepository) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: ошибка начала транзакции: %v", common.ErrStoreUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&sqliteTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: ошибка фиксации транзакции: %v", common.ErrStoreUnavailable, err)
	}
	return nil
}

// GetKarma возвращает карму пользователя.
func (r *SQLiteRepository) GetKarma(ctx context.Context, userID string) (*Karma, error) {
	query := `
		SELECT id, user_id, points, created_at, updated_at
		FROM karma WHERE user_id = ?
	`
	k, err := scanSQLiteKarma(r.db.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения кармы: %w", err)
	}
	return k, nil
}

// ListNonZeroKarma возвращает ненулевую карму по убыванию.
func (r *SQLiteRepository) ListNonZeroKarma(ctx context.Context) ([]Karma, error) {
	query := `
		SELECT id, user_id, points, created_at, updated_at
		FROM karma WHERE points <> 0
		ORDER BY points DESC, id ASC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения кармы: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []Karma
	for rows.Next() {
		k, err := scanSQLiteKarma(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *k)
	}
	return result, rows.Err()
}

// VotingExists проверяет наличие голосования для сообщения.
func (r *SQLiteRepository) VotingExists(ctx context.Context, channel, messageTS string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM votings WHERE message_ts = ? AND channel = ?)`
	var exists bool
	err := r.db.QueryRowContext(ctx, query, messageTS, channel).Scan(&exists)
	return exists, err
}

// ListOpenVotings возвращает открытые голосования.
func (r *SQLiteRepository) ListOpenVotings(ctx context.Context) ([]Voting, error) {
	query := `SELECT ` + votingColumns + ` FROM votings WHERE closed = 0 ORDER BY posted_at, id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения голосований: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []Voting
	for rows.Next() {
		v, err := scanSQLiteVoting(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *v)
	}
	return result, rows.Err()
}

// ListExpiredVotings возвращает голосования, которые пора подводить.
func (r *SQLiteRepository) ListExpiredVotings(ctx context.Context, cutoff time.Time) ([]Voting, error) {
	query := `SELECT ` + votingColumns + ` FROM votings
		WHERE closed = 0 AND posted_at <= ?
		ORDER BY posted_at, id`
	rows, err := r.db.QueryContext(ctx, query, toMicros(cutoff))
	if err != nil {
		return nil, fmt.Errorf("%w: ошибка поиска истёкших голосований: %v", common.ErrStoreUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

	var result []Voting
	for rows.Next() {
		v, err := scanSQLiteVoting(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *v)
	}
	return result, rows.Err()
}

// DeleteClosedBefore удаляет старые закрытые голосования.
func (r *SQLiteRepository) DeleteClosedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM votings WHERE closed = 1 AND created_at <= ?`, toMicros(cutoff))
	if err != nil {
		return 0, fmt.Errorf("%w: ошибка удаления старых голосований: %v", common.ErrStoreUnavailable, err)
	}
	return res.RowsAffected()
}

// sqliteTx — операции внутри транзакции SQLite.
type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) InsertVoting(ctx context.Context, v *Voting) (bool, error) {
	query := `
		INSERT INTO votings (initiator_id, target_id, channel, message_ts, bot_message_ts,
		                     posted_at, message_text, delta, created_at, closed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT (message_ts, channel) DO NOTHING
	`
	res, err := t.tx.ExecContext(ctx, query,
		v.InitiatorID, v.TargetID, v.Channel, v.MessageTS, v.BotMessageTS,
		toMicros(v.PostedAt), v.MessageText, v.Delta, toMicros(v.CreatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("ошибка создания голосования: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	if v.ID, err = res.LastInsertId(); err != nil {
		return false, err
	}
	return true, nil
}

// ClaimOpenVoting читает открытое голосование. Блокировку записи транзакция
// уже держит с момента BEGIN IMMEDIATE, поэтому отдельный FOR UPDATE не нужен.
func (t *sqliteTx) ClaimOpenVoting(ctx context.Context, id int64) (*Voting, error) {
	query := `SELECT ` + votingColumns + ` FROM votings WHERE id = ? AND closed = 0`
	v, err := scanSQLiteVoting(t.tx.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения голосования %d: %w", id, err)
	}
	return v, nil
}

func (t *sqliteTx) CloseVoting(ctx context.Context, id int64) error {
	if _, err := t.tx.ExecContext(ctx, `UPDATE votings SET closed = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("ошибка закрытия голосования %d: %w", id, err)
	}
	return nil
}

func (t *sqliteTx) DeleteVoting(ctx context.Context, id int64) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM votings WHERE id = ?`, id); err != nil {
		return fmt.Errorf("ошибка удаления голосования %d: %w", id, err)
	}
	return nil
}

func (t *sqliteTx) AddKarma(ctx context.Context, userID string, delta, initial int) error {
	now := toMicros(time.Now())
	query := `
		INSERT INTO karma (user_id, points, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE
		SET points = karma.points + ?, updated_at = excluded.updated_at
	`
	if _, err := t.tx.ExecContext(ctx, query, userID, initial+delta, now, now, delta); err != nil {
		return fmt.Errorf("ошибка изменения кармы: %w", err)
	}
	return nil
}

func (t *sqliteTx) SetKarma(ctx context.Context, userID string, points int) error {
	now := toMicros(time.Now())
	query := `
		INSERT INTO karma (user_id, points, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE
		SET points = excluded.points, updated_at = excluded.updated_at
	`
	if _, err := t.tx.ExecContext(ctx, query, userID, points, now, now); err != nil {
		return fmt.Errorf("ошибка установки кармы: %w", err)
	}
	return nil
}

// rowScanner — общий интерфейс *sql.Row и *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteKarma(row rowScanner) (*Karma, error) {
	var (
		k                Karma
		created, updated int64
	)
	if err := row.Scan(&k.ID, &k.UserID, &k.Points, &created, &updated); err != nil {
		return nil, err
	}
	k.CreatedAt = fromMicros(created)
	k.UpdatedAt = fromMicros(updated)
	return &k, nil
}

func scanSQLiteVoting(row rowScanner) (*Voting, error) {
	var (
		v               Voting
		posted, created int64
	)
	err := row.Scan(
		&v.ID, &v.InitiatorID, &v.TargetID, &v.Channel, &v.MessageTS, &v.BotMessageTS,
		&posted, &v.MessageText, &v.Delta, &created, &v.Closed,
	)
	if err != nil {
		return nil, err
	}
	v.PostedAt = fromMicros(posted)
	v.CreatedAt = fromMicros(created)
	return &v, nil
}

func toMicros(t time.Time) int64 {
	return t.UnixMicro()
}

func fromMicros(us int64) time.Time {
	return time.UnixMicro(us).UTC()
}
