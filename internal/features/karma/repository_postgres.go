// Package karma — repository_postgres.go выполняет операции с таблицами karma и votings в PostgreSQL.
package karma

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/karmabot/internal/common"
)

const votingColumns = `id, initiator_id, target_id, channel, message_ts, bot_message_ts,
	posted_at, message_text, delta, created_at, closed`

// PgRepository работает с PostgreSQL через пул pgxpool.
type PgRepository struct {
	db *pgxpool.Pool
}

// NewPgRepository создаёт репозиторий PostgreSQL.
func NewPgRepository(db *pgxpool.Pool) *PgRepository {
	return &PgRepository{db: db}
}

// WithTx выполняет fn в транзакции READ COMMITTED.
func (r *PgRepository) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("%w: ошибка начала транзакции: %v", common.ErrStoreUnavailable, err)
	}
	// Откатываем транзакцию, если что-то пошло не так (после Commit — no-op)
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: ошибка фиксации транзакции: %v", common.ErrStoreUnavailable, err)
	}
	return nil
}

// GetKarma возвращает карму пользователя.
func (r *PgRepository) GetKarma(ctx context.Context, userID string) (*Karma, error) {
	query := `
		SELECT id, user_id, points, created_at, updated_at
		FROM karma WHERE user_id = $1
	`
	var k Karma
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&k.ID, &k.UserID, &k.Points, &k.CreatedAt, &k.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения кармы: %w", err)
	}
	return &k, nil
}

// ListNonZeroKarma возвращает ненулевую карму по убыванию.
func (r *PgRepository) ListNonZeroKarma(ctx context.Context) ([]Karma, error) {
	query := `
		SELECT id, user_id, points, created_at, updated_at
		FROM karma WHERE points <> 0
		ORDER BY points DESC, id ASC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения кармы: %w", err)
	}
	defer rows.Close()

	var result []Karma
	for rows.Next() {
		var k Karma
		if err := rows.Scan(&k.ID, &k.UserID, &k.Points, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, k)
	}
	return result, rows.Err()
}

// VotingExists проверяет наличие голосования для сообщения.
func (r *PgRepository) VotingExists(ctx context.Context, channel, messageTS string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM votings WHERE message_ts = $1 AND channel = $2)`
	var exists bool
	err := r.db.QueryRow(ctx, query, messageTS, channel).Scan(&exists)
	return exists, err
}

// ListOpenVotings возвращает открытые голосования.
func (r *PgRepository) ListOpenVotings(ctx context.Context) ([]Voting, error) {
	query := `SELECT ` + votingColumns + ` FROM votings WHERE closed = FALSE ORDER BY posted_at, id`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения голосований: %w", err)
	}
	defer rows.Close()

	var result []Voting
	for rows.Next() {
		v, err := scanPgVoting(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *v)
	}
	return result, rows.Err()
}

// ListExpiredVotings возвращает голосования, которые пора подводить.
func (r *PgRepository) ListExpiredVotings(ctx context.Context, cutoff time.Time) ([]Voting, error) {
	query := `SELECT ` + votingColumns + ` FROM votings
		WHERE closed = FALSE AND posted_at <= $1
		ORDER BY posted_at, id`
	rows, err := r.db.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("%w: ошибка поиска истёкших голосований: %v", common.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var result []Voting
	for rows.Next() {
		v, err := scanPgVoting(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *v)
	}
	return result, rows.Err()
}

// DeleteClosedBefore удаляет старые закрытые голосования.
func (r *PgRepository) DeleteClosedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM votings WHERE closed = TRUE AND created_at <= $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%w: ошибка удаления старых голосований: %v", common.ErrStoreUnavailable, err)
	}
	return tag.RowsAffected(), nil
}

// pgTx — операции внутри транзакции pgx.
type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) InsertVoting(ctx context.Context, v *Voting) (bool, error) {
	query := `
		INSERT INTO votings (initiator_id, target_id, channel, message_ts, bot_message_ts,
		                     posted_at, message_text, delta, created_at, closed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE)
		ON CONFLICT (message_ts, channel) DO NOTHING
		RETURNING id
	`
	err := t.tx.QueryRow(ctx, query,
		v.InitiatorID, v.TargetID, v.Channel, v.MessageTS, v.BotMessageTS,
		v.PostedAt, v.MessageText, v.Delta, v.CreatedAt,
	).Scan(&v.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ошибка создания голосования: %w", err)
	}
	return true, nil
}

// ClaimOpenVoting берёт строку под блокировку; занятые другим проходом строки пропускаются.
func (t *pgTx) ClaimOpenVoting(ctx context.Context, id int64) (*Voting, error) {
	query := `SELECT ` + votingColumns + ` FROM votings
		WHERE id = $1 AND closed = FALSE
		FOR UPDATE SKIP LOCKED`
	v, err := scanPgVoting(t.tx.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка блокировки голосования %d: %w", id, err)
	}
	return v, nil
}

func (t *pgTx) CloseVoting(ctx context.Context, id int64) error {
	_, err := t.tx.Exec(ctx, `UPDATE votings SET closed = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка закрытия голосования %d: %w", id, err)
	}
	return nil
}

func (t *pgTx) DeleteVoting(ctx context.Context, id int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM votings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления голосования %d: %w", id, err)
	}
	return nil
}

func (t *pgTx) AddKarma(ctx context.Context, userID string, delta, initial int) error {
	query := `
		INSERT INTO karma (user_id, points)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET points = karma.points + $3, updated_at = NOW()
	`
	_, err := t.tx.Exec(ctx, query, userID, initial+delta, delta)
	if err != nil {
		return fmt.Errorf("ошибка изменения кармы: %w", err)
	}
	return nil
}

func (t *pgTx) SetKarma(ctx context.Context, userID string, points int) error {
	query := `
		INSERT INTO karma (user_id, points)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET points = EXCLUDED.points, updated_at = NOW()
	`
	_, err := t.tx.Exec(ctx, query, userID, points)
	if err != nil {
		return fmt.Errorf("ошибка установки кармы: %w", err)
	}
	return nil
}

func scanPgVoting(row pgx.Row) (*Voting, error) {
	var v Voting
	err := row.Scan(
		&v.ID, &v.InitiatorID, &v.TargetID, &v.Channel, &v.MessageTS, &v.BotMessageTS,
		&v.PostedAt, &v.MessageText, &v.Delta, &v.CreatedAt, &v.Closed,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
