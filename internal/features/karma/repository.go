// Package karma — repository.go описывает хранилище кармы и голосований.
// Реализации: PgRepository (PostgreSQL, pgx) и SQLiteRepository (файл SQLite).
package karma

import (
	"context"
	"time"
)

// Repository — хранилище кармы и голосований.
// Операции вне WithTx выполняются отдельными запросами и только читают данные,
// кроме DeleteClosedBefore, который выполняется одним оператором.
type Repository interface {
	// WithTx выполняет fn в одной транзакции. Ошибка fn откатывает транзакцию.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// GetKarma возвращает карму пользователя или common.ErrNotFound.
	GetKarma(ctx context.Context, userID string) (*Karma, error)
	// ListNonZeroKarma возвращает ненулевую карму по убыванию, при равенстве — по порядку вставки.
	ListNonZeroKarma(ctx context.Context) ([]Karma, error)

	// VotingExists проверяет, есть ли голосование для сообщения.
	VotingExists(ctx context.Context, channel, messageTS string) (bool, error)
	// ListOpenVotings возвращает открытые голосования по времени анонса.
	ListOpenVotings(ctx context.Context) ([]Voting, error)
	// ListExpiredVotings возвращает открытые голосования с анонсом не позже cutoff.
	// Это только кандидаты: перед подведением итога строку нужно захватить через Tx.ClaimOpenVoting.
	ListExpiredVotings(ctx context.Context, cutoff time.Time) ([]Voting, error)
	// DeleteClosedBefore удаляет закрытые голосования, созданные не позже cutoff.
	DeleteClosedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Tx — операции внутри транзакции.
type Tx interface {
	// InsertVoting вставляет голосование. false — такое (message_ts, channel) уже есть.
	InsertVoting(ctx context.Context, v *Voting) (bool, error)
	// ClaimOpenVoting блокирует открытое голосование для подведения итога.
	// Возвращает nil, если голосование уже закрыто, удалено или занято другим проходом.
	ClaimOpenVoting(ctx context.Context, id int64) (*Voting, error)
	// CloseVoting помечает голосование закрытым.
	CloseVoting(ctx context.Context, id int64) error
	// DeleteVoting удаляет голосование.
	DeleteVoting(ctx context.Context, id int64) error

	// AddKarma прибавляет delta к карме; отсутствующая запись создаётся со значением initial+delta.
	AddKarma(ctx context.Context, userID string, delta, initial int) error
	// SetKarma устанавливает карму (upsert).
	SetKarma(ctx context.Context, userID string, points int) error
}
