// Package karma реализует систему репутации (кармы) с голосованием реакциями.
// models.go описывает записи кармы, голосований и настройки движка.
package karma

import "time"

// Karma хранит карму пользователя.
type Karma struct {
	ID        int64     `db:"id"`
	UserID    string    `db:"user_id"`
	Points    int       `db:"points"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Voting — голосование за изменение кармы одного пользователя.
// Пара (MessageTS, Channel) уникальна среди всех когда-либо созданных голосований.
type Voting struct {
	ID          int64  `db:"id"`
	InitiatorID string `db:"initiator_id"`
	TargetID    string `db:"target_id"`
	Channel     string `db:"channel"`
	// Исходное сообщение, вызвавшее голосование
	MessageTS string `db:"message_ts"`
	// Анонс бота; реакции на обоих сообщениях идут в зачёт
	BotMessageTS string    `db:"bot_message_ts"`
	PostedAt     time.Time `db:"posted_at"`
	MessageText  string    `db:"message_text"`
	Delta        int       `db:"delta"`
	CreatedAt    time.Time `db:"created_at"`
	Closed       bool      `db:"closed"`
}

// ExpiresAt возвращает момент, когда голосование можно подводить.
func (v Voting) ExpiresAt(timeout time.Duration) time.Time {
	return v.PostedAt.Add(timeout)
}

// NewVoting — входные данные для создания голосования.
type NewVoting struct {
	InitiatorID  string
	TargetID     string
	BotID        string
	Channel      string
	Text         string
	MessageTS    string
	BotMessageTS string
	Delta        int
}

// Settings — снимок настроек кармы, с которыми работает движок.
type Settings struct {
	InitialValue     int
	MaxDiff          int
	SelfKarmaAllowed bool
	VoteTimeout      time.Duration
	KeepHistory      time.Duration
	UpvoteEmoji      []string
	DownvoteEmoji    []string
}

// Reactions — количество реакций по имени emoji.
// nil (в отличие от пустой карты) означает, что сообщение не найдено.
type Reactions map[string]int

// Outcome — итог закрытого голосования.
type Outcome struct {
	Voting  Voting
	Success bool
}

// SweepReport — результат одного прохода SweepExpired.
type SweepReport struct {
	// Закрытые голосования с итогом
	Resolved []Outcome
	// Удалённые голосования, чьи сообщения пропали
	Dropped []Voting
	// Отложенные до следующего тика из-за временной ошибки транспорта
	Deferred int
}
