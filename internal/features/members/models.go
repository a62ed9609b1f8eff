// Package members хранит отображаемые имена пользователей и каналов Slack.
// models.go описывает запись кэша имён.
package members

import "time"

// Entry — закэшированное имя пользователя или канала.
type Entry struct {
	ID        string    // ID в Slack (U123, C123)
	Name      string    // display_name пользователя или имя канала
	FetchedAt time.Time // Когда имя получено из Slack
}

// Fresh сообщает, не устарела ли запись к моменту now.
func (e Entry) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.FetchedAt) < ttl
}
