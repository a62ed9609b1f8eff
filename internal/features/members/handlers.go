// Package members — handlers.go обрабатывает вступление нового пользователя в команду Slack.
package members

import (
	"context"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/karmabot/internal/words"
)

// Messenger отправляет личное сообщение пользователю.
type Messenger interface {
	PostDirect(ctx context.Context, userID string, msg words.Message) error
}

// Handler обрабатывает события участников.
type Handler struct {
	service   *Service
	messenger Messenger
	format    *words.Format
}

// NewHandler создаёт обработчик событий участников.
func NewHandler(service *Service, messenger Messenger, format *words.Format) *Handler {
	return &Handler{service: service, messenger: messenger, format: format}
}

// HandleTeamJoin отправляет новичку справку по боту.
// Запись в кэше сбрасывается: у только что вступившего профиль ещё заполняется.
func (h *Handler) HandleTeamJoin(ctx context.Context, userID string) {
	h.service.Forget(userID)

	if err := h.messenger.PostDirect(ctx, userID, h.format.Hello()); err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Ошибка отправки приветствия")
		return
	}
	log.WithField("user_id", userID).Info("Новый участник получил приветствие")
}
