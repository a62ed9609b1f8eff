// Package filters решает, какие события из Slack доходят до обработчиков.
package filters

import (
	"strings"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/karmabot/internal/features/karma"
)

// ChatFilter пропускает только упоминания, адресованные боту в публичных каналах.
type ChatFilter struct {
	botID string
}

func NewChatFilter(botID string) *ChatFilter {
	return &ChatFilter{botID: botID}
}

// CheckMention проверяет упоминание. fromBot — событие прислал другой бот.
func (f *ChatFilter) CheckMention(m karma.Mention, fromBot bool) bool {
	logger := log.WithFields(log.Fields{
		"component": "ChatFilter",
		"channel":   m.Channel,
		"user_id":   m.UserID,
	})

	if f.botID == "" {
		logger.Error("botID пуст (auth.test не выполнен?)")
		return false
	}
	if m.UserID == "" || m.Channel == "" || m.Text == "" || m.TS == "" {
		logger.Info("skip: не хватает полей события")
		return false
	}
	if fromBot {
		logger.Debug("skip: сообщение от бота")
		return false
	}

	// Приватные группы не обслуживаем
	if IsGroup(m.Channel) {
		logger.Info("skip: приватная группа")
		return false
	}

	// Только сообщения, которые начинаются с упоминания бота
	first, ok := karma.ParseMention(m.Text)
	if !ok || first != f.botID {
		logger.WithField("text", m.Text).Info("skip: сообщение не для бота")
		return false
	}
	return true
}

// CheckCommand проверяет вызов /karma.
func (f *ChatFilter) CheckCommand(c karma.SlashCommand) bool {
	if c.ChannelID == "" {
		log.WithField("component", "ChatFilter").Warn("slash command без channel_id")
		return false
	}
	return true
}

// IsGroup сообщает, что канал — приватная группа (ID начинается с G).
func IsGroup(channelID string) bool {
	return strings.HasPrefix(channelID, "G")
}
