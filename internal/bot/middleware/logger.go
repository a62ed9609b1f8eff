// Package middleware содержит промежуточные обработчики для логирования,
// восстановления после паники и rate-limiting.
package middleware

import (
	log "github.com/sirupsen/logrus"
)

// LogEvent логирует входящее событие Slack.
// Записывает: тип, user_id, канал, текст (первые 50 символов).
func LogEvent(kind, userID, channel, text string) {
	runes := []rune(text)
	if len(runes) > 50 {
		text = string(runes[:50]) + "..."
	}

	log.WithFields(log.Fields{
		"event":   kind,
		"user_id": userID,
		"channel": channel,
		"text":    text,
	}).Debug("Входящее событие")
}
