// Package transport реализует операции чата поверх Slack Web API (slack-go).
// Все запросы проходят через общий ограничитель частоты x/time/rate,
// чтобы проход по голосованиям не упирался в лимиты Slack.
package transport

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/slack-go/slack"
	"golang.org/x/time/rate"

	"serotonyl.ru/karmabot/internal/features/karma"
	"serotonyl.ru/karmabot/internal/words"
)

// API — методы slack.Client, которыми пользуется транспорт.
type API interface {
	AuthTestContext(ctx context.Context) (*slack.AuthTestResponse, error)
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	UpdateMessageContext(ctx context.Context, channelID, timestamp string, options ...slack.MsgOption) (string, string, string, error)
	GetUserInfoContext(ctx context.Context, user string) (*slack.User, error)
	GetConversationInfoContext(ctx context.Context, input *slack.GetConversationInfoInput) (*slack.Channel, error)
	GetReactionsContext(ctx context.Context, item slack.ItemRef, params slack.GetReactionsParameters) ([]slack.ItemReaction, error)
	OpenConversationContext(ctx context.Context, params *slack.OpenConversationParameters) (*slack.Channel, bool, bool, error)
}

// Ответы Slack, означающие, что сообщения больше нет.
var goneErrors = map[string]bool{
	"message_not_found": true,
	"channel_not_found": true,
	"thread_not_found":  true,
}

// Client — транспорт Slack.
type Client struct {
	api     API
	limiter *rate.Limiter
}

// New создаёт транспорт. limit — запросов в секунду, burst — размер всплеска.
func New(api API, limit rate.Limit, burst int) *Client {
	return &Client{api: api, limiter: rate.NewLimiter(limit, burst)}
}

func (c *Client) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("ожидание лимита Slack API: %w", err)
	}
	return nil
}

// BotUserID возвращает ID пользователя бота.
func (c *Client) BotUserID(ctx context.Context) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}
	resp, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return "", fmt.Errorf("auth.test: %w", err)
	}
	log.WithFields(log.Fields{"user": resp.User, "team": resp.Team}).Info("Авторизован в Slack")
	return resp.UserID, nil
}

func messageOptions(msg words.Message) []slack.MsgOption {
	params := slack.NewPostMessageParameters()
	params.LinkNames = 1
	return []slack.MsgOption{
		slack.MsgOptionPostMessageParameters(params),
		slack.MsgOptionAttachments(slack.Attachment{
			Color:      string(msg.Color),
			Text:       msg.Text,
			ImageURL:   msg.ImageURL,
			MarkdownIn: []string{"text"},
		}),
	}
}

// Post отправляет сообщение в канал; threadTS != "" — в тред.
func (c *Client) Post(ctx context.Context, channel string, msg words.Message, threadTS string) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}
	opts := messageOptions(msg)
	if threadTS != "" {
		opts = append(opts, slack.MsgOptionTS(threadTS))
	}
	_, ts, err := c.api.PostMessageContext(ctx, channel, opts...)
	if err != nil {
		return "", fmt.Errorf("chat.postMessage в %s: %w", channel, err)
	}
	return ts, nil
}

// Update заменяет ранее отправленное сообщение.
func (c *Client) Update(ctx context.Context, channel, ts string, msg words.Message) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	if _, _, _, err := c.api.UpdateMessageContext(ctx, channel, ts, messageOptions(msg)...); err != nil {
		return fmt.Errorf("chat.update %s/%s: %w", channel, ts, err)
	}
	return nil
}

// PostDirect отправляет личное сообщение пользователю.
func (c *Client) PostDirect(ctx context.Context, userID string, msg words.Message) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	ch, _, _, err := c.api.OpenConversationContext(ctx, &slack.OpenConversationParameters{Users: []string{userID}})
	if err != nil {
		return fmt.Errorf("conversations.open для %s: %w", userID, err)
	}
	_, err = c.Post(ctx, ch.ID, msg, "")
	return err
}

// LookupUserName возвращает display_name пользователя, если он пуст — имя аккаунта.
func (c *Client) LookupUserName(ctx context.Context, userID string) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}
	user, err := c.api.GetUserInfoContext(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("users.info %s: %w", userID, err)
	}
	if user.Profile.DisplayName != "" {
		return user.Profile.DisplayName, nil
	}
	return user.Name, nil
}

// LookupChannelName возвращает имя канала.
func (c *Client) LookupChannelName(ctx context.Context, channelID string) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}
	ch, err := c.api.GetConversationInfoContext(ctx, &slack.GetConversationInfoInput{ChannelID: channelID})
	if err != nil {
		return "", fmt.Errorf("conversations.info %s: %w", channelID, err)
	}
	return ch.Name, nil
}

// GetReactions суммирует реакции на сообщениях ts канала.
// (nil, nil) — одно из сообщений удалено; любая другая ошибка считается временной.
func (c *Client) GetReactions(ctx context.Context, channel string, ts ...string) (karma.Reactions, error) {
	total := karma.Reactions{}
	params := slack.NewGetReactionsParameters()
	params.Full = true

	for _, t := range ts {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}
		items, err := c.api.GetReactionsContext(ctx, slack.NewRefToMessage(channel, t), params)
		if isGone(err) {
			log.WithFields(log.Fields{"channel": channel, "ts": t}).Warn("Сообщение не найдено в Slack")
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reactions.get %s/%s: %w", channel, t, err)
		}
		for _, r := range items {
			total[r.Name] += r.Count
		}
	}
	return total, nil
}

func isGone(err error) bool {
	if err == nil {
		return false
	}
	var resp slack.SlackErrorResponse
	if errors.As(err, &resp) {
		return goneErrors[resp.Err]
	}
	return goneErrors[err.Error()]
}
