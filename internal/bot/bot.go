// Package bot содержит главный цикл бота: приём событий Slack через socket mode,
// фильтрацию и раздачу обработчикам.
package bot

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"serotonyl.ru/karmabot/internal/bot/filters"
	"serotonyl.ru/karmabot/internal/bot/middleware"
	"serotonyl.ru/karmabot/internal/features/karma"
	"serotonyl.ru/karmabot/internal/metrics"
)

// Socket — соединение socket mode (socketmode.Client).
type Socket interface {
	RunContext(ctx context.Context) error
	Ack(req socketmode.Request, payload ...interface{})
}

// KarmaHandler обрабатывает упоминания и /karma.
type KarmaHandler interface {
	HandleMention(ctx context.Context, m karma.Mention)
	HandleCommand(ctx context.Context, c karma.SlashCommand)
}

// MemberHandler обрабатывает вступление в команду.
type MemberHandler interface {
	HandleTeamJoin(ctx context.Context, userID string)
}

// Bot — главная структура бота, объединяющая все компоненты.
type Bot struct {
	socket Socket
	events <-chan socketmode.Event

	chatFilter  *filters.ChatFilter
	rateLimiter *middleware.RateLimiter

	karmaHandler  KarmaHandler
	memberHandler MemberHandler

	// ограничитель параллелизма обработки событий
	inflight chan struct{}
	wg       sync.WaitGroup
}

// New создаёт новый экземпляр бота. events — канал событий того же сокета.
func New(
	socket Socket,
	events <-chan socketmode.Event,
	maxInFlight int,
	chatFilter *filters.ChatFilter,
	rateLimiter *middleware.RateLimiter,
	karmaHandler KarmaHandler,
	memberHandler MemberHandler,
) *Bot {
	if maxInFlight <= 0 {
		maxInFlight = 32
	}

	return &Bot{
		socket:        socket,
		events:        events,
		chatFilter:    chatFilter,
		rateLimiter:   rateLimiter,
		karmaHandler:  karmaHandler,
		memberHandler: memberHandler,
		inflight:      make(chan struct{}, maxInFlight),
	}
}

// Start запускает соединение socket mode и обрабатывает события до отмены ctx.
// Возвращает управление, когда все начатые обработчики завершились.
func (b *Bot) Start(ctx context.Context) {
	go func() {
		if err := b.socket.RunContext(ctx); err != nil && ctx.Err() == nil {
			log.WithError(err).Error("Соединение socket mode завершилось с ошибкой")
		}
	}()

	log.WithField("max_inflight", cap(b.inflight)).Info("Бот запущен и ожидает события...")

	defer b.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			log.Info("Бот останавливается (ctx done)...")
			return

		case evt, ok := <-b.events:
			if !ok {
				log.Info("Канал событий закрыт, бот остановлен")
				return
			}
			b.dispatch(ctx, evt)
		}
	}
}

// dispatch подтверждает событие и передаёт его обработчику в отдельной горутине.
func (b *Bot) dispatch(ctx context.Context, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnecting:
		log.Info("Подключение к Slack...")
	case socketmode.EventTypeConnected:
		log.Info("Подключено к Slack")
	case socketmode.EventTypeConnectionError:
		log.WithField("data", evt.Data).Warn("Ошибка соединения со Slack, переподключение")

	case socketmode.EventTypeEventsAPI:
		b.ack(evt)
		ev, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok || ev.Type != slackevents.CallbackEvent {
			return
		}
		b.spawn(ctx, ev.InnerEvent.Type, func(ctx context.Context) { b.handleInner(ctx, ev.InnerEvent) })

	case socketmode.EventTypeSlashCommand:
		b.ack(evt)
		cmd, ok := evt.Data.(slack.SlashCommand)
		if !ok {
			return
		}
		b.spawn(ctx, "slash_command", func(ctx context.Context) { b.handleCommand(ctx, cmd) })
	}
}

func (b *Bot) ack(evt socketmode.Event) {
	if evt.Request != nil {
		b.socket.Ack(*evt.Request)
	}
}

// spawn запускает обработчик с учётом лимита параллелизма.
func (b *Bot) spawn(ctx context.Context, kind string, fn func(ctx context.Context)) {
	select {
	case b.inflight <- struct{}{}:
	case <-ctx.Done():
		return
	}
	metrics.EventsInflight.Inc()
	b.wg.Add(1)

	go func() {
		defer func() {
			metrics.EventsInflight.Dec()
			<-b.inflight
			b.wg.Done()
		}()
		defer middleware.RecoverFromPanic(kind)
		fn(ctx)
	}()
}

func (b *Bot) handleInner(ctx context.Context, inner slackevents.EventsAPIInnerEvent) {
	switch ev := inner.Data.(type) {
	case *slackevents.AppMentionEvent:
		m := karma.Mention{UserID: ev.User, Channel: ev.Channel, Text: ev.Text, TS: ev.TimeStamp}
		middleware.LogEvent(inner.Type, m.UserID, m.Channel, m.Text)

		if !b.chatFilter.CheckMention(m, ev.BotID != "") {
			metrics.EventsHandled.WithLabelValues(inner.Type, "skipped").Inc()
			return
		}
		if !b.rateLimiter.Allow(m.UserID) {
			log.WithField("user_id", m.UserID).Debug("rate limited")
			metrics.EventsHandled.WithLabelValues(inner.Type, "limited").Inc()
			return
		}
		b.karmaHandler.HandleMention(ctx, m)
		metrics.EventsHandled.WithLabelValues(inner.Type, "ok").Inc()

	case *slackevents.TeamJoinEvent:
		if ev.User == nil || ev.User.ID == "" {
			return
		}
		middleware.LogEvent(inner.Type, ev.User.ID, "", "")
		b.memberHandler.HandleTeamJoin(ctx, ev.User.ID)
		metrics.EventsHandled.WithLabelValues(inner.Type, "ok").Inc()

	default:
		log.WithField("event", inner.Type).Debug("Событие не обрабатывается")
	}
}

func (b *Bot) handleCommand(ctx context.Context, cmd slack.SlashCommand) {
	c := karma.SlashCommand{
		UserID:    cmd.UserID,
		UserName:  cmd.UserName,
		ChannelID: cmd.ChannelID,
		Text:      cmd.Text,
	}
	middleware.LogEvent(cmd.Command, c.UserID, c.ChannelID, c.Text)

	if !b.chatFilter.CheckCommand(c) {
		metrics.EventsHandled.WithLabelValues("slash_command", "skipped").Inc()
		return
	}
	if !b.rateLimiter.Allow(c.UserID) {
		log.WithField("user_id", c.UserID).Debug("rate limited")
		metrics.EventsHandled.WithLabelValues("slash_command", "limited").Inc()
		return
	}
	b.karmaHandler.HandleCommand(ctx, c)
	metrics.EventsHandled.WithLabelValues("slash_command", "ok").Inc()
}
