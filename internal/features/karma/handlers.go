// Package karma — handlers.go связывает движок с чатом: упоминания бота,
// команды /karma, дайджест и уведомления об итогах голосований.
package karma

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/karmabot/internal/common"
	"serotonyl.ru/karmabot/internal/metrics"
	"serotonyl.ru/karmabot/internal/words"
)

// Transport — операции чата, нужные обработчику.
type Transport interface {
	ReactionSource
	// Post отправляет сообщение; threadTS != "" — ответ в треде. Возвращает ts сообщения.
	Post(ctx context.Context, channel string, msg words.Message, threadTS string) (string, error)
	// Update заменяет текст ранее отправленного сообщения.
	Update(ctx context.Context, channel, ts string, msg words.Message) error
}

// Names возвращает отображаемые имена; при ошибке — сам ID.
type Names interface {
	UserName(ctx context.Context, userID string) string
	ChannelName(ctx context.Context, channelID string) string
}

// AdminCheck сообщает, может ли пользователь выполнять команды админа.
type AdminCheck func(userID, userName string) bool

// Mention — упоминание бота в канале.
type Mention struct {
	UserID  string
	Channel string
	Text    string
	TS      string
}

// SlashCommand — вызов /karma.
type SlashCommand struct {
	UserID    string
	UserName  string
	ChannelID string
	Text      string
}

// Handler обрабатывает события кармы.
type Handler struct {
	service   *Service
	transport Transport
	names     Names
	format    *words.Format
	isAdmin   AdminCheck
	loc       *time.Location
	botID     string
}

// NewHandler создаёт обработчик кармы. botID — ID пользователя бота в Slack.
func NewHandler(service *Service, transport Transport, names Names, format *words.Format,
	isAdmin AdminCheck, loc *time.Location, botID string) *Handler {
	return &Handler{
		service:   service,
		transport: transport,
		names:     names,
		format:    format,
		isAdmin:   isAdmin,
		loc:       loc,
		botID:     botID,
	}
}

// BotID возвращает ID бота.
func (h *Handler) BotID() string {
	return h.botID
}

// HandleMention разбирает «@bot @user +++», проверяет запрос,
// публикует анонс в треде и сохраняет голосование.
func (h *Handler) HandleMention(ctx context.Context, m Mention) {
	logger := log.WithFields(log.Fields{"channel": m.Channel, "user_id": m.UserID, "ts": m.TS})

	change, ok := ParseKarmaChange(m.Text)
	if !ok {
		metrics.VotingsRejected.WithLabelValues("parse").Inc()
		logger.Debug("Запрос на изменение кармы не распознан")
		h.post(ctx, m.Channel, h.format.ParsingError(), m.TS)
		return
	}

	if err := h.service.Check(m.UserID, change.TargetID, change.BotID, change.Delta); err != nil {
		logger.WithError(err).Info("Запрос на изменение кармы отклонён")
		h.post(ctx, m.Channel, h.checkError(err), m.TS)
		return
	}

	// Повторная доставка события: анонс уже был
	exists, err := h.service.Exists(ctx, m.Channel, m.TS)
	if err != nil {
		logger.WithError(err).Error("Ошибка проверки голосования")
		return
	}
	if exists {
		logger.Debug("Голосование для сообщения уже существует")
		return
	}

	username := h.names.UserName(ctx, change.TargetID)
	botTS, err := h.transport.Post(ctx, m.Channel, h.format.NewVoting(username, change.Delta), m.TS)
	if err != nil {
		logger.WithError(err).Error("Ошибка отправки анонса голосования")
		return
	}

	_, err = h.service.Create(ctx, NewVoting{
		InitiatorID:  m.UserID,
		TargetID:     change.TargetID,
		BotID:        change.BotID,
		Channel:      m.Channel,
		Text:         m.Text,
		MessageTS:    m.TS,
		BotMessageTS: botTS,
		Delta:        change.Delta,
	})
	switch {
	case errors.Is(err, common.ErrDuplicateVoting):
		logger.Warn("Голосование создано параллельной обработкой того же события")
	case err != nil:
		logger.WithError(err).Error("Ошибка создания голосования")
	}
}

// HandleCommand выполняет команду /karma.
func (h *Handler) HandleCommand(ctx context.Context, c SlashCommand) {
	cmd := ParseCommand(c.Text)
	metrics.CommandsHandled.WithLabelValues(cmd.Kind.String()).Inc()

	logger := log.WithFields(log.Fields{
		"command": cmd.Kind.String(),
		"user_id": c.UserID,
		"channel": c.ChannelID,
	})
	logger.Info("Обработка команды")

	if cmd.AdminOnly && !h.isAdmin(c.UserID, c.UserName) {
		logger.WithError(common.ErrNotAdmin).Warn("Команда доступна только админам")
		h.post(ctx, c.ChannelID, h.format.NotAdminError(), "")
		return
	}

	if err := h.execute(ctx, c.ChannelID, cmd); err != nil {
		logger.WithError(err).Error("Ошибка выполнения команды")
	}
}

func (h *Handler) execute(ctx context.Context, channel string, cmd Command) error {
	switch cmd.Kind {
	case CmdGet:
		points, err := h.service.Get(ctx, cmd.UserID)
		if err != nil {
			return err
		}
		h.post(ctx, channel, h.format.ReportKarma(h.names.UserName(ctx, cmd.UserID), points), "")
	case CmdSet:
		if err := h.service.Set(ctx, cmd.UserID, cmd.Points); err != nil {
			return err
		}
		h.post(ctx, channel, h.format.ReportKarma(h.names.UserName(ctx, cmd.UserID), cmd.Points), "")
	case CmdDigest:
		return h.ReportDigest(ctx, channel)
	case CmdPending:
		return h.reportPending(ctx, channel)
	case CmdConfig:
		h.post(ctx, channel, h.format.Config(h.configView()), "")
	case CmdHelp:
		h.post(ctx, channel, h.format.Hello(), "")
	default:
		h.post(ctx, channel, h.format.CmdError(), "")
		return common.ErrUnknownCommand
	}
	return nil
}

// ReportDigest публикует рейтинг ненулевой кармы в канал.
func (h *Handler) ReportDigest(ctx context.Context, channel string) error {
	records, err := h.service.Digest(ctx)
	if err != nil {
		return err
	}
	rows := make([]words.DigestRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, words.DigestRow{Name: h.names.UserName(ctx, r.UserID), Points: r.Points})
	}
	_, err = h.transport.Post(ctx, channel, h.format.Digest(rows), "")
	return err
}

func (h *Handler) reportPending(ctx context.Context, channel string) error {
	votings, err := h.service.Pending(ctx)
	if err != nil {
		return err
	}
	timeout := h.service.Settings().VoteTimeout
	rows := make([]words.PendingRow, 0, len(votings))
	for _, v := range votings {
		rows = append(rows, words.PendingRow{
			Initiator: h.names.UserName(ctx, v.InitiatorID),
			Target:    h.names.UserName(ctx, v.TargetID),
			Channel:   h.names.ChannelName(ctx, v.Channel),
			Points:    v.Delta,
			Expires:   common.FormatDateTime(v.ExpiresAt(timeout), h.loc),
		})
	}
	h.post(ctx, channel, h.format.Pending(rows), "")
	return nil
}

// ProcessExpired подводит итоги истёкших голосований, обновляет анонсы
// и удаляет старую историю. Вызывается планировщиком на каждом тике.
func (h *Handler) ProcessExpired(ctx context.Context, now time.Time) error {
	report, sweepErr := h.service.SweepExpired(ctx, now)

	// Итоги, зафиксированные до ошибки, всё равно публикуем
	for _, o := range report.Resolved {
		v := o.Voting
		msg := h.format.VotingResult(h.names.UserName(ctx, v.TargetID), v.Delta, o.Success)
		if err := h.transport.Update(ctx, v.Channel, v.BotMessageTS, msg); err != nil {
			log.WithError(err).WithField("voting_id", v.ID).Warn("Не удалось обновить анонс голосования")
		}
	}

	_, retentionErr := h.service.SweepRetention(ctx, now)
	return errors.Join(sweepErr, retentionErr)
}

func (h *Handler) configView() words.Settings {
	s := h.service.Settings()
	return words.Settings{
		InitialValue: s.InitialValue,
		MaxDiff:      s.MaxDiff,
		SelfKarma:    s.SelfKarmaAllowed,
		VoteTimeout:  s.VoteTimeout,
		KeepHistory:  s.KeepHistory,
	}
}

func (h *Handler) checkError(err error) words.Message {
	switch {
	case errors.Is(err, common.ErrSelfKarmaDenied):
		return h.format.StrangeError()
	case errors.Is(err, common.ErrRoboTargetDenied):
		return h.format.RoboError()
	case errors.Is(err, common.ErrDeltaTooLarge):
		return h.format.MaxDiffError(h.service.Settings().MaxDiff)
	default:
		return h.format.ParsingError()
	}
}

func (h *Handler) post(ctx context.Context, channel string, msg words.Message, threadTS string) {
	if _, err := h.transport.Post(ctx, channel, msg, threadTS); err != nil {
		log.WithError(err).WithField("channel", channel).Error("Ошибка отправки сообщения")
	}
}
