// Package karma — service.go содержит движок голосований: создание,
// подведение итогов по реакциям, очистку истории и доступ к карме.
package karma

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/karmabot/internal/common"
	"serotonyl.ru/karmabot/internal/metrics"
)

// ReactionSource возвращает реакции на сообщения канала, суммированные по emoji.
//
//   - (nil, nil) — хотя бы одно сообщение не найдено;
//   - (пустая карта, nil) — реакций нет;
//   - (nil, err) — временная ошибка, повторить позже.
type ReactionSource interface {
	GetReactions(ctx context.Context, channel string, ts ...string) (Reactions, error)
}

// Service — движок голосований и доступ к карме.
type Service struct {
	repo      Repository
	reactions ReactionSource
	settings  Settings
	clock     clockwork.Clock
}

// NewService создаёт сервис. clock == nil — системные часы.
func NewService(repo Repository, reactions ReactionSource, settings Settings, clock clockwork.Clock) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{repo: repo, reactions: reactions, settings: settings, clock: clock}
}

// Settings возвращает настройки, с которыми работает движок.
func (s *Service) Settings() Settings {
	return s.settings
}

// Check проверяет запрос на изменение кармы до анонса голосования.
func (s *Service) Check(initiatorID, targetID, botID string, delta int) error {
	err := SanityCheck(s.settings, initiatorID, targetID, botID, delta)
	if err != nil {
		metrics.VotingsRejected.WithLabelValues(rejectReason(err)).Inc()
	}
	return err
}

// Exists сообщает, создано ли уже голосование для сообщения.
func (s *Service) Exists(ctx context.Context, channel, messageTS string) (bool, error) {
	return s.repo.VotingExists(ctx, channel, messageTS)
}

// Create сохраняет открытое голосование. Анонс уже должен быть отправлен:
// BotMessageTS — его идентификатор.
// Повторный вызов для того же (MessageTS, Channel) возвращает common.ErrDuplicateVoting.
func (s *Service) Create(ctx context.Context, nv NewVoting) (*Voting, error) {
	if err := s.Check(nv.InitiatorID, nv.TargetID, nv.BotID, nv.Delta); err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	postedAt, ok := common.ParseMessageTS(nv.BotMessageTS)
	if !ok {
		postedAt = now
	}

	v := &Voting{
		InitiatorID:  nv.InitiatorID,
		TargetID:     nv.TargetID,
		Channel:      nv.Channel,
		MessageTS:    nv.MessageTS,
		BotMessageTS: nv.BotMessageTS,
		PostedAt:     postedAt,
		MessageText:  nv.Text,
		Delta:        nv.Delta,
		CreatedAt:    now,
	}

	err := s.repo.WithTx(ctx, func(tx Tx) error {
		inserted, err := tx.InsertVoting(ctx, v)
		if err != nil {
			return err
		}
		if !inserted {
			return common.ErrDuplicateVoting
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.VotingsCreated.Inc()
	log.WithFields(log.Fields{
		"voting_id": v.ID,
		"channel":   v.Channel,
		"initiator": v.InitiatorID,
		"target":    v.TargetID,
		"delta":     v.Delta,
	}).Info("Голосование создано")
	return v, nil
}

// SweepExpired подводит итоги голосований, чьё время истекло к моменту now.
//
// Каждое голосование обрабатывается отдельно: реакции запрашиваются без
// открытой транзакции, затем строка захватывается, повторно проверяется
// и закрывается в одной транзакции вместе с изменением кармы.
// Временная ошибка транспорта оставляет голосование открытым до следующего прохода.
// Ошибка хранилища прерывает проход; уже зафиксированные итоги остаются в отчёте.
func (s *Service) SweepExpired(ctx context.Context, now time.Time) (SweepReport, error) {
	var report SweepReport

	start := s.clock.Now()
	defer func() { metrics.SweepDuration.Observe(s.clock.Since(start).Seconds()) }()

	logger := log.WithField("sweep_id", uuid.NewString())

	candidates, err := s.repo.ListExpiredVotings(ctx, now.Add(-s.settings.VoteTimeout))
	if err != nil {
		return report, err
	}
	if len(candidates) == 0 {
		return report, nil
	}
	logger.WithField("candidates", len(candidates)).Debug("Подводим итоги голосований")

	for _, candidate := range candidates {
		vlog := logger.WithFields(log.Fields{"voting_id": candidate.ID, "channel": candidate.Channel})

		reactions, err := s.reactions.GetReactions(ctx, candidate.Channel, candidate.MessageTS, candidate.BotMessageTS)
		if err != nil {
			vlog.WithError(err).Warn("Не удалось получить реакции, голосование отложено")
			report.Deferred++
			metrics.VotingsDeferred.Inc()
			continue
		}

		var (
			claimed *Voting
			success bool
		)
		err = s.repo.WithTx(ctx, func(tx Tx) error {
			v, err := tx.ClaimOpenVoting(ctx, candidate.ID)
			if err != nil || v == nil {
				return err
			}
			claimed = v

			if reactions == nil {
				return tx.DeleteVoting(ctx, v.ID)
			}

			success = DetermineSuccess(reactions, s.settings.UpvoteEmoji, s.settings.DownvoteEmoji)
			if success {
				if err := tx.AddKarma(ctx, v.TargetID, v.Delta, s.settings.InitialValue); err != nil {
					return err
				}
			}
			return tx.CloseVoting(ctx, v.ID)
		})
		if err != nil {
			vlog.WithError(err).Error("Ошибка хранилища, проход прерван")
			return report, fmt.Errorf("голосование %d: %w", candidate.ID, err)
		}

		switch {
		case claimed == nil:
			// Закрыто или занято другим проходом
			continue
		case reactions == nil:
			vlog.WithField("message_ts", claimed.MessageTS).Error("Сообщение голосования не найдено, голосование удалено")
			report.Dropped = append(report.Dropped, *claimed)
			metrics.VotingsFinished.WithLabelValues("dropped").Inc()
		default:
			claimed.Closed = true
			report.Resolved = append(report.Resolved, Outcome{Voting: *claimed, Success: success})
			metrics.VotingsFinished.WithLabelValues(outcomeLabel(success)).Inc()
			vlog.WithFields(log.Fields{
				"target":  claimed.TargetID,
				"delta":   claimed.Delta,
				"success": success,
			}).Info("Голосование завершено")
		}
	}

	return report, nil
}

// SweepRetention удаляет закрытые голосования старше KeepHistory.
func (s *Service) SweepRetention(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.repo.DeleteClosedBefore(ctx, now.Add(-s.settings.KeepHistory))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.WithField("deleted", n).Info("Удалены старые голосования")
	}
	return n, nil
}

// Get возвращает карму пользователя; для неизвестного — начальное значение.
// Запись при этом не создаётся.
func (s *Service) Get(ctx context.Context, userID string) (int, error) {
	k, err := s.repo.GetKarma(ctx, userID)
	if errors.Is(err, common.ErrNotFound) {
		return s.settings.InitialValue, nil
	}
	if err != nil {
		return 0, err
	}
	return k.Points, nil
}

// Set устанавливает карму пользователя. Права проверяет вызывающий.
func (s *Service) Set(ctx context.Context, userID string, points int) error {
	err := s.repo.WithTx(ctx, func(tx Tx) error {
		return tx.SetKarma(ctx, userID, points)
	})
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"user_id": userID, "points": points}).Info("Карма установлена")
	return nil
}

// Digest возвращает ненулевую карму по убыванию.
func (s *Service) Digest(ctx context.Context) ([]Karma, error) {
	return s.repo.ListNonZeroKarma(ctx)
}

// Pending возвращает открытые голосования по времени анонса.
func (s *Service) Pending(ctx context.Context) ([]Voting, error) {
	return s.repo.ListOpenVotings(ctx)
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, common.ErrSelfKarmaDenied):
		return "self"
	case errors.Is(err, common.ErrRoboTargetDenied):
		return "robot"
	case errors.Is(err, common.ErrDeltaTooLarge):
		return "max_diff"
	default:
		return "other"
	}
}

func outcomeLabel(success bool) string {
	if success {
		return "success"
	}
	return "fail"
}
