// Package members — service.go отдаёт имена пользователей и каналов,
// запрашивая Slack только при промахе кэша или устаревшей записи.
package members

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
)

// Lookup запрашивает имена в Slack (users.info, conversations.info).
type Lookup interface {
	LookupUserName(ctx context.Context, userID string) (string, error)
	LookupChannelName(ctx context.Context, channelID string) (string, error)
}

// Service — справочник имён с TTL-кэшем.
type Service struct {
	repo   *Repository
	lookup Lookup
	ttl    time.Duration
	clock  clockwork.Clock
}

// NewService создаёт справочник. clock == nil — системные часы.
func NewService(repo *Repository, lookup Lookup, ttl time.Duration, clock clockwork.Clock) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{repo: repo, lookup: lookup, ttl: ttl, clock: clock}
}

// UserName возвращает display_name пользователя.
// Если Slack недоступен — устаревшее имя из кэша или сам ID.
func (s *Service) UserName(ctx context.Context, userID string) string {
	return s.resolve(ctx, KindUser, userID, s.lookup.LookupUserName)
}

// ChannelName возвращает имя канала.
func (s *Service) ChannelName(ctx context.Context, channelID string) string {
	return s.resolve(ctx, KindChannel, channelID, s.lookup.LookupChannelName)
}

// Forget удаляет пользователя из кэша (например, после смены профиля).
func (s *Service) Forget(userID string) {
	s.repo.Delete(KindUser, userID)
}

func (s *Service) resolve(ctx context.Context, kind Kind, id string,
	fetch func(context.Context, string) (string, error)) string {
	now := s.clock.Now()
	cached, ok := s.repo.Get(kind, id)
	if ok && cached.Fresh(now, s.ttl) {
		return cached.Name
	}

	name, err := fetch(ctx, id)
	if err != nil || name == "" {
		log.WithError(err).WithField("id", id).Warn("Не удалось получить имя из Slack")
		if ok {
			return cached.Name
		}
		return id
	}

	s.repo.Put(kind, Entry{ID: id, Name: name, FetchedAt: now})
	return name
}
