// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: открывает хранилище, создаёт транспорт Slack,
// сервисы, обработчики и собирает всё в один объект Bot.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
	"golang.org/x/time/rate"

	"serotonyl.ru/karmabot/internal/backup"
	"serotonyl.ru/karmabot/internal/bot"
	"serotonyl.ru/karmabot/internal/bot/filters"
	"serotonyl.ru/karmabot/internal/bot/middleware"
	"serotonyl.ru/karmabot/internal/common"
	"serotonyl.ru/karmabot/internal/config"
	"serotonyl.ru/karmabot/internal/db/postgres"
	"serotonyl.ru/karmabot/internal/db/sqlite"
	"serotonyl.ru/karmabot/internal/features/karma"
	"serotonyl.ru/karmabot/internal/features/members"
	"serotonyl.ru/karmabot/internal/jobs"
	"serotonyl.ru/karmabot/internal/transport"
	"serotonyl.ru/karmabot/internal/words"
)

// Store — открытое хранилище кармы.
type Store struct {
	Repo karma.Repository
	// SQL задан только для SQLite (нужен для резервных копий)
	SQL  *sql.DB
	pool *pgxpool.Pool
}

// Close закрывает соединения с базой.
func (s *Store) Close() {
	if s.SQL != nil {
		if err := s.SQL.Close(); err != nil {
			log.WithError(err).Warn("Ошибка закрытия SQLite")
		}
	}
	if s.pool != nil {
		s.pool.Close()
	}
}

// OpenStore открывает хранилище согласно DB_DRIVER и применяет миграции.
// Для SQLite сначала восстанавливает файл базы из копии, если его нет.
func OpenStore(ctx context.Context, cfg *config.Config) (*Store, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
		}
		if err := postgres.Migrate(ctx, pool, postgres.Migrations); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ошибка миграций: %w", err)
		}
		return &Store{Repo: karma.NewPgRepository(pool), pool: pool}, nil

	default:
		if cfg.BackupEnabled() {
			if err := restore(ctx, cfg); err != nil {
				return nil, err
			}
		}
		db, err := sqlite.Open(ctx, cfg.DBPath)
		if err != nil {
			return nil, err
		}
		return &Store{Repo: karma.NewSQLiteRepository(db), SQL: db}, nil
	}
}

func restore(ctx context.Context, cfg *config.Config) error {
	remote, err := newRemote(ctx, cfg)
	if err != nil {
		return err
	}
	if _, err := backup.Restore(ctx, cfg.DBPath, cfg.BackupFile(), cfg.BackupKey, remote); err != nil {
		return fmt.Errorf("ошибка восстановления базы: %w", err)
	}
	return nil
}

// newRemote возвращает S3-хранилище копий или nil, если бакет не задан.
func newRemote(ctx context.Context, cfg *config.Config) (backup.Remote, error) {
	if cfg.BackupS3Bucket == "" {
		return nil, nil
	}
	remote, err := backup.NewS3Remote(ctx, cfg.BackupS3Bucket, cfg.BackupS3Key)
	if err != nil {
		return nil, err
	}
	return remote, nil
}

// Core — всё, что нужно для работы с кармой без приёма событий:
// бот и karmactl собирают его одинаково.
type Core struct {
	Config    *config.Config
	Store     *Store
	SlackAPI  *slack.Client
	Transport *transport.Client
	BotID     string
	Format    *words.Format
	Location  *time.Location

	Members       *members.Service
	MemberHandler *members.Handler
	Karma         *karma.Service
	KarmaHandler  *karma.Handler
}

// KarmaSettings переводит конфигурацию в настройки движка.
func KarmaSettings(cfg *config.Config) karma.Settings {
	return karma.Settings{
		InitialValue:     cfg.KarmaInitialValue,
		MaxDiff:          cfg.KarmaMaxDiff,
		SelfKarmaAllowed: cfg.KarmaSelfKarma,
		VoteTimeout:      cfg.KarmaVoteTimeout,
		KeepHistory:      cfg.KarmaKeepHistory,
		UpvoteEmoji:      cfg.KarmaUpvoteEmoji,
		DownvoteEmoji:    cfg.KarmaDownvoteEmoji,
	}
}

// NewCore открывает хранилище, авторизуется в Slack и создаёт сервисы.
// Порядок инициализации важен — компоненты зависят друг от друга.
func NewCore(ctx context.Context, cfg *config.Config) (*Core, error) {
	// === 1. База данных ===
	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// === 2. Slack Web API ===
	api := slack.New(cfg.SlackBotToken,
		slack.OptionAppLevelToken(cfg.SlackAppToken),
		slack.OptionDebug(cfg.AppEnv == "development" && cfg.AppLogLevel == "trace"),
	)
	tr := transport.New(api, rate.Limit(cfg.SlackRateLimit), cfg.SlackRateBurst)
	botID, err := tr.BotUserID(ctx)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("ошибка авторизации в Slack: %w", err)
	}

	// === 3. Сервисы ===
	loc := common.LoadLocation(cfg.AppTimezone)
	settings := KarmaSettings(cfg)
	format := words.New(cfg.AppLang, settings.UpvoteEmoji, settings.DownvoteEmoji, settings.VoteTimeout)
	clock := clockwork.NewRealClock()

	memberService := members.NewService(members.NewRepository(), tr, cfg.NamesCacheTTL, clock)
	karmaService := karma.NewService(store.Repo, tr, settings, clock)

	// === 4. Обработчики ===
	karmaHandler := karma.NewHandler(karmaService, tr, memberService, format, cfg.IsAdmin, loc, botID)
	memberHandler := members.NewHandler(memberService, tr, format)

	return &Core{
		Config:        cfg,
		Store:         store,
		SlackAPI:      api,
		Transport:     tr,
		BotID:         botID,
		Format:        format,
		Location:      loc,
		Members:       memberService,
		MemberHandler: memberHandler,
		Karma:         karmaService,
		KarmaHandler:  karmaHandler,
	}, nil
}

// App содержит все компоненты приложения.
type App struct {
	*Core
	Bot         *bot.Bot
	Scheduler   *jobs.Scheduler
	Metrics     *http.Server
	rateLimiter *middleware.RateLimiter
}

// New создаёт и инициализирует приложение.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	core, err := NewCore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// === 5. Фильтры и socket mode ===
	chatFilter := filters.NewChatFilter(core.BotID)
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow, nil)
	socket := socketmode.New(core.SlackAPI)

	b := bot.New(socket, socket.Events, cfg.BotMaxInflight,
		chatFilter, rateLimiter, core.KarmaHandler, core.MemberHandler)

	// === 6. Планировщик задач ===
	var backuper jobs.Backuper
	if cfg.BackupEnabled() {
		remote, err := newRemote(ctx, cfg)
		if err != nil {
			rateLimiter.Close()
			core.Store.Close()
			return nil, err
		}
		backuper = backup.NewService(core.Store.SQL, cfg.BackupKey, cfg.BackupFile(), remote)
	}
	scheduler := NewScheduler(core, backuper)

	application := &App{
		Core:        core,
		Bot:         b,
		Scheduler:   scheduler,
		rateLimiter: rateLimiter,
	}

	// === 7. Метрики ===
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		application.Metrics = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	return application, nil
}

// NewScheduler собирает планировщик из конфигурации. backuper может быть nil.
func NewScheduler(core *Core, backuper jobs.Backuper) *jobs.Scheduler {
	cfg := core.Config
	return jobs.NewScheduler(jobs.Config{
		MaintenanceCron: cfg.MaintenanceCron,
		DigestChannel:   cfg.DigestChannel,
		DigestDay:       cfg.DigestDay,
		DigestHour:      cfg.DigestHour,
		DigestMinute:    cfg.DigestMinute,
		BackupCron:      cfg.BackupCron,
	}, core.Location, nil, core.KarmaHandler, core.KarmaHandler, backuper)
}

// ServeMetrics отдаёт /metrics до отмены ctx. Без METRICS_ADDR сразу возвращает nil.
func (a *App) ServeMetrics(ctx context.Context) error {
	if a.Metrics == nil {
		return nil
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.Metrics.Shutdown(shutdownCtx)
	}()

	log.WithField("addr", a.Metrics.Addr).Info("Метрики доступны на /metrics")
	if err := a.Metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("сервер метрик: %w", err)
	}
	return nil
}

// Close освобождает ресурсы приложения.
func (a *App) Close() {
	a.rateLimiter.Close()
	a.Store.Close()
}
