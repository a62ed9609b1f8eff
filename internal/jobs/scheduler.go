// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: подведение итогов голосований,
// ежемесячный дайджест и резервную копию базы.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/karmabot/internal/metrics"
)

// Maintainer закрывает истёкшие голосования и чистит историю.
type Maintainer interface {
	ProcessExpired(ctx context.Context, now time.Time) error
}

// Reporter публикует дайджест кармы в канал.
type Reporter interface {
	ReportDigest(ctx context.Context, channel string) error
}

// Backuper делает резервную копию базы.
type Backuper interface {
	Run(ctx context.Context) error
}

// Config — расписание задач.
type Config struct {
	MaintenanceCron string
	DigestChannel   string
	DigestDay       int
	DigestHour      int
	DigestMinute    int
	BackupCron      string
}

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron       *cron.Cron
	cfg        Config
	clock      clockwork.Clock
	maintainer Maintainer
	reporter   Reporter
	backuper   Backuper
}

// NewScheduler создаёт планировщик задач в часовом поясе loc.
// backuper может быть nil — тогда резервное копирование не планируется.
func NewScheduler(cfg Config, loc *time.Location, clock clockwork.Clock,
	maintainer Maintainer, reporter Reporter, backuper Backuper) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger := cronLogger{}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	return &Scheduler{
		cron:       c,
		cfg:        cfg,
		clock:      clock,
		maintainer: maintainer,
		reporter:   reporter,
		backuper:   backuper,
	}
}

// Start регистрирует все фоновые задачи и запускает cron.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.cfg.MaintenanceCron, func() { s.runMaintenance(ctx) }); err != nil {
		return fmt.Errorf("расписание MAINTENANCE_CRON %q: %w", s.cfg.MaintenanceCron, err)
	}

	if spec, ok := s.digestSpec(); ok {
		if _, err := s.cron.AddFunc(spec, func() { s.runDigest(ctx) }); err != nil {
			return fmt.Errorf("расписание дайджеста %q: %w", spec, err)
		}
	}

	if s.backuper != nil {
		if _, err := s.cron.AddFunc(s.cfg.BackupCron, func() { s.runBackup(ctx) }); err != nil {
			return fmt.Errorf("расписание BACKUP_CRON %q: %w", s.cfg.BackupCron, err)
		}
	}

	s.cron.Start()
	log.WithField("jobs", len(s.cron.Entries())).Info("Планировщик задач запущен")
	return nil
}

// Stop останавливает планировщик и ждёт завершения запущенных задач.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}

// digestSpec возвращает cron-выражение ежемесячного дайджеста.
func (s *Scheduler) digestSpec() (string, bool) {
	switch {
	case s.cfg.DigestDay == 0:
		return "", false
	case s.cfg.DigestDay < 1 || s.cfg.DigestDay > 28:
		log.WithField("day", s.cfg.DigestDay).Warn("DIGEST_DAY вне 1..28, дайджест выключен")
		return "", false
	case s.cfg.DigestChannel == "":
		log.Warn("DIGEST_CHANNEL не задан, дайджест выключен")
		return "", false
	}
	return fmt.Sprintf("%d %d %d * *", s.cfg.DigestMinute, s.cfg.DigestHour, s.cfg.DigestDay), true
}

func (s *Scheduler) runMaintenance(ctx context.Context) {
	run(ctx, "maintenance", func(ctx context.Context) error {
		return s.maintainer.ProcessExpired(ctx, s.clock.Now())
	})
}

func (s *Scheduler) runDigest(ctx context.Context) {
	run(ctx, "digest", func(ctx context.Context) error {
		return s.reporter.ReportDigest(ctx, s.cfg.DigestChannel)
	})
}

func (s *Scheduler) runBackup(ctx context.Context) {
	run(ctx, "backup", s.backuper.Run)
}

func run(ctx context.Context, job string, fn func(ctx context.Context) error) {
	if ctx.Err() != nil {
		return
	}
	logger := log.WithField("job", job)
	logger.Debug("[CRON] Запуск задачи")

	err := fn(ctx)
	metrics.JobRuns.WithLabelValues(job, metrics.Status(err)).Inc()
	if err != nil {
		logger.WithError(err).Error("[CRON] Ошибка выполнения задачи")
	}
}

// cronLogger направляет сообщения robfig/cron в logrus.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.WithFields(fields(keysAndValues)).Debug("[CRON] " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.WithError(err).WithFields(fields(keysAndValues)).Error("[CRON] " + msg)
}

func fields(kv []interface{}) log.Fields {
	f := log.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		f[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return f
}
