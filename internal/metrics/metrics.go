// Package metrics — счётчики Prometheus бота кармы.
// Регистрируются в реестре по умолчанию и отдаются через /metrics (METRICS_ADDR).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Голосования
var (
	// VotingsCreated — созданные голосования
	VotingsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "karmabot_votings_created_total",
			Help: "Total votings created",
		},
	)

	// VotingsRejected — запросы, отклонённые проверкой (self, robot, max_diff, parse)
	VotingsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "karmabot_votings_rejected_total",
			Help: "Karma change requests rejected before a voting was created, by reason",
		},
		[]string{"reason"},
	)

	// VotingsFinished — подведённые голосования по исходу (success, fail, dropped)
	VotingsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "karmabot_votings_finished_total",
			Help: "Votings closed by the sweeper, by outcome",
		},
		[]string{"outcome"},
	)

	// VotingsDeferred — голосования, отложенные из-за временной ошибки Slack
	VotingsDeferred = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "karmabot_votings_deferred_total",
			Help: "Expired votings left open because reactions could not be fetched",
		},
	)

	// SweepDuration — длительность прохода по истёкшим голосованиям
	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "karmabot_sweep_duration_seconds",
			Help:    "Duration of one expired votings sweep",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)
)

// События и команды
var (
	// EventsHandled — обработанные события Slack по типу и статусу
	EventsHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "karmabot_events_handled_total",
			Help: "Slack events handled, by type and status",
		},
		[]string{"type", "status"},
	)

	// CommandsHandled — команды /karma по имени
	CommandsHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "karmabot_commands_total",
			Help: "Slash commands handled, by command kind",
		},
		[]string{"command"},
	)

	// EventsInflight — события в обработке
	EventsInflight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "karmabot_events_inflight",
			Help: "Slack events currently being handled",
		},
	)
)

// Фоновые задачи
var (
	// JobRuns — запуски задач планировщика по имени и статусу
	JobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "karmabot_job_runs_total",
			Help: "Scheduled job runs, by job and status",
		},
		[]string{"job", "status"},
	)

	// BackupBytes — размер последней зашифрованной копии
	BackupBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "karmabot_backup_size_bytes",
			Help: "Size of the last encrypted database backup",
		},
	)
)

// Status возвращает метку статуса для err.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
