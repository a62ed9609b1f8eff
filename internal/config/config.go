// Package config загружает конфигурацию бота из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Драйверы хранилища.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- Slack ---
	SlackBotToken string `envconfig:"SLACK_BOT_TOKEN" required:"true"`
	SlackAppToken string `envconfig:"SLACK_APP_TOKEN" required:"true"`
	// Сколько запросов к Slack Web API в секунду разрешаем себе (reactions.get и т.п.)
	SlackRateLimit float64 `envconfig:"SLACK_RATE_LIMIT" default:"1"`
	SlackRateBurst int     `envconfig:"SLACK_RATE_BURST" default:"5"`
	// Имена или ID пользователей, которым доступна команда set
	Admins []string `envconfig:"ADMINS"`
	// Сколько держим в кэше имена пользователей и каналов
	NamesCacheTTL time.Duration `envconfig:"NAMES_CACHE_TTL" default:"1h"`

	// --- Database ---
	DBDriver string `envconfig:"DB_DRIVER" default:"sqlite"`
	// Файл SQLite (для DB_DRIVER=sqlite)
	DBPath string `envconfig:"DB_PATH" default:"karma.db"`

	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"karmabot"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	DBName     string `envconfig:"DB_NAME" default:"karmabot"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"10"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"2"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"info"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"UTC"`
	AppLang     string `envconfig:"APP_LANG" default:"en"`

	// --- Bot runtime ---
	// Сколько событий обрабатываем параллельно.
	BotMaxInflight int `envconfig:"BOT_MAX_INFLIGHT" default:"32"`

	// --- Karma ---
	KarmaInitialValue  int           `envconfig:"KARMA_INITIAL_VALUE" default:"0"`
	KarmaMaxDiff       int           `envconfig:"KARMA_MAX_DIFF" default:"5"`
	KarmaSelfKarma     bool          `envconfig:"KARMA_SELF_KARMA" default:"false"`
	KarmaVoteTimeout   time.Duration `envconfig:"KARMA_VOTE_TIMEOUT" default:"1h"`
	KarmaKeepHistory   time.Duration `envconfig:"KARMA_KEEP_HISTORY" default:"720h"`
	KarmaUpvoteEmoji   []string      `envconfig:"KARMA_UPVOTE_EMOJI" default:"+1,thumbsup"`
	KarmaDownvoteEmoji []string      `envconfig:"KARMA_DOWNVOTE_EMOJI" default:"-1,thumbsdown"`

	// --- Jobs ---
	MaintenanceCron string `envconfig:"MAINTENANCE_CRON" default:"* * * * *"`
	DigestChannel   string `envconfig:"DIGEST_CHANNEL"`
	// День месяца для дайджеста, 0 — выключен
	DigestDay    int `envconfig:"DIGEST_DAY" default:"1"`
	DigestHour   int `envconfig:"DIGEST_HOUR" default:"12"`
	DigestMinute int `envconfig:"DIGEST_MINUTE" default:"0"`

	// --- Backup ---
	BackupKey      string `envconfig:"BACKUP_KEY"`
	BackupPath     string `envconfig:"BACKUP_PATH"`
	BackupCron     string `envconfig:"BACKUP_CRON" default:"0 3 * * *"`
	BackupS3Bucket string `envconfig:"BACKUP_S3_BUCKET"`
	BackupS3Key    string `envconfig:"BACKUP_S3_KEY" default:"karma.db.enc"`

	// --- Rate Limiting ---
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"10"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`

	// --- Metrics ---
	// Адрес HTTP-сервера /metrics, пусто — выключен
	MetricsAddr string `envconfig:"METRICS_ADDR"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// BackupFile возвращает путь к зашифрованной копии базы.
// По умолчанию — рядом с файлом SQLite с суффиксом .enc.
func (c *Config) BackupFile() string {
	if c.BackupPath != "" {
		return c.BackupPath
	}
	return c.DBPath + ".enc"
}

// BackupEnabled сообщает, нужно ли делать резервные копии.
// Копируется только файл SQLite — Postgres бэкапится своими средствами.
func (c *Config) BackupEnabled() bool {
	return c.BackupKey != "" && c.DBDriver == DriverSQLite
}

// IsAdmin проверяет, входит ли пользователь (по имени или ID) в список ADMINS.
func (c *Config) IsAdmin(userID, userName string) bool {
	for _, a := range c.Admins {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if a == userID || a == userName {
			return true
		}
	}
	return false
}

// Validate проверяет согласованность значений.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH не задан")
		}
	case DriverPostgres:
		if c.DBPassword == "" {
			return fmt.Errorf("DB_PASSWORD не задан")
		}
		if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
		}
	default:
		return fmt.Errorf("неизвестный DB_DRIVER %q (sqlite|postgres)", c.DBDriver)
	}
	if c.BotMaxInflight <= 0 {
		return fmt.Errorf("BOT_MAX_INFLIGHT должен быть > 0")
	}
	if c.KarmaMaxDiff <= 0 {
		return fmt.Errorf("KARMA_MAX_DIFF должен быть > 0")
	}
	if c.KarmaVoteTimeout <= 0 {
		return fmt.Errorf("KARMA_VOTE_TIMEOUT должен быть > 0")
	}
	if c.KarmaKeepHistory < 0 {
		return fmt.Errorf("KARMA_KEEP_HISTORY не может быть отрицательным")
	}
	if len(c.KarmaUpvoteEmoji) == 0 {
		return fmt.Errorf("KARMA_UPVOTE_EMOJI не задан")
	}
	if c.DigestHour < 0 || c.DigestHour > 23 || c.DigestMinute < 0 || c.DigestMinute > 59 {
		return fmt.Errorf("некорректные DIGEST_HOUR/DIGEST_MINUTE")
	}
	if c.NamesCacheTTL < 0 {
		return fmt.Errorf("NAMES_CACHE_TTL не может быть отрицательным")
	}
	if c.SlackRateLimit <= 0 || c.SlackRateBurst <= 0 {
		return fmt.Errorf("SLACK_RATE_LIMIT и SLACK_RATE_BURST должны быть > 0")
	}
	return nil
}

// Load читает переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}

	cfg.KarmaUpvoteEmoji = normalizeEmoji(cfg.KarmaUpvoteEmoji)
	cfg.KarmaDownvoteEmoji = normalizeEmoji(cfg.KarmaDownvoteEmoji)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// normalizeEmoji убирает пробелы и двоеточия вокруг имён (":+1:" → "+1").
func normalizeEmoji(in []string) []string {
	out := make([]string, 0, len(in))
	for _, e := range in {
		e = strings.Trim(strings.TrimSpace(e), ":")
		if e != "" {
			out = append(out, e)
		}
	}
	return out
}
