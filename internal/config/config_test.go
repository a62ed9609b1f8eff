package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("SLACK_BOT_TOKEN", "xoxb-test")
	t.Setenv("SLACK_APP_TOKEN", "xapp-test")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.DBDriver)
	assert.Equal(t, "karma.db", cfg.DBPath)
	assert.Equal(t, "karma.db.enc", cfg.BackupFile())
	assert.Equal(t, 5, cfg.KarmaMaxDiff)
	assert.Equal(t, time.Hour, cfg.KarmaVoteTimeout)
	assert.Equal(t, 720*time.Hour, cfg.KarmaKeepHistory)
	assert.Equal(t, []string{"+1", "thumbsup"}, cfg.KarmaUpvoteEmoji)
	assert.Equal(t, []string{"-1", "thumbsdown"}, cfg.KarmaDownvoteEmoji)
	assert.False(t, cfg.KarmaSelfKarma)
	assert.False(t, cfg.BackupEnabled())
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("KARMA_VOTE_TIMEOUT", "90s")
	t.Setenv("KARMA_UPVOTE_EMOJI", ":tada:, heart ,")
	t.Setenv("ADMINS", "alice,U999")
	t.Setenv("BACKUP_KEY", "secret")
	t.Setenv("BACKUP_PATH", "/var/backups/karma.enc")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 90*time.Second, cfg.KarmaVoteTimeout)
	assert.Equal(t, []string{"tada", "heart"}, cfg.KarmaUpvoteEmoji)
	assert.True(t, cfg.IsAdmin("U123", "alice"))
	assert.True(t, cfg.IsAdmin("U999", "bob"))
	assert.False(t, cfg.IsAdmin("U123", "bob"))
	assert.True(t, cfg.BackupEnabled())
	assert.Equal(t, "/var/backups/karma.enc", cfg.BackupFile())
}

func TestLoad_MissingToken(t *testing.T) {
	// Setenv регистрирует восстановление значения после теста
	t.Setenv("SLACK_BOT_TOKEN", "")
	t.Setenv("SLACK_APP_TOKEN", "")
	require.NoError(t, os.Unsetenv("SLACK_BOT_TOKEN"))
	require.NoError(t, os.Unsetenv("SLACK_APP_TOKEN"))

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			DBDriver:         DriverSQLite,
			DBPath:           "karma.db",
			BotMaxInflight:   1,
			KarmaMaxDiff:     5,
			KarmaVoteTimeout: time.Minute,
			KarmaUpvoteEmoji: []string{"+1"},
			SlackRateLimit:   1,
			SlackRateBurst:   1,
		}
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown driver", func(c *Config) { c.DBDriver = "mysql" }},
		{"postgres without password", func(c *Config) { c.DBDriver = DriverPostgres }},
		{"zero max diff", func(c *Config) { c.KarmaMaxDiff = 0 }},
		{"zero timeout", func(c *Config) { c.KarmaVoteTimeout = 0 }},
		{"negative history", func(c *Config) { c.KarmaKeepHistory = -time.Second }},
		{"no upvote emoji", func(c *Config) { c.KarmaUpvoteEmoji = nil }},
		{"bad digest hour", func(c *Config) { c.DigestHour = 24 }},
		{"zero inflight", func(c *Config) { c.BotMaxInflight = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
