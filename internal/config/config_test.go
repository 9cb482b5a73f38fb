package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"PORT", "QUESTIONS_DIR", "QUESTIONS_EMBEDDED", "MONGO_URI", "LOAD_CONCURRENCY",
		"EXAM_DURATION", "EXAM_MAX_QUESTIONS", "EXAM_TICK", "REDIS_ADDR", "DB_DRIVER",
		"DB_DSN", "BANK_RELOAD_SCHEDULE", "SWEEP_SCHEDULE", "GAME_MAX_IDLE", "EXAM_RETENTION",
		"JWT_SECRET", "CORS_ORIGINS",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "./data/questions", cfg.QuestionsDir)
	assert.True(t, cfg.QuestionsEmbedded)
	assert.Equal(t, 120*time.Minute, cfg.ExamDuration)
	assert.Equal(t, 100, cfg.ExamMaxQuestions)
	assert.Equal(t, time.Second, cfg.ExamTick)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Empty(t, cfg.BankReloadSchedule)
	assert.Equal(t, "@every 10m", cfg.SweepSchedule)
	assert.Equal(t, time.Hour, cfg.GameMaxIdle)
	assert.Equal(t, time.Hour, cfg.ExamRetention)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
}

func TestLoadConfig_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("EXAM_DURATION", "90m")
	t.Setenv("EXAM_MAX_QUESTIONS", "50")
	t.Setenv("QUESTIONS_EMBEDDED", "false")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("BANK_RELOAD_SCHEDULE", "*/15 * * * *")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test ,")
	t.Setenv("EXAM_RETENTION", "15m")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, cfg.ExamDuration)
	assert.Equal(t, 50, cfg.ExamMaxQuestions)
	assert.False(t, cfg.QuestionsEmbedded)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	assert.Equal(t, 15*time.Minute, cfg.ExamRetention)
}

func TestLoadConfig_Invalid(t *testing.T) {
	cases := map[string]string{
		"PORT":                 "http",
		"DB_DRIVER":            "mysql",
		"BANK_RELOAD_SCHEDULE": "every tuesday",
		"EXAM_MAX_QUESTIONS":   "-5",
		"EXAM_RETENTION":       "-1h",
		"SWEEP_SCHEDULE":       "sometimes",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("UNIT_TEST_ENV", "value")
	assert.Equal(t, "value", getEnvOrDefault("UNIT_TEST_ENV", "fallback"))

	t.Setenv("UNIT_TEST_ENV", "")
	assert.Equal(t, "fallback", getEnvOrDefault("UNIT_TEST_ENV", "fallback"))

	t.Setenv("UNIT_TEST_ENV", "nope")
	assert.Equal(t, 7, getEnvInt("UNIT_TEST_ENV", 7))
	assert.True(t, getEnvBool("UNIT_TEST_ENV", true))
	assert.Equal(t, time.Minute, getEnvDuration("UNIT_TEST_ENV", time.Minute))
}
