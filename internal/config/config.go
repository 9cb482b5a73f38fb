package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

type Config struct {
	Port string

	// question sources
	QuestionsDir        string
	QuestionsEmbedded   bool
	MongoURI            string
	QuestionsDBName     string
	QuestionsCollection string
	LoadConcurrency     int

	// exam
	ExamDuration     time.Duration
	ExamMaxQuestions int
	ExamTick         time.Duration
	ExamStateTTL     time.Duration

	RedisAddr     string
	RedisPassword string

	DBDriver string
	DBDSN    string

	BankReloadSchedule string
	SweepSchedule      string
	GameMaxIdle        time.Duration
	ExamRetention      time.Duration

	JWTSecret   string
	CORSOrigins []string
}

// LoadConfig reads configuration from the environment, after loading a .env
// file when one is present.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnvOrDefault("PORT", "8080"),
		QuestionsDir:        getEnvOrDefault("QUESTIONS_DIR", "./data/questions"),
		QuestionsEmbedded:   getEnvBool("QUESTIONS_EMBEDDED", true),
		MongoURI:            os.Getenv("MONGO_URI"),
		QuestionsDBName:     getEnvOrDefault("QUESTIONS_DB_NAME", "sprinklerprep"),
		QuestionsCollection: getEnvOrDefault("QUESTIONS_COLLECTION", "questions"),
		LoadConcurrency:     getEnvInt("LOAD_CONCURRENCY", 4),
		ExamDuration:        getEnvDuration("EXAM_DURATION", 120*time.Minute),
		ExamMaxQuestions:    getEnvInt("EXAM_MAX_QUESTIONS", 100),
		ExamTick:            getEnvDuration("EXAM_TICK", time.Second),
		ExamStateTTL:        getEnvDuration("EXAM_STATE_TTL", 24*time.Hour),
		RedisAddr:           os.Getenv("REDIS_ADDR"),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
		DBDriver:            getEnvOrDefault("DB_DRIVER", "sqlite"),
		DBDSN:               os.Getenv("DB_DSN"),
		BankReloadSchedule:  os.Getenv("BANK_RELOAD_SCHEDULE"),
		SweepSchedule:       getEnvOrDefault("SWEEP_SCHEDULE", "@every 10m"),
		GameMaxIdle:         getEnvDuration("GAME_MAX_IDLE", time.Hour),
		ExamRetention:       getEnvDuration("EXAM_RETENTION", time.Hour),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		CORSOrigins:         splitCSV(getEnvOrDefault("CORS_ORIGINS", "*")),
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateConfig(cfg *Config) error {
	var errs []error
	if _, err := strconv.Atoi(cfg.Port); err != nil {
		errs = append(errs, fmt.Errorf("PORT must be numeric, got %q", cfg.Port))
	}
	if cfg.QuestionsDir == "" && !cfg.QuestionsEmbedded && cfg.MongoURI == "" {
		errs = append(errs, errors.New("no question source configured"))
	}
	if cfg.ExamDuration <= 0 {
		errs = append(errs, errors.New("EXAM_DURATION must be positive"))
	}
	if cfg.ExamMaxQuestions <= 0 {
		errs = append(errs, errors.New("EXAM_MAX_QUESTIONS must be positive"))
	}
	if cfg.ExamTick <= 0 {
		errs = append(errs, errors.New("EXAM_TICK must be positive"))
	}
	if cfg.GameMaxIdle <= 0 || cfg.ExamRetention <= 0 {
		errs = append(errs, errors.New("GAME_MAX_IDLE and EXAM_RETENTION must be positive"))
	}
	if cfg.LoadConcurrency <= 0 {
		errs = append(errs, errors.New("LOAD_CONCURRENCY must be positive"))
	}
	switch cfg.DBDriver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q (sqlite or postgres)", cfg.DBDriver))
	}
	for name, spec := range map[string]string{
		"BANK_RELOAD_SCHEDULE": cfg.BankReloadSchedule,
		"SWEEP_SCHEDULE":       cfg.SweepSchedule,
	} {
		if spec == "" {
			continue
		}
		if _, err := cron.ParseStandard(spec); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
