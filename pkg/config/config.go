package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Mail transports understood by the dispatcher.
const (
	MailTransportSMTP     = "smtp"
	MailTransportSendGrid = "sendgrid"
)

type Config struct {
	Env string

	Database DatabaseConfig
	Redis    RedisConfig
	Cache    CacheConfig
	Log      LogConfig
	SMTP     SMTPConfig
	Mail     MailConfig
	Reports  ReportsConfig
	Metrics  MetricsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// CacheConfig toggles the read-through cache in front of attendance queries.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// SMTPConfig mirrors the MBPY_SMTP_* environment used by the reporting jobs.
type SMTPConfig struct {
	From     string
	Host     string
	Port     int
	Subject  string
	Password string
	TLS      bool
}

// MailConfig selects how report messages leave the process.
type MailConfig struct {
	Transport      string
	SendGridAPIKey string
	SubjectPrefix  string
	Retries        int
	RetryDelay     time.Duration
}

// ReportsConfig holds report defaults that the CLI flags may override.
type ReportsConfig struct {
	Format          string
	OutputDir       string
	Retention       time.Duration
	AbsentCategory  string
	PresentCategory string
	ManualStatuses  []string
	WorkWeek        string
	ImportCommand   string
	ImportTimeout   time.Duration
}

// MetricsConfig points at the node-exporter textfile written after each run.
type MetricsConfig struct {
	TextfilePath string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("CACHE_ENABLED"),
		TTL:     parseDuration(v.GetString("CACHE_TTL"), 15*time.Minute),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.SMTP = SMTPConfig{
		From:     v.GetString("MBPY_SMTP_FROM"),
		Host:     v.GetString("MBPY_SMTP_HOST"),
		Port:     v.GetInt("MBPY_SMTP_PORT"),
		Subject:  v.GetString("MBPY_SMTP_SUBJECT"),
		Password: v.GetString("MBPY_SMTP_PASSWORD"),
		TLS:      v.GetBool("MBPY_SMTP_USE_TLS"),
	}

	cfg.Mail = MailConfig{
		Transport:      strings.ToLower(v.GetString("MAIL_TRANSPORT")),
		SendGridAPIKey: v.GetString("SENDGRID_API_KEY"),
		SubjectPrefix:  v.GetString("MAIL_SUBJECT_PREFIX"),
		Retries:        v.GetInt("MAIL_RETRIES"),
		RetryDelay:     parseDuration(v.GetString("MAIL_RETRY_DELAY"), 10*time.Second),
	}

	cfg.Reports = ReportsConfig{
		Format:          strings.ToLower(v.GetString("REPORT_FORMAT")),
		OutputDir:       v.GetString("REPORT_OUTPUT_DIR"),
		Retention:       parseDuration(v.GetString("REPORT_RETENTION"), 0),
		AbsentCategory:  v.GetString("ABSENT_CATEGORY_NAME"),
		PresentCategory: v.GetString("PRESENT_CATEGORY_NAME"),
		ManualStatuses:  splitAndTrim(v.GetString("MANUAL_STATUSES")),
		WorkWeek:        v.GetString("WORK_WEEK"),
		ImportCommand:   v.GetString("IMPORT_COMMAND"),
		ImportTimeout:   parseDuration(v.GetString("IMPORT_TIMEOUT"), 30*time.Minute),
	}

	cfg.Metrics = MetricsConfig{
		TextfilePath: v.GetString("METRICS_TEXTFILE"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "mbpy")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 4)
	v.SetDefault("DB_MAX_IDLE_CONNS", 2)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("CACHE_TTL", "15m")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")

	v.SetDefault("MBPY_SMTP_FROM", "")
	v.SetDefault("MBPY_SMTP_HOST", "smtp.gmail.com")
	v.SetDefault("MBPY_SMTP_PORT", 465)
	v.SetDefault("MBPY_SMTP_SUBJECT", "Attendance report")
	v.SetDefault("MBPY_SMTP_PASSWORD", "")
	v.SetDefault("MBPY_SMTP_USE_TLS", false)

	v.SetDefault("MAIL_TRANSPORT", MailTransportSMTP)
	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("MAIL_SUBJECT_PREFIX", "")
	v.SetDefault("MAIL_RETRIES", 2)
	v.SetDefault("MAIL_RETRY_DELAY", "10s")

	v.SetDefault("REPORT_FORMAT", "csv")
	v.SetDefault("REPORT_OUTPUT_DIR", "")
	v.SetDefault("REPORT_RETENTION", "")
	v.SetDefault("ABSENT_CATEGORY_NAME", "Absent")
	v.SetDefault("PRESENT_CATEGORY_NAME", "Present")
	v.SetDefault("MANUAL_STATUSES", "")
	v.SetDefault("WORK_WEEK", "mon-fri")
	v.SetDefault("IMPORT_COMMAND", "")
	v.SetDefault("IMPORT_TIMEOUT", "30m")

	v.SetDefault("METRICS_TEXTFILE", "")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
