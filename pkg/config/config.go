package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	HTTP     HTTPConfig
	Reports  ReportsConfig
	Warnings WarningsConfig
	Digest   DigestConfig
	Cases    CasesConfig
	SMTP     SMTPConfig
	Log      LogConfig
}

type DatabaseConfig struct {
	Driver        string // postgres or sqlite
	Host          string
	Port          int
	User          string
	Password      string
	DBName        string
	SSLMode       string
	SQLitePath    string
	MigrationsDir string
}

// ConnectionString returns the DSN for the configured driver.
func (d DatabaseConfig) ConnectionString() string {
	if d.Driver == "sqlite" {
		return d.SQLitePath
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers       []string
	TopicWarnings string
}

type HTTPConfig struct {
	Port               int
	SessionIdleTimeout time.Duration
	MaxSessions        int
}

type ReportsConfig struct {
	OutputDir string
	DailyTime string // HH:MM
	Format    string // pdf or xlsx
	Theme     string // grid or striped
}

type WarningsConfig struct {
	ScanInterval time.Duration
	StateTTL     time.Duration
}

type DigestConfig struct {
	BatchSize     int
	FlushInterval time.Duration
}

type CasesConfig struct {
	MaxIDAttempts int
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	config := &Config{
		Database: DatabaseConfig{
			Driver:        getEnv("DB_DRIVER", "postgres"),
			Host:          getEnv("DB_HOST", "localhost"),
			Port:          getEnvAsInt("DB_PORT", 5432),
			User:          getEnv("DB_USER", "tpmss_user"),
			Password:      getEnv("DB_PASSWORD", "tpmss_pass"),
			DBName:        getEnv("DB_NAME", "tpmss_db"),
			SSLMode:       getEnv("DB_SSLMODE", "disable"),
			SQLitePath:    getEnv("DB_SQLITE_PATH", "tpmss.db"),
			MigrationsDir: getEnv("DB_MIGRATIONS_DIR", "migrations"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:       strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			TopicWarnings: getEnv("KAFKA_TOPIC_WARNINGS", "tpmss.warnings"),
		},
		HTTP: HTTPConfig{
			Port:               getEnvAsInt("HTTP_PORT", 8080),
			SessionIdleTimeout: getEnvAsDuration("HTTP_SESSION_IDLE_TIMEOUT", 30*time.Minute),
			MaxSessions:        getEnvAsInt("HTTP_MAX_SESSIONS", 1000),
		},
		Reports: ReportsConfig{
			OutputDir: getEnv("REPORT_OUTPUT_DIR", "reports"),
			DailyTime: getEnv("REPORT_DAILY_TIME", "06:00"),
			Format:    getEnv("REPORT_FORMAT", "pdf"),
			Theme:     getEnv("REPORT_THEME", "grid"),
		},
		Warnings: WarningsConfig{
			ScanInterval: getEnvAsDuration("WARNING_SCAN_INTERVAL", 15*time.Minute),
			StateTTL:     getEnvAsDuration("WARNING_STATE_TTL", 30*24*time.Hour),
		},
		Digest: DigestConfig{
			BatchSize:     getEnvAsInt("DIGEST_BATCH_SIZE", 50),
			FlushInterval: getEnvAsDuration("DIGEST_FLUSH_INTERVAL", 10*time.Minute),
		},
		Cases: CasesConfig{
			MaxIDAttempts: getEnvAsInt("CASE_ID_MAX_ATTEMPTS", 1),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", "smtp.gmail.com"),
			Port:     getEnvAsInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "tpmss@example.com"),
			To:       getEnv("SMTP_TO", "caseworkers@example.com"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if config.Database.Driver != "postgres" && config.Database.Driver != "sqlite" {
		return nil, fmt.Errorf("unsupported DB_DRIVER %q (expected postgres or sqlite)", config.Database.Driver)
	}
	if config.Cases.MaxIDAttempts < 1 {
		config.Cases.MaxIDAttempts = 1
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
