package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultTargetURL = "https://www.tesourodireto.com.br/produtos/dados-sobre-titulos/rendimento-dos-titulos"
	DefaultTableID   = "rentabilidadeTable"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	TargetURL     string
	TableID       string
	Renderer      string // chrome | static
	ChromeBin     string
	Headless      bool
	RenderTimeout time.Duration
	MaxRetries    int

	StoreDriver string // sqlite | postgres | memory
	SQLitePath  string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	Timezone    string
	SnapshotDir string
	KeyCacheTTL time.Duration

	LogLevel string
	LogFile  string

	HTTPAddr        string
	RateLimitPerMin int
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		TargetURL:     getEnv("TARGET_URL", DefaultTargetURL),
		TableID:       getEnv("TABLE_ID", DefaultTableID),
		Renderer:      strings.ToLower(getEnv("RENDERER", "chrome")),
		ChromeBin:     getEnv("CHROME_BIN", ""),
		Headless:      getEnvBool("HEADLESS", true),
		RenderTimeout: getEnvDuration("RENDER_TIMEOUT", 90*time.Second),
		MaxRetries:    getEnvInt("MAX_RETRIES", 3),

		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", "sqlite")),
		SQLitePath:  getEnv("SQLITE_PATH", "./tesouro.db"),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "scraper"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "scraper123"),
		PostgresDB:       getEnv("POSTGRES_DB", "tesouro"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		Timezone:    getEnv("TIMEZONE", "America/Sao_Paulo"),
		SnapshotDir: getEnv("SNAPSHOT_DIR", "./data"),
		KeyCacheTTL: getEnvDuration("KEY_CACHE_TTL", 30*time.Minute),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", "app.log"),

		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		RateLimitPerMin: getEnvInt("RATE_LIMIT_PER_MIN", 6),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// Location resolves Timezone, falling back to UTC when it is unknown.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		log.Printf("[config] Unknown TIMEZONE %q, using UTC: %v", c.Timezone, err)
		return time.UTC
	}
	return loc
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
		log.Printf("[config] Invalid integer for %s (%q), using default %d", key, val, fallback)
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
		log.Printf("[config] Invalid boolean for %s (%q), using default %t", key, val, fallback)
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err == nil {
			return d
		}
		log.Printf("[config] Invalid duration for %s (%q), using default %s", key, val, fallback)
	}
	return fallback
}
