package config

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreMemory   = "memory"
)

type Config struct {
	Host         string
	Port         string
	Store        string
	DBPath       string
	DatabaseURL  string
	RedisURL     string
	AdminCreds   string `json:"-"`
	JWTSecret    string `json:"-"`
	LogLevel     string
	Debug        bool
	SlugLength   int
	SlugAttempts int
}

// Load reads the configuration from the environment. A .env file in the
// working directory is loaded first if present; real environment variables
// take precedence over it.
func Load() (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}
	return FromEnv(os.Getenv)
}

func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load %s: %w", path, err)
}

func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Host:        cmp.Or(getenv("HOST"), "localhost"),
		Port:        cmp.Or(getenv("PORT"), "8080"),
		Store:       cmp.Or(getenv("STORE"), StoreSQLite),
		DBPath:      cmp.Or(getenv("DB_PATH"), "shortreg.db"),
		DatabaseURL: getenv("DATABASE_URL"),
		RedisURL:    cmp.Or(getenv("REDIS_URL"), "redis://localhost:6379/0"),
		AdminCreds:  getenv("ADMIN_CREDENTIALS"),
		JWTSecret:   getenv("JWT_SECRET"),
		LogLevel:    cmp.Or(getenv("LOG_LEVEL"), "info"),
		Debug:       getenv("DEBUG") == "1",
	}

	var err error
	if cfg.SlugLength, err = intFromEnv(getenv, "SLUG_LENGTH", 6); err != nil {
		return Config{}, err
	}
	if cfg.SlugAttempts, err = intFromEnv(getenv, "SLUG_ATTEMPTS", 5); err != nil {
		return Config{}, err
	}

	switch cfg.Store {
	case StoreSQLite, StoreRedis, StoreMemory:
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, errors.New("DATABASE_URL is required when STORE=postgres")
		}
	default:
		return Config{}, fmt.Errorf("unknown store %q", cfg.Store)
	}

	if cfg.AdminCreds == "" {
		cfg.AdminCreds = "admin:admin"
		log.Warn().Msg("using default admin credentials - set ADMIN_CREDENTIALS for production")
	}

	if cfg.JWTSecret == "" {
		cfg.JWTSecret = cfg.AdminCreds
		log.Warn().Msg("using ADMIN_CREDENTIALS as JWT_SECRET - set JWT_SECRET for production")
	}

	return cfg, nil
}

func intFromEnv(getenv func(string) string, key string, fallback int) (int, error) {
	raw := getenv(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, raw)
	}
	return n, nil
}
