package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"quest-progression-system/utils"

	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	Port           string
	LogMode        string
	StoreDriver    string
	DatabaseURL    string
	ServiceToken   string
	AllowedOrigins []string

	RedisAddr    string
	RedisChannel string

	SyncServiceURL  string
	SyncProfilePath string
	SyncInterval    time.Duration

	R2 utils.R2Config

	ActiveQuestCap     int
	MaintenanceWorkers int
}

// Load reads an optional .env file and then the environment. The bool
// reports whether a .env file was found.
func Load() (*Config, bool, error) {
	dotenv := godotenv.Load() == nil
	cfg, err := FromEnv(os.Getenv)
	return cfg, dotenv, err
}

// FromEnv builds the config from a lookup function, applying defaults.
func FromEnv(getenv func(string) string) (*Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := &Config{
		Port:            get("PORT", "5200"),
		LogMode:         get("LOG_MODE", "dev"),
		StoreDriver:     strings.ToLower(get("STORE_DRIVER", StoreDriverPostgres)),
		DatabaseURL:     get("DATABASE_URL", ""),
		ServiceToken:    get("SERVICE_TOKEN", ""),
		RedisAddr:       get("REDIS_ADDR", ""),
		RedisChannel:    get("REDIS_CHANNEL", "progression-events"),
		SyncServiceURL:  get("SYNC_SERVICE_URL", ""),
		SyncProfilePath: get("SYNC_PROFILE_PATH", "/api/v1/public/profiles"),
		R2: utils.R2Config{
			AccountID:       get("CLOUDFLARE_ACCOUNT_ID", ""),
			AccessKeyID:     get("R2_ACCESS_KEY_ID", ""),
			AccessKeySecret: get("R2_ACCESS_KEY_SECRET", ""),
			Bucket:          get("R2_BUCKET_NAME", ""),
		},
	}

	for _, origin := range strings.Split(get("ALLOWED_ORIGINS", "http://localhost:3000"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}

	var errs []error
	var err error
	if cfg.SyncInterval, err = time.ParseDuration(get("SYNC_INTERVAL", "1m")); err != nil {
		errs = append(errs, fmt.Errorf("SYNC_INTERVAL: %w", err))
	}
	if cfg.ActiveQuestCap, err = positiveInt(get("ACTIVE_QUEST_CAP", "5")); err != nil {
		errs = append(errs, fmt.Errorf("ACTIVE_QUEST_CAP: %w", err))
	}
	if cfg.MaintenanceWorkers, err = positiveInt(get("MAINTENANCE_WORKERS", "8")); err != nil {
		errs = append(errs, fmt.Errorf("MAINTENANCE_WORKERS: %w", err))
	}

	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		if cfg.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL environment variable not set"))
		}
	case StoreDriverMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER %q: want postgres or memory", cfg.StoreDriver))
	}
	if cfg.ServiceToken == "" {
		errs = append(errs, errors.New("SERVICE_TOKEN is not set, service cannot authenticate gateway"))
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

func positiveInt(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("must be positive, got %d", n)
	}
	return n, nil
}
