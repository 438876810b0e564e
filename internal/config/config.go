package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App       AppConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Logger    LoggerConfig
	Auth      AuthConfig
	WorkOrder WorkOrderConfig
	Sync      SyncConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values. An empty DSN selects the
// in-memory store.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Enabled        bool
	Addr           string
	Password       string
	DB             int
	SignalsChannel string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// Operator is a configured workshop or warehouse account.
type Operator struct {
	Username     string
	Sector       string
	PasswordHash string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
	Operators             []Operator
}

// WorkOrderConfig tunes the work order service.
type WorkOrderConfig struct {
	NumberPrefix  string
	UpdateRetries int
	NumberRetries int
}

// SyncConfig tunes the realtime sync client.
type SyncConfig struct {
	Enabled          bool
	Table            string
	MaxAttempts      int
	BaseDelay        time.Duration
	MaxDelay         time.Duration
	Factor           float64
	LivenessInterval time.Duration
	SubscribeTimeout time.Duration
	ProbeInterval    time.Duration
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	operators, err := ParseOperators(os.Getenv("AUTH_OPERATORS"))
	if err != nil {
		return nil, err
	}

	factor, err := strconv.ParseFloat(getEnv("SYNC_BACKOFF_FACTOR", "1.5"), 64)
	if err != nil || factor < 1 {
		return nil, fmt.Errorf("invalid SYNC_BACKOFF_FACTOR: must be a number >= 1")
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "fleet-workorders"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Enabled:        getEnvAsBool("REDIS_ENABLED", true),
			Addr:           getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:       os.Getenv("REDIS_PASSWORD"),
			DB:             redisDB,
			SignalsChannel: getEnv("REDIS_SIGNALS_CHANNEL", "fleet:work-orders:signals"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 480),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
			Operators:             operators,
		},
		WorkOrder: WorkOrderConfig{
			NumberPrefix:  getEnv("WORK_ORDER_NUMBER_PREFIX", "OS"),
			UpdateRetries: getEnvAsInt("WORK_ORDER_UPDATE_RETRIES", 3),
			NumberRetries: getEnvAsInt("WORK_ORDER_NUMBER_RETRIES", 3),
		},
		Sync: SyncConfig{
			Enabled:          getEnvAsBool("SYNC_ENABLED", true),
			Table:            getEnv("SYNC_TABLE", "work_orders"),
			MaxAttempts:      getEnvAsInt("SYNC_MAX_ATTEMPTS", 15),
			BaseDelay:        getEnvAsDuration("SYNC_BASE_DELAY", time.Second),
			MaxDelay:         getEnvAsDuration("SYNC_MAX_DELAY", 60*time.Second),
			Factor:           factor,
			LivenessInterval: getEnvAsDuration("SYNC_LIVENESS_INTERVAL", 60*time.Second),
			SubscribeTimeout: getEnvAsDuration("SYNC_SUBSCRIBE_TIMEOUT", 10*time.Second),
			ProbeInterval:    getEnvAsDuration("SYNC_PROBE_INTERVAL", 15*time.Second),
		},
	}

	return cfg, nil
}

// ParseOperators reads "username:sector:bcrypt-hash" entries separated by
// semicolons.
func ParseOperators(raw string) ([]Operator, error) {
	var operators []Operator
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
			return nil, fmt.Errorf("invalid AUTH_OPERATORS entry %q: want username:sector:hash", entry)
		}
		operators = append(operators, Operator{
			Username:     strings.TrimSpace(parts[0]),
			Sector:       strings.ToUpper(strings.TrimSpace(parts[1])),
			PasswordHash: strings.TrimSpace(parts[2]),
		})
	}
	return operators, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// AccessTokenTTL returns the token lifetime.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
