package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Worker   WorkerConfig
	Sources  SourcesConfig
	Schedule ScheduleConfig
	DB       DatabaseConfig
	Geocode  GeocodeConfig
	Notify   NotifyConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	RateLimitRPS int
	CORSOrigins  []string
}

type WorkerConfig struct {
	Count      int
	BufferSize int
}

type SourcesConfig struct {
	UserAgent   string
	HTTPTimeout time.Duration

	USGSEnabled      bool
	USGSURL          string
	USGSMinMagnitude float64
	USGSMaxAttempts  int
	USGSRetryDelay   time.Duration

	GDACSURL       string
	FloodEnabled   bool
	CycloneEnabled bool

	FireEnabled bool
	FIRMSURL    string
	FIRMSMapKey string
	FireMinFRP  float64
}

type ScheduleConfig struct {
	SyncInterval      time.Duration
	AlertInterval     time.Duration
	SyncOnStart       bool
	AlertInitialDelay time.Duration
	CleanupTopics     bool
}

type DatabaseConfig struct {
	Driver string // sqlite or postgres
	Path   string
	DSN    string
}

type GeocodeConfig struct {
	Enabled     bool
	URL         string
	UserAgent   string
	MinInterval time.Duration
	CacheTTL    time.Duration
	Timeout     time.Duration
	RegionsFile string
}

type NotifyConfig struct {
	Transport    string // memory, kafka or slack
	TopicPrefix  string
	KafkaBrokers []string
	SlackToken   string
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "localhost"),
			Port:         getEnvInt("SERVER_PORT", 5000),
			RateLimitRPS: getEnvInt("RATE_LIMIT_RPS", 5),
			CORSOrigins:  getEnvList("CORS_ORIGINS", []string{"*"}),
		},
		Worker: WorkerConfig{
			Count:      getEnvInt("WORKER_COUNT", 4),
			BufferSize: getEnvInt("WORKER_BUFFER_SIZE", 20),
		},
		Sources: SourcesConfig{
			UserAgent:        getEnv("SOURCE_USER_AGENT", "DIAS-Disaster-Information-System/1.0"),
			HTTPTimeout:      getEnvDuration("SOURCE_HTTP_TIMEOUT", 10*time.Second),
			USGSEnabled:      getEnvBool("USGS_ENABLED", true),
			USGSURL:          getEnv("USGS_URL", "https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/all_day.geojson"),
			USGSMinMagnitude: getEnvFloat("USGS_MIN_MAGNITUDE", 2.5),
			USGSMaxAttempts:  getEnvInt("USGS_MAX_ATTEMPTS", 3),
			USGSRetryDelay:   getEnvDuration("USGS_RETRY_DELAY", time.Second),
			GDACSURL:         getEnv("GDACS_URL", "https://www.gdacs.org/xml/rss.xml"),
			FloodEnabled:     getEnvBool("FLOOD_ENABLED", true),
			CycloneEnabled:   getEnvBool("CYCLONE_ENABLED", true),
			FireEnabled:      getEnvBool("FIRE_ENABLED", true),
			FIRMSURL:         getEnv("FIRMS_URL", "https://firms.modaps.eosdis.nasa.gov/api/area/csv"),
			FIRMSMapKey:      getEnv("FIRMS_MAP_KEY", ""),
			FireMinFRP:       getEnvFloat("FIRE_MIN_FRP", 20),
		},
		Schedule: ScheduleConfig{
			SyncInterval:      getEnvDuration("SYNC_INTERVAL", 6*time.Hour),
			AlertInterval:     getEnvDuration("ALERT_INTERVAL", 10*time.Minute),
			SyncOnStart:       getEnvBool("SYNC_ON_START", true),
			AlertInitialDelay: getEnvDuration("ALERT_INITIAL_DELAY", 5*time.Second),
			CleanupTopics:     getEnvBool("CLEANUP_INACTIVE_TOPICS", false),
		},
		DB: DatabaseConfig{
			Driver: getEnv("DB_DRIVER", "sqlite"),
			Path:   getEnv("DB_PATH", "./data/dias.db"),
			DSN:    getEnv("DATABASE_URL", ""),
		},
		Geocode: GeocodeConfig{
			Enabled:     getEnvBool("GEOCODE_ENABLED", true),
			URL:         getEnv("GEOCODE_URL", "https://nominatim.openstreetmap.org/reverse"),
			UserAgent:   getEnv("GEOCODE_USER_AGENT", "DIAS-DisasterAlert/1.0"),
			MinInterval: getEnvDuration("GEOCODE_MIN_INTERVAL", time.Second),
			CacheTTL:    getEnvDuration("GEOCODE_CACHE_TTL", time.Hour),
			Timeout:     getEnvDuration("GEOCODE_TIMEOUT", 5*time.Second),
			RegionsFile: getEnv("GEOCODE_REGIONS_FILE", ""),
		},
		Notify: NotifyConfig{
			Transport:    getEnv("NOTIFY_TRANSPORT", "memory"),
			TopicPrefix:  getEnv("NOTIFY_TOPIC_PREFIX", "dias-alerts"),
			KafkaBrokers: getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
			SlackToken:   getEnv("SLACK_BOT_TOKEN", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.RateLimitRPS < 1 {
		return fmt.Errorf("rate limit must be at least 1 request per second")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if c.Worker.Count < 1 {
		return fmt.Errorf("worker count must be at least 1")
	}
	if c.Sources.USGSMaxAttempts < 1 {
		return fmt.Errorf("USGS max attempts must be at least 1")
	}
	if c.Schedule.SyncInterval < time.Minute {
		return fmt.Errorf("sync interval must be at least 1 minute")
	}
	if c.Schedule.AlertInterval < time.Minute {
		return fmt.Errorf("alert interval must be at least 1 minute")
	}

	switch c.DB.Driver {
	case "sqlite":
		if c.DB.Path == "" {
			return fmt.Errorf("DB_PATH is required for the sqlite driver")
		}
	case "postgres":
		if c.DB.DSN == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("invalid database driver: %s", c.DB.Driver)
	}

	switch c.Notify.Transport {
	case "memory":
	case "kafka":
		if len(c.Notify.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required for the kafka transport")
		}
	case "slack":
		if c.Notify.SlackToken == "" {
			return fmt.Errorf("SLACK_BOT_TOKEN is required for the slack transport")
		}
	default:
		return fmt.Errorf("invalid notify transport: %s", c.Notify.Transport)
	}

	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvList splits a comma-separated value, dropping empty entries.
func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
