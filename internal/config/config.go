package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"AccessibilityScanner/pkg/logger"
)

const (
	configPathEnv     = "ACCESSIBILITY_SCANNER_CONFIG"
	logLevelEnv       = "LOG_LEVEL"
	redisURLEnv       = "REDIS_URL"
	databaseDSNEnv    = "DATABASE_DSN"
	storageDriverEnv  = "STORAGE_DRIVER"
	relayListenEnv    = "RELAY_LISTEN_ADDR"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	standardsPathEnv  = "STANDARDS_PATH"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Audit         AuditConfig        `yaml:"audit"`
	Standards     StandardsConfig    `yaml:"standards"`
	Storage       StorageConfig      `yaml:"storage"`
	Transport     TransportConfig    `yaml:"transport"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Notifications NotificationConfig `yaml:"notifications"`
	Telemetry     TelemetryConfig    `yaml:"telemetry"`
}

// LoggingConfig sets the slog level (error, warn, info, debug).
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// AuditConfig tunes the orchestrator and the context extractor.
type AuditConfig struct {
	CheckerTimeout time.Duration `yaml:"checkerTimeout"`
	ContextWindow  int           `yaml:"contextWindow"`
}

// StandardsConfig points at a guideline catalog. Empty means the bundled one.
type StandardsConfig struct {
	Path string `yaml:"path"`
}

// StorageConfig selects the finding store.
type StorageConfig struct {
	Driver      string `yaml:"driver"`
	RedisURL    string `yaml:"redisUrl"`
	PostgresDSN string `yaml:"postgresDsn"`
}

// TransportConfig describes the relay endpoint.
type TransportConfig struct {
	ListenAddr string `yaml:"listenAddr"`
	RelayURL   string `yaml:"relayUrl"`
}

// SchedulerConfig defines when and what the periodic audit visits.
type SchedulerConfig struct {
	Interval time.Duration `yaml:"interval"`
	Targets  []string      `yaml:"targets"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// TelemetryConfig names the service in spans and metrics.
type TelemetryConfig struct {
	ServiceName string `yaml:"serviceName"`
}

// Load reads YAML configuration named by ACCESSIBILITY_SCANNER_CONFIG (if set) and applies
// environment overrides.
func Load() Config {
	return LoadFile(os.Getenv(configPathEnv))
}

// LoadFile is Load with an explicit file path. An unreadable or invalid file falls back to
// defaults.
func LoadFile(path string) Config {
	log := logger.New("config")
	cfg := defaultConfig()

	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		log.Printf("%v, using %s storage", err, DriverMemory)
		cfg.Storage.Driver = DriverMemory
	}
	return cfg
}

// Validate reports settings the application cannot start with.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverRedis:
		if c.Storage.RedisURL == "" {
			return fmt.Errorf("storage driver %s needs redisUrl", DriverRedis)
		}
	case DriverPostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage driver %s needs postgresDsn", DriverPostgres)
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(storageDriverEnv); v != "" {
		c.Storage.Driver = strings.ToLower(v)
	}
	if v := os.Getenv(redisURLEnv); v != "" {
		c.Storage.RedisURL = v
	}
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Storage.PostgresDSN = v
	}

	if v := os.Getenv(relayListenEnv); v != "" {
		c.Transport.ListenAddr = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	if v := os.Getenv(standardsPathEnv); v != "" {
		c.Standards.Path = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	if override.Audit.CheckerTimeout > 0 {
		base.Audit.CheckerTimeout = override.Audit.CheckerTimeout
	}
	if override.Audit.ContextWindow > 0 {
		base.Audit.ContextWindow = override.Audit.ContextWindow
	}

	if override.Standards.Path != "" {
		base.Standards.Path = override.Standards.Path
	}

	if override.Storage.Driver != "" {
		base.Storage.Driver = strings.ToLower(override.Storage.Driver)
	}
	if override.Storage.RedisURL != "" {
		base.Storage.RedisURL = override.Storage.RedisURL
	}
	if override.Storage.PostgresDSN != "" {
		base.Storage.PostgresDSN = override.Storage.PostgresDSN
	}

	if override.Transport.ListenAddr != "" {
		base.Transport.ListenAddr = override.Transport.ListenAddr
	}
	if override.Transport.RelayURL != "" {
		base.Transport.RelayURL = override.Transport.RelayURL
	}

	if override.Scheduler.Interval > 0 {
		base.Scheduler.Interval = override.Scheduler.Interval
	}
	if len(override.Scheduler.Targets) > 0 {
		base.Scheduler.Targets = override.Scheduler.Targets
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	if override.Telemetry.ServiceName != "" {
		base.Telemetry.ServiceName = override.Telemetry.ServiceName
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Audit: AuditConfig{
			CheckerTimeout: 10 * time.Second,
			ContextWindow:  50,
		},
		Storage: StorageConfig{
			Driver:   DriverMemory,
			RedisURL: "redis://localhost:6379/0",
		},
		Transport: TransportConfig{
			ListenAddr: "localhost:8888",
			RelayURL:   "ws://localhost:8888/ws",
		},
		Scheduler: SchedulerConfig{Interval: 24 * time.Hour},
		Telemetry: TelemetryConfig{ServiceName: "accessibility-scanner"},
	}
}
