package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFileMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
audit:
  checkerTimeout: 3s
storage:
  driver: Redis
  redisUrl: redis://cache:6379/2
scheduler:
  interval: 1h
  targets:
    - https://shop.example/
    - https://news.example/
`)
	cfg := LoadFile(path)

	if cfg.Logging.Level != "debug" {
		t.Fatalf("level = %q", cfg.Logging.Level)
	}
	if cfg.Audit.CheckerTimeout != 3*time.Second || cfg.Audit.ContextWindow != 50 {
		t.Fatalf("audit = %+v", cfg.Audit)
	}
	if cfg.Storage.Driver != DriverRedis || cfg.Storage.RedisURL != "redis://cache:6379/2" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if cfg.Scheduler.Interval != time.Hour || len(cfg.Scheduler.Targets) != 2 {
		t.Fatalf("scheduler = %+v", cfg.Scheduler)
	}
	if cfg.Transport.ListenAddr != "localhost:8888" || cfg.Transport.RelayURL != "ws://localhost:8888/ws" {
		t.Fatalf("transport defaults lost: %+v", cfg.Transport)
	}
}

func TestLoadFileEnvOverrides(t *testing.T) {
	t.Setenv(storageDriverEnv, "postgres")
	t.Setenv(databaseDSNEnv, "postgres://u:p@db/abt")
	t.Setenv(telegramTokenEnv, "token")
	t.Setenv(telegramChatIDEnv, "42")
	t.Setenv(relayListenEnv, ":9999")
	t.Setenv(standardsPathEnv, "/etc/abt/kwcag.json")
	t.Setenv(logLevelEnv, "warn")

	cfg := LoadFile(writeConfig(t, "storage:\n  driver: memory\n"))

	if cfg.Storage.Driver != DriverPostgres || cfg.Storage.PostgresDSN != "postgres://u:p@db/abt" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if cfg.Notifications.Telegram.BotToken != "token" || cfg.Notifications.Telegram.ChatID != "42" {
		t.Fatalf("telegram = %+v", cfg.Notifications.Telegram)
	}
	if cfg.Transport.ListenAddr != ":9999" || cfg.Standards.Path != "/etc/abt/kwcag.json" || cfg.Logging.Level != "warn" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestLoadFileFallsBack(t *testing.T) {
	cfg := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if cfg.Storage.Driver != DriverMemory || cfg.Scheduler.Interval != 24*time.Hour {
		t.Fatalf("defaults expected, got %+v", cfg)
	}

	cfg = LoadFile(writeConfig(t, "storage: [not, a, map"))
	if cfg.Storage.Driver != DriverMemory {
		t.Fatalf("invalid yaml should keep defaults, got %+v", cfg.Storage)
	}

	cfg = LoadFile(writeConfig(t, "storage:\n  driver: cassandra\n"))
	if cfg.Storage.Driver != DriverMemory {
		t.Fatalf("unknown driver should fall back to memory, got %q", cfg.Storage.Driver)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		storage StorageConfig
		ok      bool
	}{
		{StorageConfig{Driver: DriverMemory}, true},
		{StorageConfig{Driver: DriverRedis}, false},
		{StorageConfig{Driver: DriverRedis, RedisURL: "redis://x"}, true},
		{StorageConfig{Driver: DriverPostgres}, false},
		{StorageConfig{Driver: "sqlite"}, false},
	}
	for _, tc := range cases {
		err := Config{Storage: tc.storage}.Validate()
		if (err == nil) != tc.ok {
			t.Fatalf("Validate(%+v) = %v", tc.storage, err)
		}
	}
}
