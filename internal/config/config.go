package config

import (
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации сервера.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	World     WorldConfig     `yaml:"world"`
	Sync      SyncConfig      `yaml:"sync"`
	EventBus  EventBusConfig  `yaml:"eventbus"`
	Presence  PresenceConfig  `yaml:"presence"`
	Admin     AdminConfig     `yaml:"admin"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Host                 string `yaml:"host"`
	Port                 int    `yaml:"port"`
	MOTD                 string `yaml:"motd"`
	MaxPlayers           int    `yaml:"max_players"`
	FaviconPath          string `yaml:"favicon_path"`
	CompressionThreshold int    `yaml:"compression_threshold"` // < 0: без сжатия
	Brand                string `yaml:"brand"`
	KeepAliveSeconds     int    `yaml:"keep_alive_seconds"`
	KeepAliveTimeout     int    `yaml:"keep_alive_timeout_seconds"`
	Links                []Link `yaml:"links"`
}

// Link: ссылка для меню паузы клиента.
type Link struct {
	Label string `yaml:"label"`
	URL   string `yaml:"url"`
}

type WorldConfig struct {
	Generator          string `yaml:"generator"` // flat | noise
	Seed               int64  `yaml:"seed"`
	ViewDistance       int    `yaml:"view_distance"`
	SimulationDistance int    `yaml:"simulation_distance"`
	GameMode           string `yaml:"game_mode"`
	Storage            string `yaml:"storage"` // memory | badger
	StoragePath        string `yaml:"storage_path"`
	Positions          string `yaml:"positions"` // memory | redis, хранилище позиций игроков
	SaveEverySeconds   int    `yaml:"save_every_seconds"`
	ChangeLogSize      int    `yaml:"change_log_size"`
}

type SyncConfig struct {
	IntervalMillis int `yaml:"interval_ms"`
}

type EventBusConfig struct {
	Backend   string `yaml:"backend"` // memory | nats
	URL       string `yaml:"url"`
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
}

type PresenceConfig struct {
	Backend    string `yaml:"backend"` // memory | redis
	RedisAddr  string `yaml:"redis_addr"`
	ServerID   string `yaml:"server_id"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

type AdminConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	ToFile bool   `yaml:"to_file"`
	Dir    string `yaml:"dir"`
	// Уровни отдельных компонентов: network: debug, sync: trace
	Components map[string]string `yaml:"components"`
}

// Default возвращает конфигурацию по умолчанию.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			MOTD:                 "A voxelgate server",
			MaxPlayers:           20,
			CompressionThreshold: 256,
			Brand:                "voxelgate",
			KeepAliveSeconds:     15,
			KeepAliveTimeout:     30,
		},
		World: WorldConfig{
			Generator:          "flat",
			ViewDistance:       8,
			SimulationDistance: 8,
			GameMode:           "creative",
			Storage:            "memory",
			StoragePath:        "data/world",
			Positions:          "memory",
			SaveEverySeconds:   60,
			ChangeLogSize:      4096,
		},
		Sync:      SyncConfig{IntervalMillis: 50},
		EventBus:  EventBusConfig{Backend: "memory", Stream: "WORLD", Retention: 1},
		Presence:  PresenceConfig{Backend: "memory", ServerID: "voxelgate-1", TTLSeconds: 30},
		Admin:     AdminConfig{Enabled: true},
		Telemetry: TelemetryConfig{ServiceName: "voxelgate"},
		Logging:   LoggingConfig{Level: "info", Dir: "logs"},
	}
}

// GetPort возвращает игровой порт с поддержкой fallback значений
func (s *ServerConfig) GetPort() int {
	return getPortWithEnvFallback(s.Port, "GAME_PORT", 25565)
}

// Address возвращает адрес для net.Listen.
func (s *ServerConfig) Address() string {
	return s.Host + ":" + strconv.Itoa(s.GetPort())
}

// KeepAliveInterval: период keep-alive в Play.
func (s *ServerConfig) KeepAliveInterval() time.Duration {
	return time.Duration(s.KeepAliveSeconds) * time.Second
}

// KeepAliveDeadline: время ожидания ответа на keep-alive.
func (s *ServerConfig) KeepAliveDeadline() time.Duration {
	return time.Duration(s.KeepAliveTimeout) * time.Second
}

// GetPort возвращает порт admin HTTP с поддержкой fallback значений
func (a *AdminConfig) GetPort() int {
	return getPortWithEnvFallback(a.Port, "GAME_ADMIN_PORT", 8088)
}

// Interval: период прохода синхронизации.
func (s *SyncConfig) Interval() time.Duration {
	if s.IntervalMillis <= 0 {
		return 50 * time.Millisecond
	}
	return time.Duration(s.IntervalMillis) * time.Millisecond
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", берётся ENV GAME_CONFIG; если и он пуст, возвращаются значения по умолчанию.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("GAME_CONFIG")
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет значения, которые сервер не может исправить сам.
func (c *Config) Validate() error {
	switch c.World.Generator {
	case "flat", "noise":
	default:
		return errors.Errorf("world.generator: unknown generator %q", c.World.Generator)
	}
	switch c.World.Storage {
	case "memory", "badger":
	default:
		return errors.Errorf("world.storage: unknown backend %q", c.World.Storage)
	}
	switch c.World.Positions {
	case "memory", "redis":
	default:
		return errors.Errorf("world.positions: unknown backend %q", c.World.Positions)
	}
	switch c.EventBus.Backend {
	case "memory", "nats":
	default:
		return errors.Errorf("eventbus.backend: unknown backend %q", c.EventBus.Backend)
	}
	switch c.Presence.Backend {
	case "memory", "redis":
	default:
		return errors.Errorf("presence.backend: unknown backend %q", c.Presence.Backend)
	}
	if _, ok := gameModes[c.World.GameMode]; !ok {
		return errors.Errorf("world.game_mode: unknown mode %q", c.World.GameMode)
	}
	if c.World.ViewDistance < 2 || c.World.ViewDistance > 32 {
		return errors.Errorf("world.view_distance: %d out of range 2..32", c.World.ViewDistance)
	}
	if c.Server.MaxPlayers <= 0 {
		return errors.Errorf("server.max_players must be positive")
	}
	return nil
}

var gameModes = map[string]uint8{
	"survival":  0,
	"creative":  1,
	"adventure": 2,
	"spectator": 3,
}

// ParseGameMode переводит имя режима игры в его номер. Неизвестное имя, survival.
func ParseGameMode(name string) uint8 {
	return gameModes[name]
}
