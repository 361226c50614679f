package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutPath(t *testing.T) {
	t.Setenv("GAME_CONFIG", "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "flat", cfg.World.Generator)
	assert.Equal(t, 25565, cfg.Server.GetPort(), "порт по умолчанию")
	assert.Equal(t, 256, cfg.Server.CompressionThreshold)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	data := []byte(`
server:
  port: 25570
  motd: "Тестовый сервер"
  compression_threshold: -1
world:
  generator: noise
  seed: 42
  view_distance: 4
logging:
  level: warn
  components:
    network: debug
`)
	require.NoError(t, os.WriteFile(path, data, 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 25570, cfg.Server.GetPort())
	assert.Equal(t, "Тестовый сервер", cfg.Server.MOTD)
	assert.Equal(t, -1, cfg.Server.CompressionThreshold)
	assert.Equal(t, "noise", cfg.World.Generator)
	assert.Equal(t, 4, cfg.World.ViewDistance)
	assert.Equal(t, 20, cfg.Server.MaxPlayers, "незаданные поля сохраняют значения по умолчанию")
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, map[string]string{"network": "debug"}, cfg.Logging.Components)
	assert.Equal(t, "logs", cfg.Logging.Dir)
}

func TestPortEnvFallback(t *testing.T) {
	t.Setenv("GAME_PORT", "30000")
	s := ServerConfig{}
	assert.Equal(t, 30000, s.GetPort())
	s.Port = 1234
	assert.Equal(t, 1234, s.GetPort(), "значение из конфигурации важнее переменной окружения")
}

func TestValidateRejectsUnknownBackends(t *testing.T) {
	cfg := Default()
	cfg.World.Storage = "sqlite"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.World.ViewDistance = 1
	assert.Error(t, cfg.Validate())

	assert.NoError(t, Default().Validate())
}

func TestParseGameMode(t *testing.T) {
	assert.Equal(t, uint8(1), ParseGameMode("creative"))
	assert.Equal(t, uint8(3), ParseGameMode("spectator"))
	assert.Equal(t, uint8(0), ParseGameMode("hardcore"), "неизвестный режим — survival")

	cfg := Default()
	cfg.World.GameMode = "hardcore"
	assert.Error(t, cfg.Validate())
}
