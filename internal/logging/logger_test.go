package logging

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, TRACE, ParseLevel("trace"))
	assert.Equal(t, DEBUG, ParseLevel("DEBUG"))
	assert.Equal(t, WARN, ParseLevel("warning"))
	assert.Equal(t, ERROR, ParseLevel("error"))
	assert.Equal(t, INFO, ParseLevel("что-то"), "Неизвестный уровень даёт INFO")
	assert.Equal(t, "WARN", WARN.String())
}

func TestHexDump(t *testing.T) {
	assert.Equal(t, "No data", HexDump(nil))
	dump := HexDump([]byte{0x00, 0x7f, 0xff})
	assert.True(t, strings.HasPrefix(dump, "00000000  00 7f ff"))

	long := HexDump(make([]byte, 1000))
	assert.Equal(t, 16, strings.Count(long, "\n"), "Дамп ограничен 256 байтами")
}

func TestComponentLoggerIsCached(t *testing.T) {
	a := GetComponentLogger("test-component")
	b := GetComponentLogger("test-component")
	require.NotNil(t, a)
	assert.Same(t, a, b)

	// Логирование не должно паниковать ни с полями, ни с дампом
	LogProtocolError(a.With("conn", 1), "127.0.0.1:1", "play", 0x2a, 3, errors.New("boom"), []byte{1, 2, 3})
}

func TestManagerLevels(t *testing.T) {
	lm := &LoggerManager{loggers: make(map[string]*Logger)}
	require.NoError(t, lm.ApplyLevels(map[string]string{"network": "error", "sync": "trace"}))
	assert.Equal(t, []string{"network", "sync"}, lm.ListComponents())

	net := lm.MustGetLogger("network")
	assert.Equal(t, ERROR, net.minConsoleLevel)
	assert.Equal(t, zapcore.ErrorLevel, net.consoleLevel.Level())
	child := net.With("player", "Alex")
	assert.False(t, child.sugar.Desugar().Core().Enabled(zapcore.WarnLevel), "Дочерний логгер разделяет уровень")

	require.NoError(t, lm.SetLogLevel("network", DEBUG, DEBUG))
	assert.True(t, child.sugar.Desugar().Core().Enabled(zapcore.DebugLevel))
	assert.Error(t, lm.SetLogLevel("storage", DEBUG, DEBUG), "Компонент без логгера")

	assert.NoError(t, lm.CloseAll())
	assert.Empty(t, lm.ListComponents())
}
