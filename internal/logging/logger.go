package logging

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel определяет уровни логирования
type LogLevel int

const (
	TRACE LogLevel = iota
	DEBUG
	INFO
	WARN
	ERROR
)

// String возвращает строковое представление уровня логирования
func (l LogLevel) String() string {
	switch l {
	case TRACE:
		return "TRACE"
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel переводит имя уровня из конфигурации; неизвестное имя даёт INFO.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(s) {
	case "trace":
		return TRACE
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	}
	return INFO
}

// zapLevel: у zap нет TRACE, он пишется как DEBUG.
func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case TRACE, DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	}
	return zapcore.InfoLevel
}

// Options: параметры логгеров, задаются один раз при старте.
type Options struct {
	Level   LogLevel
	ToFile  bool
	Dir     string
	Console bool
}

var options = Options{Level: INFO, Dir: "logs", Console: true}

// Configure задаёт параметры для всех логгеров, созданных после вызова.
func Configure(o Options) {
	if o.Dir == "" {
		o.Dir = "logs"
	}
	options = o
}

// Logger логгер компонента, пишет в консоль и, если включено, отдельный файл.
type Logger struct {
	component       string
	sugar           *zap.SugaredLogger
	consoleLevel    zap.AtomicLevel
	fileLevel       zap.AtomicLevel
	file            *os.File
	minConsoleLevel LogLevel
	minFileLevel    LogLevel
}

// NewLogger создаёт логгер с полем component.
func NewLogger(component string) (*Logger, error) {
	l := &Logger{
		component:       component,
		consoleLevel:    zap.NewAtomicLevelAt(options.Level.zapLevel()),
		fileLevel:       zap.NewAtomicLevelAt(zapcore.DebugLevel),
		minConsoleLevel: options.Level,
		minFileLevel:    TRACE,
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var cores []zapcore.Core
	if options.Console {
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stdout), l.consoleLevel))
	}
	if options.ToFile {
		if err := os.MkdirAll(options.Dir, 0755); err != nil {
			return nil, fmt.Errorf("ошибка создания директории %s: %w", options.Dir, err)
		}
		timestamp := time.Now().Format("2006-01-02_15-04-05")
		name := filepath.Join(options.Dir, fmt.Sprintf("%s_%s.log", component, timestamp))
		f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("ошибка создания файла логов: %w", err)
		}
		l.file = f
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), zapcore.AddSync(f), l.fileLevel))
	}

	l.sugar = zap.New(zapcore.NewTee(cores...)).Sugar().With("component", component)
	return l, nil
}

// With возвращает логгер с дополнительными полями в каждой записи.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	cp := *l
	cp.sugar = l.sugar.With(keysAndValues...)
	cp.file = nil
	return &cp
}

// Close сбрасывает буферы и закрывает файл.
func (l *Logger) Close() error {
	_ = l.sugar.Sync()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

func (l *Logger) setLevels(console, file LogLevel) {
	l.minConsoleLevel = console
	l.minFileLevel = file
	l.consoleLevel.SetLevel(console.zapLevel())
	l.fileLevel.SetLevel(file.zapLevel())
}

func (l *Logger) Trace(format string, args ...interface{}) {
	if l.minConsoleLevel > TRACE && l.minFileLevel > TRACE {
		return
	}
	l.sugar.Debugf("[trace] "+format, args...)
}

func (l *Logger) Debug(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.sugar.Infof(format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.sugar.Warnf(format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }

// Debugw пишет сообщение со структурированными полями.
func (l *Logger) Debugw(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l *Logger) Infow(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, keysAndValues...)
}

func (l *Logger) Warnw(msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, keysAndValues...)
}

func (l *Logger) Errorw(msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, keysAndValues...)
}

// Глобальный логгер сервера
var defaultLogger = mustNop()

func mustNop() *Logger {
	return &Logger{
		component:    "default",
		sugar:        zap.NewNop().Sugar(),
		consoleLevel: zap.NewAtomicLevel(),
		fileLevel:    zap.NewAtomicLevel(),
	}
}

// InitDefaultLogger инициализирует глобальный логгер для компонента.
func InitDefaultLogger(component string) error {
	l, err := NewLogger(component)
	if err != nil {
		return err
	}
	defaultLogger = l
	return nil
}

// CloseDefaultLogger закрывает глобальный логгер.
func CloseDefaultLogger() {
	if defaultLogger != nil {
		_ = defaultLogger.Close()
	}
}

// Default возвращает глобальный логгер.
func Default() *Logger { return defaultLogger }

func Trace(format string, args ...interface{}) { defaultLogger.Trace(format, args...) }
func Debug(format string, args ...interface{}) { defaultLogger.Debug(format, args...) }
func Info(format string, args ...interface{})  { defaultLogger.Info(format, args...) }
func Warn(format string, args ...interface{})  { defaultLogger.Warn(format, args...) }
func Error(format string, args ...interface{}) { defaultLogger.Error(format, args...) }

// HexDump создает hex дамп данных
func HexDump(data []byte) string {
	if len(data) == 0 {
		return "No data"
	}

	// Ограничиваем размер дампа до 256 байт
	size := len(data)
	if size > 256 {
		size = 256
	}

	return hex.Dump(data[:size])
}

// LogProtocolError логирует ошибку протокола с контекстом соединения и дампом кадра.
func LogProtocolError(l *Logger, remote, state string, packetID int32, offset int, err error, data []byte) {
	l.Errorw("protocol error",
		"remote", remote,
		"state", state,
		"packet_id", fmt.Sprintf("%#x", packetID),
		"offset", offset,
		"error", err,
	)
	if len(data) > 0 {
		l.Debug("Raw frame (%d bytes):\n%s", len(data), HexDump(data))
	}
}
