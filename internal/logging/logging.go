// Package logging provides the level-filtered structured log sink shared by
// every simulator component. One sink is acquired at simulator start and
// released on all exit paths.
package logging

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is the minimum severity a sink will emit.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug: "Debug",
	LevelInfo:  "Info",
	LevelWarn:  "Warn",
	LevelError: "Error",
}

func (l Level) String() string {
	if s, ok := levelNames[l]; ok {
		return s
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// ParseLevel accepts a symbolic level name, case-insensitive.
func ParseLevel(s string) (Level, error) {
	for l, name := range levelNames {
		if strings.EqualFold(name, s) {
			return l, nil
		}
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// MarshalJSON writes the symbolic name.
func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON accepts a symbolic name or a legacy integer code.
func (l *Level) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, perr := ParseLevel(s)
		if perr != nil {
			return perr
		}
		*l = parsed
		return nil
	}
	n, err := strconv.Atoi(string(data))
	if err != nil || n < int(LevelDebug) || n > int(LevelError) {
		return fmt.Errorf("invalid log level %s", string(data))
	}
	*l = Level(n)
	return nil
}

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelInfo:
		return zapcore.InfoLevel
	case LevelWarn:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

// Logger is the single log entry point: log(level, id, name, message).
// Every record carries the originating entity's id and display name.
type Logger struct {
	zl  *zap.Logger
	min Level
}

// New builds a console sink filtered at min.
func New(min Level) (*Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(min.zapLevel())
	cfg.DisableStacktrace = true
	zl, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return &Logger{zl: zl, min: min}, nil
}

// NewNop returns a sink that discards everything. Used by tests.
func NewNop() *Logger {
	return &Logger{zl: zap.NewNop(), min: LevelError}
}

// Log is the generic entry point.
func (l *Logger) Log(level Level, id, name, msg string, fields ...zap.Field) {
	if l == nil || level < l.min {
		return
	}
	fields = append([]zap.Field{zap.String("id", id), zap.String("name", name)}, fields...)
	switch level {
	case LevelDebug:
		l.zl.Debug(msg, fields...)
	case LevelInfo:
		l.zl.Info(msg, fields...)
	case LevelWarn:
		l.zl.Warn(msg, fields...)
	default:
		l.zl.Error(msg, fields...)
	}
}

func (l *Logger) Debug(id, name, msg string, fields ...zap.Field) {
	l.Log(LevelDebug, id, name, msg, fields...)
}

func (l *Logger) Info(id, name, msg string, fields ...zap.Field) {
	l.Log(LevelInfo, id, name, msg, fields...)
}

func (l *Logger) Warn(id, name, msg string, fields ...zap.Field) {
	l.Log(LevelWarn, id, name, msg, fields...)
}

func (l *Logger) Error(id, name, msg string, fields ...zap.Field) {
	l.Log(LevelError, id, name, msg, fields...)
}

// Close flushes buffered records. Safe on nil and on double close.
func (l *Logger) Close() {
	if l == nil || l.zl == nil {
		return
	}
	_ = l.zl.Sync()
}
