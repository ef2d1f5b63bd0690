package log

import (
	"fmt"
	"runtime"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	ALL = iota + 0
	DEBUG
	INFO
	WARN
	ERROR
)

const (
	_callerInfo = "NoCallerFile"
)

var DefaultDebugLevel = DEBUG

const CallHierarchy int = 1

var _log = zap.NewNop()

func JSON(v interface{}) string {
	return fmt.Sprintf("%+v", v)
}

func Info(p string, f ...zapcore.Field) {
	if DefaultDebugLevel > INFO {
		return
	}

	_log.Info(p, withCaller(f)...)
}

func Warn(p string, f ...zapcore.Field) {
	if DefaultDebugLevel > WARN {
		return
	}

	_log.Warn(p, withCaller(f)...)
}

func Debug(p string, f ...zapcore.Field) {
	if DefaultDebugLevel > DEBUG {
		return
	}

	_log.Debug(p, withCaller(f)...)
}

func Error(p string, f ...zapcore.Field) {
	if DefaultDebugLevel > ERROR {
		return
	}

	_log.Error(p, withCaller(f)...)
}

func withCaller(f []zapcore.Field) []zapcore.Field {
	// skip withCaller and the exported wrapper
	_, file, line, ok := runtime.Caller(CallHierarchy + 1)
	callerInfo := _callerInfo

	if ok {
		callerInfo = fmt.Sprintf("%s:%d", file, line)
	}

	t := []zapcore.Field{zap.String("caller", callerInfo)}

	return append(t, f...)
}

// ParseLevel maps a config level name to one of the level constants.
func ParseLevel(s string) int {
	switch strings.ToLower(s) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	case "all":
		return ALL
	default:
		return INFO
	}
}

func Init(servername, level string) {
	DefaultDebugLevel = ParseLevel(level)

	encoderConfig := zapcore.EncoderConfig{
		MessageKey:     "msg",
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.FullCallerEncoder,
	}
	atom := zap.NewAtomicLevelAt(zap.DebugLevel)
	config := zap.Config{
		Level:            atom,
		Development:      DefaultDebugLevel <= DEBUG,
		Encoding:         "json",
		EncoderConfig:    encoderConfig,
		InitialFields:    map[string]interface{}{"servername": servername},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	l, e := config.Build()
	if e != nil {
		panic(fmt.Sprintf("log init failed: %v", e))
	}

	_log = l
}

func Sync() {
	_ = _log.Sync()
}
