// Package log provides structured logging for the library, backed by
// github.com/rs/zerolog.
//
// Estimators obtain a named logger via GetLoggerWithName and attach
// key-value context with With. The package-level helpers (SetupLogger,
// GetLogger, LogError) configure and expose the shared zerolog instance for
// applications that want direct access to the underlying event API.
package log

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Shared structured field keys so log output stays greppable across the
// library.
const (
	ModelNameKey  = "model"
	ComponentKey  = "component"
	OperationKey  = "operation"
	PhaseKey      = "phase"
	SamplesKey    = "samples"
	FeaturesKey   = "features"
	DepthKey      = "depth"
	LeavesKey     = "leaves"
	LevelKey      = "level"
	EvalsKey      = "evaluations"
	DurationMsKey = "duration_ms"
	PredsKey      = "predictions"
)

// Common values for OperationKey and PhaseKey.
const (
	OperationFit     = "fit"
	OperationPredict = "predict"
	OperationPrune   = "prune"
	PhaseTraining    = "training"
	PhaseInference   = "inference"
)

// Logger is the structured logging interface used by estimators. Fields are
// alternating key-value pairs; keys must be strings.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	With(fields ...interface{}) Logger
}

// LoggerProvider creates named loggers. A provider wraps one configured
// backend so libraries embedding this package can swap the sink.
type LoggerProvider interface {
	GetLogger() Logger
	GetLoggerWithName(name string) Logger
}

var global = zerolog.New(os.Stderr).With().Timestamp().Logger()

// SetupLogger configures the global log level ("debug", "info", "warn",
// "error", "disabled") and resets the shared logger.
func SetupLogger(level string) {
	zerolog.SetGlobalLevel(ToLogLevel(level))
	global = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// ToLogLevel converts a level name to a zerolog level, defaulting to info.
func ToLogLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// GetLogger returns the shared zerolog logger for direct event-API access.
func GetLogger() zerolog.Logger { return global }

// GetLoggerWithName returns a structured Logger tagged with a component name.
func GetLoggerWithName(name string) Logger {
	return &zerologLogger{l: global.With().Str("logger", name).Logger()}
}

// LogError logs err at error level with a message on the shared logger.
func LogError(err error, msg string) {
	global.Error().Err(err).Msg(msg)
}

// NewZerologProvider creates a LoggerProvider writing to stderr at the given
// level, independent of the global logger.
func NewZerologProvider(level zerolog.Level) LoggerProvider {
	return &zerologProvider{l: zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()}
}

type zerologProvider struct {
	l zerolog.Logger
}

func (p *zerologProvider) GetLogger() Logger { return &zerologLogger{l: p.l} }

func (p *zerologProvider) GetLoggerWithName(name string) Logger {
	return &zerologLogger{l: p.l.With().Str("logger", name).Logger()}
}

type zerologLogger struct {
	l zerolog.Logger
}

func (z *zerologLogger) Debug(msg string, fields ...interface{}) {
	applyFields(z.l.Debug(), fields).Msg(msg)
}

func (z *zerologLogger) Info(msg string, fields ...interface{}) {
	applyFields(z.l.Info(), fields).Msg(msg)
}

func (z *zerologLogger) Warn(msg string, fields ...interface{}) {
	applyFields(z.l.Warn(), fields).Msg(msg)
}

func (z *zerologLogger) Error(msg string, fields ...interface{}) {
	applyFields(z.l.Error(), fields).Msg(msg)
}

func (z *zerologLogger) With(fields ...interface{}) Logger {
	ctx := z.l.With()
	for i := 0; i+1 < len(fields); i += 2 {
		ctx = ctx.Interface(fieldKey(fields[i]), fields[i+1])
	}
	return &zerologLogger{l: ctx.Logger()}
}

func applyFields(ev *zerolog.Event, fields []interface{}) *zerolog.Event {
	for i := 0; i+1 < len(fields); i += 2 {
		ev = ev.Interface(fieldKey(fields[i]), fields[i+1])
	}
	return ev
}

func fieldKey(k interface{}) string {
	if s, ok := k.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", k)
}
