// Package tlog provides the structured, leveled logger used throughout the
// tap-go node. It mirrors the logging shape of the clearnode reference
// program (NewSystem-scoped loggers, key/value pairs, context attachment)
// instead of hand-rolling a new convention, and the same console/logfmt/json
// encoder switch its pkg/log.NewZapLogger offers.
package tlog

import (
	"context"
	"os"
	"time"

	golog "github.com/ipfs/go-log/v2"
	zaplogfmt "github.com/jsternberg/zap-logfmt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured logger interface used across tap-go packages.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	// With returns a derived logger carrying one additional key/value pair
	// on every subsequent log line.
	With(key string, value interface{}) Logger
	// NewSystem returns a derived logger scoped to a named subsystem
	// (e.g. "agent", "node", "store").
	NewSystem(name string) Logger
}

type ipfsLogger struct {
	lg   *zap.SugaredLogger
	kv   []interface{}
	name string
}

// New returns the default tap-go logger. TAP_LOG_LEVEL selects the level
// (debug/info/warn/error, default "info"); TAP_LOG_FORMAT selects the wire
// encoding ("console", "logfmt" or "json", default "console"), the same
// three-way switch as the teacher's NewZapLogger.
func New() Logger {
	levelStr := os.Getenv("TAP_LOG_LEVEL")
	if levelStr == "" {
		levelStr = "info"
	}
	level, err := golog.Parse(levelStr)
	if err != nil {
		level = golog.LevelInfo // fallback when TAP_LOG_LEVEL is unparsable
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = func(ts time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(ts.UTC().Format(time.RFC3339))
	}

	var encoder zapcore.Encoder
	switch os.Getenv("TAP_LOG_FORMAT") {
	case "logfmt":
		encoder = zaplogfmt.NewEncoder(encCfg)
	case "json":
		encoder = zapcore.NewJSONEncoder(encCfg)
	default:
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), zapcore.Level(level))
	lg := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Sugar().Named("tap")

	return &ipfsLogger{lg: lg, name: "tap"}
}

func (l *ipfsLogger) Debug(msg string, kv ...interface{}) { l.lg.Debugw(msg, kv...) }
func (l *ipfsLogger) Info(msg string, kv ...interface{})  { l.lg.Infow(msg, kv...) }
func (l *ipfsLogger) Warn(msg string, kv ...interface{})  { l.lg.Warnw(msg, kv...) }
func (l *ipfsLogger) Error(msg string, kv ...interface{}) { l.lg.Errorw(msg, kv...) }

func (l *ipfsLogger) With(key string, value interface{}) Logger {
	return &ipfsLogger{
		lg:   l.lg.With(key, value),
		kv:   append(append([]interface{}{}, l.kv...), key, value),
		name: l.name,
	}
}

func (l *ipfsLogger) NewSystem(name string) Logger {
	lg := l.lg.Named(name)
	if len(l.kv) > 0 {
		lg = lg.With(l.kv...)
	}
	return &ipfsLogger{lg: lg, kv: l.kv, name: name}
}

type contextKey struct{}

// WithContext attaches lg to ctx.
func WithContext(ctx context.Context, lg Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, lg)
}

// FromContext retrieves the logger previously attached with WithContext,
// falling back to a freshly built New() logger if none was attached.
func FromContext(ctx context.Context) Logger {
	if lg, ok := ctx.Value(contextKey{}).(Logger); ok {
		return lg
	}
	return New()
}
