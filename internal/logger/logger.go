package logger

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	gormlogger "gorm.io/gorm/logger"
)

var Log zerolog.Logger

// Init initializes the global logger with the specified level.
// Valid levels: debug, info, warn, error
func Init(level string) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	Log = zerolog.New(os.Stdout).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

// Module returns a logger with a module field for scoped logging.
func Module(name string) zerolog.Logger {
	return Log.With().Str("module", name).Logger()
}

// GormLogger adapts zerolog to GORM's logger interface so archive
// queries log through the same sink as everything else.
type GormLogger struct {
	zlog          zerolog.Logger
	slowThreshold time.Duration
}

// NewGormLogger creates a GORM-compatible logger for the given module.
func NewGormLogger(module string) gormlogger.Interface {
	return &GormLogger{
		zlog:          Module(module),
		slowThreshold: 200 * time.Millisecond,
	}
}

func (l *GormLogger) LogMode(gormlogger.LogLevel) gormlogger.Interface {
	return l
}

func (l *GormLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	l.zlog.Info().Msgf(msg, args...)
}

func (l *GormLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	l.zlog.Warn().Msgf(msg, args...)
}

func (l *GormLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	l.zlog.Error().Msgf(msg, args...)
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	switch {
	case err != nil:
		sql, rows := fc()
		l.zlog.Debug().Err(err).Str("sql", sql).Int64("rows", rows).Dur("elapsed", elapsed).Msg("query failed")
	case elapsed > l.slowThreshold:
		sql, rows := fc()
		l.zlog.Warn().Str("sql", sql).Int64("rows", rows).Dur("elapsed", elapsed).Msg("slow query")
	}
}
