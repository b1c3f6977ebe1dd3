package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"vibefeed/internal/middleware"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const slowQuery = 200 * time.Millisecond

// queryLogger sends GORM output to the service's slog logger. Failed
// statements log at error, slow ones at warn, and every statement at info
// when the level allows it. Missing rows are not errors.
type queryLogger struct {
	log   *slog.Logger
	level gormlogger.LogLevel
	slow  time.Duration
}

func newQueryLogger(level gormlogger.LogLevel) gormlogger.Interface {
	return &queryLogger{log: middleware.Logger, level: level, slow: slowQuery}
}

// gormLevel maps LOG_LEVEL onto GORM's levels; only debug logs every statement.
func gormLevel(logLevel string) gormlogger.LogLevel {
	switch logLevel {
	case "debug":
		return gormlogger.Info
	case "error":
		return gormlogger.Error
	default:
		return gormlogger.Warn
	}
}

func (q *queryLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *q
	clone.level = level
	return &clone
}

func (q *queryLogger) Info(ctx context.Context, format string, args ...any) {
	q.printf(ctx, gormlogger.Info, slog.LevelInfo, format, args)
}

func (q *queryLogger) Warn(ctx context.Context, format string, args ...any) {
	q.printf(ctx, gormlogger.Warn, slog.LevelWarn, format, args)
}

func (q *queryLogger) Error(ctx context.Context, format string, args ...any) {
	q.printf(ctx, gormlogger.Error, slog.LevelError, format, args)
}

func (q *queryLogger) printf(ctx context.Context, floor gormlogger.LogLevel, lvl slog.Level, format string, args []any) {
	if q.level >= floor {
		q.log.Log(ctx, lvl, fmt.Sprintf(format, args...))
	}
}

func (q *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if q.level <= gormlogger.Silent {
		return
	}
	took := time.Since(begin)
	failed := err != nil && !errors.Is(err, gorm.ErrRecordNotFound)
	slow := q.slow > 0 && took > q.slow

	var lvl slog.Level
	var msg string
	switch {
	case failed && q.level >= gormlogger.Error:
		lvl, msg = slog.LevelError, "query failed"
	case slow && q.level >= gormlogger.Warn:
		lvl, msg = slog.LevelWarn, "slow query"
	case q.level >= gormlogger.Info:
		lvl, msg = slog.LevelInfo, "query"
	default:
		return
	}

	sql, rows := fc()
	attrs := []slog.Attr{
		slog.String("sql", sql),
		slog.Int64("rows", rows),
		slog.Duration("took", took),
	}
	if failed {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	q.log.LogAttrs(ctx, lvl, msg, attrs...)
}
