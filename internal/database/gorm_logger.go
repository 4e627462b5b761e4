package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	maxSQLLength  = 200
	slowQueryTime = 500 * time.Millisecond
)

// gormLogger sends GORM output to slog. Queries are traced at Debug, slow
// queries at Warn and failures at Error. The record context is passed through
// so correlation IDs reach the SQL lines.
type gormLogger struct {
	log *slog.Logger
}

func newGormLogger(l *slog.Logger) gormLogger {
	if l == nil {
		l = slog.Default()
	}
	return gormLogger{log: l.With("component", "gorm")}
}

// LogMode is a no-op; slog owns level filtering.
func (l gormLogger) LogMode(logger.LogLevel) logger.Interface { return l }

func (l gormLogger) Info(ctx context.Context, msg string, args ...any) {
	l.log.InfoContext(ctx, fmt.Sprintf(msg, args...))
}

func (l gormLogger) Warn(ctx context.Context, msg string, args ...any) {
	l.log.WarnContext(ctx, fmt.Sprintf(msg, args...))
}

func (l gormLogger) Error(ctx context.Context, msg string, args ...any) {
	l.log.ErrorContext(ctx, fmt.Sprintf(msg, args...))
}

func truncateSQL(sql string) string {
	if len(sql) <= maxSQLLength {
		return sql
	}
	half := (maxSQLLength - 3) / 2
	return sql[:half] + "..." + sql[len(sql)-half:]
}

// Trace is called after every statement. ErrRecordNotFound is the normal
// empty result of First and is traced like a success.
func (l gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		l.log.ErrorContext(ctx, "query failed", "sql", truncateSQL(sql), "rows", rows, "duration", elapsed, "error", err)
	case elapsed >= slowQueryTime:
		sql, rows := fc()
		l.log.WarnContext(ctx, "slow query", "sql", truncateSQL(sql), "rows", rows, "duration", elapsed)
	case l.log.Enabled(ctx, slog.LevelDebug):
		sql, rows := fc()
		l.log.DebugContext(ctx, "query", "sql", truncateSQL(sql), "rows", rows, "duration", elapsed)
	}
}
