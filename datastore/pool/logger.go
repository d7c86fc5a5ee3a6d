package pool

import (
	"context"
	"log/slog"
	"time"

	"github.com/lmittmann/tint"
	"github.com/pitabwire/util"
	glogger "gorm.io/gorm/logger"

	"github.com/pitabwire/tenantkit/config"
	"github.com/pitabwire/tenantkit/data"
)

// tint colour codes for the statement attributes.
const (
	colourElapsed   = 214
	colourRows      = 12
	colourStatement = 2
)

// queryLogger reports gorm statements through the service logger. Code collisions and
// workspace policy rejections are expected in normal operation and are only warnings.
type queryLogger struct {
	log      *util.LogEntry
	traceAll bool
	slow     time.Duration
}

func newQueryLogger(ctx context.Context, cfg config.ConfigurationDatabaseTracing) glogger.Interface {
	l := &queryLogger{log: util.Log(ctx), slow: config.DefaultSlowQueryThreshold}
	if cfg != nil {
		l.traceAll = cfg.CanDatabaseTraceQueries()
		l.slow = cfg.GetDatabaseSlowQueryLogThreshold()
	}
	return l
}

func (l *queryLogger) LogMode(glogger.LogLevel) glogger.Interface { return l }

func (l *queryLogger) Info(ctx context.Context, msg string, args ...any) {
	l.log.Log(ctx, slog.LevelInfo, msg, args...)
}

func (l *queryLogger) Warn(ctx context.Context, msg string, args ...any) {
	l.log.Log(ctx, slog.LevelWarn, msg, args...)
}

func (l *queryLogger) Error(ctx context.Context, msg string, args ...any) {
	l.log.Log(ctx, slog.LevelError, msg, args...)
}

func (l *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	level, msg := l.classify(elapsed, err)
	if !l.log.Enabled(ctx, level) {
		return
	}

	statement, rows := fc()
	attrs := []any{
		tint.Attr(colourElapsed, slog.Duration("elapsed", elapsed)),
		tint.Attr(colourStatement, slog.String("statement", statement)),
	}
	if rows >= 0 {
		attrs = append(attrs, tint.Attr(colourRows, slog.Int64("rows", rows)))
	}
	if err != nil && !data.ErrorIsNoRows(err) {
		attrs = append(attrs, tint.Err(err))
	}
	if level == slog.LevelWarn && err == nil {
		attrs = append(attrs, slog.Duration("slow_after", l.slow))
	}

	l.log.Log(ctx, level, msg, attrs...)
}

// classify picks the level and message a statement is reported with.
func (l *queryLogger) classify(elapsed time.Duration, err error) (slog.Level, string) {
	switch {
	case err == nil || data.ErrorIsNoRows(err):
		if l.slow > 0 && elapsed > l.slow {
			return slog.LevelWarn, "slow statement"
		}
		if l.traceAll {
			return slog.LevelInfo, "statement"
		}
		return slog.LevelDebug, "statement"
	case data.ErrorIsDuplicateKey(err):
		return slog.LevelWarn, "statement hit a unique index"
	case data.ErrorIsRowSecurityViolation(err):
		return slog.LevelWarn, "statement rejected by workspace policy"
	default:
		return slog.LevelError, "statement failed"
	}
}
