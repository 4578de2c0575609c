package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stwalsh4118/playerctl/internal/logger"
	gormlogger "gorm.io/gorm/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

// gormLogger routes gorm logs through zerolog
type gormLogger struct{}

func (l gormLogger) LogMode(gormlogger.LogLevel) gormlogger.Interface {
	return l
}

func (gormLogger) Info(_ context.Context, msg string, args ...interface{}) {
	logger.Log.Info().Str("component", "db").Msg(fmt.Sprintf(msg, args...))
}

func (gormLogger) Warn(_ context.Context, msg string, args ...interface{}) {
	logger.Log.Warn().Str("component", "db").Msg(fmt.Sprintf(msg, args...))
}

func (gormLogger) Error(_ context.Context, msg string, args ...interface{}) {
	logger.Log.Error().Str("component", "db").Msg(fmt.Sprintf(msg, args...))
}

func (gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()

	switch {
	case err != nil && !errors.Is(err, gormlogger.ErrRecordNotFound):
		logger.Log.Error().Err(err).Str("component", "db").Str("sql", sql).Dur("elapsed", elapsed).Msg("Query failed")
	case elapsed > slowQueryThreshold:
		logger.Log.Warn().Str("component", "db").Str("sql", sql).Int64("rows", rows).Dur("elapsed", elapsed).Msg("Slow query")
	default:
		logger.Log.Trace().Str("component", "db").Str("sql", sql).Int64("rows", rows).Dur("elapsed", elapsed).Msg("Query")
	}
}
