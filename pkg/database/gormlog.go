package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"pivoine.art/gamification/pkg/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

// gormLog routes gorm's output through the service logger so SQL errors and
// slow queries land in the same structured stream as everything else.
type gormLog struct {
	log   logger.Logger
	level gormlogger.LogLevel
	slow  time.Duration
}

// NewGormLogger adapts log to gorm's logger interface.
func NewGormLogger(log logger.Logger, level gormlogger.LogLevel) gormlogger.Interface {
	return &gormLog{log: log.Named("gorm"), level: level, slow: slowQueryThreshold}
}

func (g *gormLog) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *g
	cp.level = level
	return &cp
}

func (g *gormLog) Info(_ context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Info {
		g.log.Info(fmt.Sprintf(msg, args...))
	}
}

func (g *gormLog) Warn(_ context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Warn {
		g.log.Warn(fmt.Sprintf(msg, args...))
	}
}

func (g *gormLog) Error(_ context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Error {
		g.log.Error(fmt.Sprintf(msg, args...))
	}
}

// Trace logs failed statements at error, slow ones at warn and everything
// else only in info mode. Missing records are an expected outcome, not a
// failure.
func (g *gormLog) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && g.level >= gormlogger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		g.log.Error("sql failed", logger.String("sql", sql), logger.Int64("rows", rows), logger.Duration("took", elapsed), logger.Err(err))
	case g.slow > 0 && elapsed > g.slow && g.level >= gormlogger.Warn:
		sql, rows := fc()
		g.log.Warn("slow sql", logger.String("sql", sql), logger.Int64("rows", rows), logger.Duration("took", elapsed))
	case g.level >= gormlogger.Info:
		sql, rows := fc()
		g.log.Info("sql", logger.String("sql", sql), logger.Int64("rows", rows), logger.Duration("took", elapsed))
	}
}
