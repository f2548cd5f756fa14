package database

import (
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"

	"github.com/charlesng35/agentdesk/pkg/logger"
)

// zapWriter adapts a sugared zap logger to gorm's printf-style writer.
type zapWriter struct {
	log *zap.SugaredLogger
}

func (w zapWriter) Printf(format string, args ...interface{}) {
	w.log.Debugf(format, args...)
}

// newGormLogger routes gorm output through zap. Statements are only logged
// when logSQL is set; slow queries are always reported.
func newGormLogger(log *zap.Logger, logSQL bool) gormlogger.Interface {
	if log == nil {
		log = logger.WithModule("gorm")
	}

	level := gormlogger.Warn
	if logSQL {
		level = gormlogger.Info
	}

	return gormlogger.New(zapWriter{log: log.Sugar()}, gormlogger.Config{
		SlowThreshold:             500 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
