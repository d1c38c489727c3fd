// Package qcontext carries a structured logger through context.Context the
// way the rest of the module expects: every component that logs takes a
// context.Context and resolves its logger from it rather than reaching for
// a package-level global.
package qcontext

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

type loggerKey struct{}

var defaultLogger = logrus.NewEntry(logrus.StandardLogger())

// Logger is a leveled-logging interface, satisfied by *logrus.Entry.
type Logger interface {
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	WithField(key string, value interface{}) *logrus.Entry
}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger returns the logger installed on ctx, or the standard logrus
// logger if none was installed. Any keys passed are resolved against ctx
// and attached as fields, matching context/logger.go's GetLogger(ctx, keys...).
func GetLogger(ctx context.Context, keys ...interface{}) Logger {
	logger, ok := ctx.Value(loggerKey{}).(Logger)
	if !ok {
		logger = defaultLogger
	}

	if len(keys) == 0 {
		return logger
	}

	fields := logrus.Fields{}
	for _, key := range keys {
		if v := ctx.Value(key); v != nil {
			fields[fmt.Sprint(key)] = v
		}
	}
	return logger.(*logrus.Entry).WithFields(fields)
}

// WithFields returns a derived context whose logger has the given fields
// attached, for tagging a connection or stream's whole lifetime (e.g.
// conn_id, stream_id) without having to re-specify them at every call site.
func WithFields(ctx context.Context, fields logrus.Fields) context.Context {
	return WithLogger(ctx, GetLogger(ctx).(*logrus.Entry).WithFields(fields))
}
