package config

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// ConfigureLogging applies Log to the standard logrus logger.
func ConfigureLogging(l Log) error {
	level, err := logrus.ParseLevel(string(l.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	logrus.SetReportCaller(l.ReportCaller)

	switch l.Formatter {
	case "", "text":
		logrus.SetFormatter(&logrus.TextFormatter{TimestampFormat: time.RFC3339Nano})
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	default:
		return fmt.Errorf("config: unsupported log formatter %q", l.Formatter)
	}

	return nil
}

// StaticFields converts Log.Fields to logrus.Fields for attaching to a
// base logger entry (see qcontext.WithLogger).
func StaticFields(l Log) logrus.Fields {
	fields := logrus.Fields{}
	for k, v := range l.Fields {
		fields[k] = v
	}
	return fields
}
