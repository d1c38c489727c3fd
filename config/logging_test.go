package config

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestConfigureLoggingSetsLevelAndFormatter(t *testing.T) {
	require.NoError(t, ConfigureLogging(Log{Level: "debug", Formatter: "json"}))
	require.Equal(t, logrus.DebugLevel, logrus.GetLevel())
	_, ok := logrus.StandardLogger().Formatter.(*logrus.JSONFormatter)
	require.True(t, ok)
}

func TestConfigureLoggingDefaultsToTextFormatter(t *testing.T) {
	require.NoError(t, ConfigureLogging(Log{Level: "info"}))
	_, ok := logrus.StandardLogger().Formatter.(*logrus.TextFormatter)
	require.True(t, ok)
}

func TestConfigureLoggingRejectsUnknownFormatter(t *testing.T) {
	err := ConfigureLogging(Log{Level: "info", Formatter: "yaml"})
	require.Error(t, err)
}

func TestStaticFieldsConvertsMap(t *testing.T) {
	fields := StaticFields(Log{Fields: map[string]interface{}{"service": "quicxd"}})
	require.Equal(t, "quicxd", fields["service"])
}
