package logging

import (
	"os"
	"testing"

	"github.com/epi-risk-server/internal/domain"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name      string
		cfg       domain.LoggingConfig
		level     logrus.Level
		formatter logrus.Formatter
	}{
		{"JSON to stdout", domain.LoggingConfig{Level: "info", Format: "json", Output: "stdout"}, logrus.InfoLevel, &logrus.JSONFormatter{}},
		{"Text to stderr", domain.LoggingConfig{Level: "DEBUG", Format: "text", Output: "stderr"}, logrus.DebugLevel, &logrus.TextFormatter{FullTimestamp: true}},
		{"Defaults", domain.LoggingConfig{Level: "warn"}, logrus.WarnLevel, &logrus.JSONFormatter{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.level, logger.GetLevel())
			assert.IsType(t, tt.formatter, logger.Formatter)
		})
	}
}

func TestNewLogger_Stderr(t *testing.T) {
	logger, err := NewLogger(domain.LoggingConfig{Level: "info", Output: "stderr"})
	require.NoError(t, err)
	assert.Equal(t, os.Stderr, logger.Out)
}

func TestNewLogger_Invalid(t *testing.T) {
	tests := []domain.LoggingConfig{
		{Level: "loud"},
		{Level: "info", Format: "xml"},
		{Level: "info", Output: "syslog"},
	}
	for _, cfg := range tests {
		_, err := NewLogger(cfg)
		assert.Error(t, err, "%+v", cfg)
	}
}
