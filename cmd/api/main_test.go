package main

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"qrstudio/internal/config"
)

func TestNewLoggerRespectsLevel(t *testing.T) {
	cases := []struct {
		level   string
		enabled bool
	}{
		{"debug", true},
		{"info", false},
		{"warn", false},
		{"unknown", false},
	}

	for _, tc := range cases {
		cfg := &config.Config{Environment: "local", LogLevel: tc.level}
		logger := newLogger(cfg)
		assert.Equal(t, tc.enabled, logger.Enabled(t.Context(), slog.LevelDebug), tc.level)
	}
}
