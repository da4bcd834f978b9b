package app

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relaunch/internal/config"
)

func TestNewLogger_Levels(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for level, want := range tests {
		t.Run(level, func(t *testing.T) {
			logger := NewLogger(level)
			assert.True(t, logger.Enabled(context.Background(), want))
			assert.False(t, logger.Enabled(context.Background(), want-1))
		})
	}
}

func TestSecretProvider(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	assert.Nil(t, SecretProvider())

	t.Setenv("APP_ENV", "prod")
	t.Setenv("AWS_REGION", "eu-west-1")
	assert.IsType(t, &config.SSMProvider{}, SecretProvider())
}

func TestLoadAWSConfig_EndpointOverride(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	cfg, err := LoadAWSConfig(context.Background(), config.AWSConfig{
		Region:      "eu-west-1",
		EndpointURL: "http://localhost:4566",
	})
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", cfg.Region)
	require.NotNil(t, cfg.BaseEndpoint)
	assert.Equal(t, "http://localhost:4566", *cfg.BaseEndpoint)
}
