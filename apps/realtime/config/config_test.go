package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatmail/service-realtime/apps/realtime/config"
)

func validConfig() *config.RealtimeConfig {
	return &config.RealtimeConfig{
		TokenSecret:          "secret",
		MaxConnections:       10000,
		SendBufferSize:       64,
		HeartbeatIntervalSec: 30,
		WriteTimeoutSec:      10,
		ReadLimitBytes:       65536,
		RingTimeoutSec:       30,
		PersistTimeoutSec:    5,
		EditWindowMin:        15,
		DeleteWindowMin:      60,
	}
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestConfigValidateFailures(t *testing.T) {
	cfg := validConfig()
	cfg.TokenSecret = ""
	assert.ErrorContains(t, cfg.Validate(), "TokenSecret")

	cfg = validConfig()
	cfg.MaxConnections = 0
	assert.ErrorContains(t, cfg.Validate(), "MaxConnections")

	cfg = validConfig()
	cfg.WriteTimeoutSec = 45
	assert.ErrorContains(t, cfg.Validate(), "WriteTimeoutSec")

	cfg = validConfig()
	cfg.DeleteWindowMin = 5
	assert.ErrorContains(t, cfg.Validate(), "DeleteWindowMin")

	// Failures accumulate rather than short-circuit.
	cfg = validConfig()
	cfg.TokenSecret = ""
	cfg.RingTimeoutSec = 0
	err := cfg.Validate()
	assert.ErrorContains(t, err, "TokenSecret")
	assert.ErrorContains(t, err, "RingTimeoutSec")
}

func TestConfigDurations(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "30s", cfg.HeartbeatInterval().String())
	assert.Equal(t, "15m0s", cfg.EditWindow().String())
	assert.Equal(t, "1h0m0s", cfg.DeleteWindow().String())
}
