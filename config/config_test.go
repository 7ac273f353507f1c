package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		WinProbability:      0.45,
		MaxPayoutMultiplier: 5,
		MinBet:              1,
		MinDeposit:          10000,
		MinWithdraw:         10000,
		BonusRate:           0.10,
		JWTSecret:           "secret",
		Environment:         "test",
	}
}

func TestValidate_FloorsMinimums(t *testing.T) {
	cfg := validConfig()
	cfg.MinBet = 0
	cfg.MinDeposit = -5
	cfg.MinWithdraw = 0

	require.NoError(t, cfg.validate())
	assert.Equal(t, int64(1), cfg.MinBet)
	assert.Equal(t, int64(1), cfg.MinDeposit)
	assert.Equal(t, int64(1), cfg.MinWithdraw)
}

func TestValidate_RejectsBadGameParameters(t *testing.T) {
	cfg := validConfig()
	cfg.WinProbability = 1.5
	assert.Error(t, cfg.validate())

	cfg = validConfig()
	cfg.MaxPayoutMultiplier = 1
	assert.Error(t, cfg.validate())
}

func TestValidate_RequiresJWTSecretOutsideTests(t *testing.T) {
	cfg := validConfig()
	cfg.Environment = "production"
	cfg.JWTSecret = ""
	assert.Error(t, cfg.validate())
}
