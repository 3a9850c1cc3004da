package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		expectPanic bool
		check       func(t *testing.T, c *Config)
	}{
		{
			name: "all flags",
			args: []string{
				"-d", "db", "-a", ":3300", "-m", ":9100", "-s", "secret", "-t", "1", "-r", "3",
				"-n", "5", "-w", "2", "-l", "16", "-v", "debug",
			},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, "db", c.DatabaseDSN)
				assert.Equal(t, ":3300", c.GRPCAddr)
				assert.Equal(t, ":9100", c.MetricsAddr)
				assert.Equal(t, "secret", c.SecretKey)
				assert.Equal(t, 1*time.Minute, c.AccessTokenValidityDuration)
				assert.Equal(t, 3*time.Minute, c.RefreshTokenValidityDuration)
				assert.Equal(t, 5, c.MaxFailedLogins)
				assert.Equal(t, 2*time.Minute, c.LockoutDuration)
				assert.Equal(t, 16, c.MinPasswordLength)
				assert.Equal(t, "debug", c.LogLevel)
			},
		},
		{
			name: "subcommand flags are ignored",
			args: []string{"sessions", "-user", "7", "-s", "k"},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, "k", c.SecretKey)
				assert.Equal(t, 90*time.Second, c.AccessTokenValidityDuration)
			},
		},
		{
			name:        "bad int panics",
			args:        []string{"-t", "soon"},
			expectPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{AccessTokenValidityDuration: 90 * time.Second}
			if tt.expectPanic {
				require.Panics(t, func() { parseFlags(c, tt.args) })
				return
			}
			require.NotPanics(t, func() { parseFlags(c, tt.args) })
			tt.check(t, c)
		})
	}
}
