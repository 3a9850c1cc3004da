package config

import (
	"strconv"
	"time"
)

const envPrefix = "GOPHAUTH_"

// parseEnv overlays GOPHAUTH_* variables. Durations use Go syntax ("15m").
// Malformed numeric values panic, like malformed flags do.
func parseEnv(config *Config, lookup func(string) (string, bool)) {
	if lookup == nil {
		return
	}
	get := func(name string) (string, bool) {
		v, ok := lookup(envPrefix + name)
		return v, ok && v != ""
	}

	strs := map[string]*string{
		"DATABASE_DSN":    &config.DatabaseDSN,
		"GRPC_ADDR":       &config.GRPCAddr,
		"METRICS_ADDR":    &config.MetricsAddr,
		"SECRET_KEY":      &config.SecretKey,
		"TOKEN_ISSUER":    &config.TokenIssuer,
		"TOKEN_AUDIENCE":  &config.TokenAudience,
		"PASSWORD_HASHER": &config.PasswordHasher,
		"LOG_LEVEL":       &config.LogLevel,
	}
	for name, dst := range strs {
		if v, ok := get(name); ok {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"ACCESS_TOKEN_TTL":  &config.AccessTokenValidityDuration,
		"REFRESH_TOKEN_TTL": &config.RefreshTokenValidityDuration,
		"CLOCK_SKEW":        &config.ClockSkew,
		"LOCKOUT_DURATION":  &config.LockoutDuration,
	}
	for name, dst := range durations {
		if v, ok := get(name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				panic(err)
			}
			*dst = d
		}
	}

	ints := map[string]*int{
		"MAX_FAILED_LOGINS":   &config.MaxFailedLogins,
		"MIN_PASSWORD_LENGTH": &config.MinPasswordLength,
		"BCRYPT_COST":         &config.BcryptCost,
	}
	for name, dst := range ints {
		if v, ok := get(name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				panic(err)
			}
			*dst = n
		}
	}
}
