package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unsetEnv clears keys for the duration of the test, including values that a
// dotenv file loads into the process.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		prev, had := os.LookupEnv(k)
		require.NoError(t, os.Unsetenv(k))
		t.Cleanup(func() {
			if had {
				_ = os.Setenv(k, prev)
				return
			}
			_ = os.Unsetenv(k)
		})
	}
}

var configKeys = []string{
	"RUN_ADDRESS", "DATABASE_URI", "LOG_LEVEL", "JWT_SECRET", "TOKEN_TTL", "MIGRATIONS_PATH",
	"CORS_ORIGINS", "SEED_BALANCE_MAX", "SEARCH_LIMIT", "BCRYPT_COST",
}

func TestLoadConfig_Defaults(t *testing.T) {
	unsetEnv(t, configKeys...)

	cfg, err := LoadConfig([]string{"-jwt-secret", "s3cret", "-env-file", ""})
	require.NoError(t, err)

	assert.Equal(t, "localhost:8080", cfg.RunAddress)
	assert.Empty(t, cfg.DatabaseURI)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, "./migrations", cfg.MigrationsPath)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins())
	assert.Equal(t, 10000.0, cfg.SeedBalanceMax)
	assert.Zero(t, cfg.SearchLimit)
	assert.Equal(t, 10, cfg.BcryptCost)
}

func TestLoadConfig_EnvOverridesFlags(t *testing.T) {
	unsetEnv(t, configKeys...)
	t.Setenv("RUN_ADDRESS", ":9090")
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("TOKEN_TTL", "15m")
	t.Setenv("SEARCH_LIMIT", "25")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := LoadConfig([]string{"-a", ":7070", "-jwt-secret", "from-flag", "-env-file", ""})
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.RunAddress)
	assert.Equal(t, "from-env", cfg.JWTSecretKey)
	assert.Equal(t, 15*time.Minute, cfg.TokenTTL)
	assert.Equal(t, 25, cfg.SearchLimit)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins())
}

func TestLoadConfig_DotEnvFile(t *testing.T) {
	unsetEnv(t, configKeys...)
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("JWT_SECRET=dotenv-secret\nSEED_BALANCE_MAX=50\n"), 0o600))
	t.Setenv("SEED_BALANCE_MAX", "75")

	cfg, err := LoadConfig([]string{"-env-file", path})
	require.NoError(t, err)

	assert.Equal(t, "dotenv-secret", cfg.JWTSecretKey)
	assert.Equal(t, 75.0, cfg.SeedBalanceMax, "process environment wins over the file")
}

func TestLoadConfig_MissingDotEnvIgnored(t *testing.T) {
	unsetEnv(t, configKeys...)

	_, err := LoadConfig([]string{"-jwt-secret", "x", "-env-file", filepath.Join(t.TempDir(), "absent.env")})
	require.NoError(t, err)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
		env  map[string]string
	}{
		{name: "no secret", args: []string{}},
		{name: "non positive ttl", args: []string{"-jwt-secret", "x", "-token-ttl", "0s"}},
		{name: "negative search limit", args: []string{"-jwt-secret", "x", "-search-limit", "-1"}},
		{name: "unknown flag", args: []string{"-jwt-secret", "x", "-nope"}},
		{name: "bad env value", args: []string{"-jwt-secret", "x"}, env: map[string]string{"SEARCH_LIMIT": "many"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unsetEnv(t, configKeys...)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadConfig(append(tt.args, "-env-file", ""))
			require.Error(t, err)
		})
	}
}

func TestMaskDBPassword(t *testing.T) {
	cfg := &Config{DatabaseURI: "postgres://app:hunter2@db:5432/payments?sslmode=disable"}
	masked := cfg.MaskDBPassword()
	assert.NotContains(t, masked, "hunter2")
	assert.Contains(t, masked, "@db:5432/payments?sslmode=disable")

	cfg.DatabaseURI = "postgres://db/payments"
	assert.Equal(t, "postgres://db/payments", cfg.MaskDBPassword())
}
