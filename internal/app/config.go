package app

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

type Config struct {
	RunAddress     string        `env:"RUN_ADDRESS"`
	DatabaseURI    string        `env:"DATABASE_URI"`
	LogLevel       string        `env:"LOG_LEVEL"`
	JWTSecretKey   string        `env:"JWT_SECRET"`
	TokenTTL       time.Duration `env:"TOKEN_TTL"`
	MigrationsPath string        `env:"MIGRATIONS_PATH"`
	CORSOrigins    string        `env:"CORS_ORIGINS"`
	SeedBalanceMax float64       `env:"SEED_BALANCE_MAX"`
	SearchLimit    int           `env:"SEARCH_LIMIT"`
	BcryptCost     int           `env:"BCRYPT_COST"`
	EnvFile        string
}

// LoadConfig resolves settings from defaults, then flags, then an optional
// .env file, then the process environment. Later sources win.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}

	fs := flag.NewFlagSet("payments", flag.ContinueOnError)
	fs.StringVar(&cfg.RunAddress, "a", "localhost:8080", "Server address (env: RUN_ADDRESS)")
	fs.StringVar(&cfg.DatabaseURI, "d", "", "Database URI, empty runs on the in-memory store (env: DATABASE_URI)")
	fs.StringVar(&cfg.LogLevel, "l", "info", "Log level (debug|info|warn|error) (env: LOG_LEVEL)")
	fs.StringVar(&cfg.JWTSecretKey, "jwt-secret", "", "JWT secret key (env: JWT_SECRET)")
	fs.DurationVar(&cfg.TokenTTL, "token-ttl", 24*time.Hour, "Token lifetime (env: TOKEN_TTL)")
	fs.StringVar(&cfg.MigrationsPath, "migrations", "./migrations", "Path to migrations folder (env: MIGRATIONS_PATH)")
	fs.StringVar(&cfg.CORSOrigins, "cors", "*", "Comma separated allowed origins (env: CORS_ORIGINS)")
	fs.Float64Var(&cfg.SeedBalanceMax, "seed-max", 10000, "Upper bound of the random opening balance (env: SEED_BALANCE_MAX)")
	fs.IntVar(&cfg.SearchLimit, "search-limit", 0, "Maximum users returned by search, 0 for no limit (env: SEARCH_LIMIT)")
	fs.IntVar(&cfg.BcryptCost, "bcrypt-cost", 10, "bcrypt cost factor (env: BCRYPT_COST)")
	fs.StringVar(&cfg.EnvFile, "env-file", ".env", "Optional dotenv file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.applyEnvVars(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnvVars() error {
	if c.EnvFile != "" {
		// godotenv never overrides variables already set in the environment
		if err := godotenv.Load(c.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load env file %s: %w", c.EnvFile, err)
		}
	}

	if err := envdecode.Decode(c); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return fmt.Errorf("decode environment: %w", err)
	}
	return nil
}

func (c *Config) validate() error {
	if c.JWTSecretKey == "" {
		return errors.New("JWT secret is required (use -jwt-secret flag or JWT_SECRET env)")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token ttl must be positive, got %s", c.TokenTTL)
	}
	if c.SeedBalanceMax < 0 {
		return fmt.Errorf("seed balance max must not be negative, got %v", c.SeedBalanceMax)
	}
	if c.SearchLimit < 0 {
		return fmt.Errorf("search limit must not be negative, got %d", c.SearchLimit)
	}
	return nil
}

// AllowedOrigins splits CORSOrigins into a list.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func (c *Config) MaskDBPassword() string {
	u, err := url.Parse(c.DatabaseURI)
	if err != nil {
		return c.DatabaseURI
	}

	if u.User != nil {
		if _, hasPassword := u.User.Password(); hasPassword {
			u.User = url.UserPassword(u.User.Username(), "***")
		}
	}
	return u.String()
}
