package config

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration, loaded from environment
// variables or an optional .env file.
type Config struct {
	Port int    `mapstructure:"PORT"`
	Env  string `mapstructure:"ENV"`

	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int    `mapstructure:"DB_MIN_CONNS"`

	// EncryptionKey is the hex-encoded 256-bit key protecting PHI
	// columns. There is no default and no fallback: a missing or
	// malformed key is a fatal startup error.
	EncryptionKey string `mapstructure:"ENCRYPTION_KEY"`

	JWTSecret string `mapstructure:"JWT_SECRET"`

	CORSOrigins []string `mapstructure:"-"`
}

// Load reads configuration from the environment and an optional .env
// file in the working directory.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", 8080)
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "*")

	for _, key := range []string{
		"PORT", "ENV",
		"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
		"ENCRYPTION_KEY", "JWT_SECRET",
		"CORS_ORIGINS",
	} {
		_ = v.BindEnv(key)
	}

	// The .env file is optional; environment variables always win.
	_ = v.ReadInConfig()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	origins := v.GetString("CORS_ORIGINS")
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, o)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required settings are present and well formed.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.EncryptionKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required")
	}
	key, err := hex.DecodeString(c.EncryptionKey)
	if err != nil {
		return fmt.Errorf("ENCRYPTION_KEY must be hex encoded: %w", err)
	}
	if len(key) != 32 {
		return fmt.Errorf("ENCRYPTION_KEY must decode to 32 bytes, got %d", len(key))
	}

	if c.IsProduction() && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}

	return nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development" || c.Env == "dev"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}
