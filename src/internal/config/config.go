package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Load builds configuration from defaults, an optional bookhive.yaml and
// BOOKHIVE_* environment variables, in increasing order of precedence.
func Load(configFile string) (*viper.Viper, error) {
	v := viper.New()

	v.SetConfigType("yaml")
	v.SetEnvPrefix("BOOKHIVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		v.SetConfigName("bookhive")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/bookhive")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	// Ephemeral secrets keep dev setups working; production must set its own.
	for _, key := range []string{"auth.jwt_secret", "auth.jwt_refresh_secret"} {
		if v.GetString(key) == "" {
			secret, err := generateSecret()
			if err != nil {
				return nil, fmt.Errorf("failed to generate secret: %w", err)
			}
			v.Set(key, secret)
		}
	}

	return v, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.body_limit", "8M")

	// Database defaults
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "bookhive.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "300s")

	// Redis defaults (memory cache is used when disabled or unreachable)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Auth defaults
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.jwt_refresh_secret", "")
	v.SetDefault("auth.access_token_minutes", 30)
	v.SetDefault("auth.refresh_token_days", 7)

	// Borrowing defaults
	v.SetDefault("borrowing.loan_days", 14)
	v.SetDefault("borrowing.max_active", 1)

	// Text oracle defaults
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.base_url", "")
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("ai.timeout_seconds", 20)
	v.SetDefault("ai.recommend_cache_ttl", "10m")

	// Search tuning. Values carried from production observation; adjust with care.
	v.SetDefault("search.fuzzy_author_threshold", 0.65)
	v.SetDefault("search.fuzzy_genre_overlap", 0.6)
	v.SetDefault("search.fuzzy_genre_cutoff", 0.75)
	v.SetDefault("search.trigram_floor", 0.2)
	v.SetDefault("search.rank_fts_weight", 0.7)
	v.SetDefault("search.rank_trigram_weight", 0.3)

	// Document service defaults. An empty base_url disables the proxy and
	// the /rag routes report it as unavailable.
	v.SetDefault("rag.base_url", "http://localhost:8001")
	v.SetDefault("rag.api_key", "")
	v.SetDefault("rag.timeout_seconds", 120)

	// Rate limiting for the AI endpoints
	v.SetDefault("ratelimit.rps", 1)
	v.SetDefault("ratelimit.burst", 5)

	// CORS: empty origin list means allow everything
	v.SetDefault("cors.allowed_origins", []string{})
	v.SetDefault("cors.allowed_methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
	v.SetDefault("cors.allowed_headers", "Origin,Content-Type,Accept,Authorization")
	v.SetDefault("cors.max_age", 86400)
	v.SetDefault("cors.allow_credentials", false)

	// Email defaults
	v.SetDefault("email.enabled", false)
	v.SetDefault("email.smtp.host", "")
	v.SetDefault("email.smtp.port", 587)
	v.SetDefault("email.smtp.username", "")
	v.SetDefault("email.smtp.password", "")
	v.SetDefault("email.smtp.use_tls", true)
	v.SetDefault("email.smtp.skip_verify", false)
	v.SetDefault("email.from.address", "")
	v.SetDefault("email.from.name", "BookHive")
	v.SetDefault("email.process_interval", 30*time.Second)

	// Logging defaults
	v.SetDefault("log.debug", false)
}

func generateSecret() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// ValidateConfig checks settings that cannot be defaulted sensibly.
func ValidateConfig(v *viper.Viper) error {
	dbType := v.GetString("database.type")
	switch dbType {
	case "sqlite", "postgres", "mysql":
		if v.GetString("database.dsn") == "" {
			return fmt.Errorf("database.dsn is required for %s", dbType)
		}
	default:
		return fmt.Errorf("unsupported database type: %s", dbType)
	}

	port := v.GetInt("server.port")
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid server port: %d", port)
	}

	if v.GetBool("email.enabled") {
		if v.GetString("email.smtp.host") == "" {
			return fmt.Errorf("email.smtp.host is required when email is enabled")
		}
		if v.GetString("email.from.address") == "" {
			return fmt.Errorf("email.from.address is required when email is enabled")
		}
	}

	return nil
}
