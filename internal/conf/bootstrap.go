// Package conf provides configuration management using Viper.
// It supports loading configuration from YAML files and environment variables,
// with CLI flag overrides.
package conf

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"google.golang.org/protobuf/types/known/durationpb"
)

// NewBootstrap creates and initializes a Bootstrap configuration.
// It loads configuration from the specified config file path, applies defaults,
// and allows overrides from environment variables prefixed with EXITLANE_.
//
// Configuration priority: CLI flags > Environment variables > Config file > Defaults
//
// Required environment variables:
//   - MYSQL_DSN or EXITLANE_DATA_DATABASE_SOURCE: MySQL connection string
//   - OPENAI_API_KEY / ANTHROPIC_API_KEY or EXITLANE_LLM_API_KEY: provider credential
//   - ENCRYPTION_KEY or EXITLANE_AUTH_ENCRYPTION_KEY: transcript encryption key
func NewBootstrap(configPath string) (*Bootstrap, error) {
	v := viper.New()

	// Set default values
	setDefaults(v)

	// Enable environment variable support with EXITLANE_ prefix
	v.SetEnvPrefix("EXITLANE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Allow direct environment variable names (without EXITLANE_ prefix) for compatibility
	_ = v.BindEnv("data.database.source", "MYSQL_DSN", "EXITLANE_DATA_DATABASE_SOURCE")
	_ = v.BindEnv("data.redis.addr", "EXITLANE_DATA_REDIS_ADDR")
	_ = v.BindEnv("llm.api_key", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "EXITLANE_LLM_API_KEY")
	_ = v.BindEnv("auth.api_key", "EXITLANE_API_KEY", "EXITLANE_AUTH_API_KEY")
	_ = v.BindEnv("auth.encryption.key", "ENCRYPTION_KEY", "EXITLANE_AUTH_ENCRYPTION_KEY")

	// Load configuration file
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// If config file is specified but not found, return error
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	// Parse configuration into Bootstrap structure
	bc := &Bootstrap{
		Server: &Server{
			Http: &Server_HTTP{
				Network: v.GetString("server.http.network"),
				Addr:    v.GetString("server.http.addr"),
				Timeout: durationpb.New(v.GetDuration("server.http.timeout")),
			},
		},
		Data: &Data{
			Database: &Data_Database{
				Driver: v.GetString("data.database.driver"),
				Source: v.GetString("data.database.source"),
			},
			Redis: &Data_Redis{
				Network:      v.GetString("data.redis.network"),
				Addr:         v.GetString("data.redis.addr"),
				ReadTimeout:  durationpb.New(v.GetDuration("data.redis.read_timeout")),
				WriteTimeout: durationpb.New(v.GetDuration("data.redis.write_timeout")),
			},
		},
		Llm: &LLM{
			Provider:    v.GetString("llm.provider"),
			Model:       v.GetString("llm.model"),
			ApiKey:      v.GetString("llm.api_key"),
			BaseUrl:     v.GetString("llm.base_url"),
			Timeout:     durationpb.New(v.GetDuration("llm.timeout")),
			MaxRetries:  v.GetInt32("llm.max_retries"),
			BackoffBase: durationpb.New(v.GetDuration("llm.backoff_base")),
			Breaker: &LLM_Breaker{
				FailureThreshold: v.GetInt32("llm.breaker.failure_threshold"),
				RecoveryPeriod:   durationpb.New(v.GetDuration("llm.breaker.recovery_period")),
			},
			Cache: &LLM_Cache{
				Ttl:        durationpb.New(v.GetDuration("llm.cache.ttl")),
				MaxEntries: v.GetInt32("llm.cache.max_entries"),
			},
		},
		Interview: &Interview{
			MaxFollowUps: v.GetInt32("interview.max_follow_ups"),
			TurnLockTtl:  durationpb.New(v.GetDuration("interview.turn_lock_ttl")),
			StaleAge:     durationpb.New(v.GetDuration("interview.stale_age")),
		},
		Auth: &Auth{
			ApiKey: v.GetString("auth.api_key"),
			Encryption: &Auth_Encryption{
				Key: v.GetString("auth.encryption.key"),
			},
		},
		Log: &Log{
			Level:      v.GetString("log.level"),
			Format:     v.GetString("log.format"),
			Env:        v.GetString("log.env"),
			OutputFile: v.GetString("log.output_file"),
		},
	}

	// Validate required fields
	if err := Validate(bc); err != nil {
		return nil, err
	}

	return bc, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.http.network", "tcp")
	v.SetDefault("server.http.addr", ":8080")
	v.SetDefault("server.http.timeout", 2*time.Minute)

	// Data defaults
	v.SetDefault("data.database.driver", "mysql")
	// Note: data.database.source (MYSQL_DSN) is required from environment

	v.SetDefault("data.redis.network", "tcp")
	v.SetDefault("data.redis.addr", "127.0.0.1:6379")
	v.SetDefault("data.redis.read_timeout", 200*time.Millisecond)
	v.SetDefault("data.redis.write_timeout", 200*time.Millisecond)

	// LLM defaults
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.timeout", 30*time.Second)
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("llm.backoff_base", 1*time.Second)
	v.SetDefault("llm.breaker.failure_threshold", 5)
	v.SetDefault("llm.breaker.recovery_period", 60*time.Second)
	v.SetDefault("llm.cache.ttl", 5*time.Minute)
	v.SetDefault("llm.cache.max_entries", 1000)

	// Interview defaults
	v.SetDefault("interview.max_follow_ups", 2)
	v.SetDefault("interview.turn_lock_ttl", 90*time.Second)
	v.SetDefault("interview.stale_age", 72*time.Hour)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate checks that all required configuration fields are present and valid.
// It returns an error listing all missing required fields.
func Validate(bc *Bootstrap) error {
	var missingFields []string

	// Check required database configuration
	if bc.Data == nil || bc.Data.Database == nil || bc.Data.Database.Source == "" {
		missingFields = append(missingFields, "data.database.source (MYSQL_DSN)")
	}

	// Check required LLM configuration
	if bc.Llm == nil || bc.Llm.ApiKey == "" {
		missingFields = append(missingFields, "llm.api_key (OPENAI_API_KEY or ANTHROPIC_API_KEY)")
	}

	if bc.Llm != nil && bc.Llm.Provider != "" {
		switch bc.Llm.Provider {
		case "openai", "anthropic":
		default:
			return fmt.Errorf("unsupported llm.provider %q (expected openai or anthropic)", bc.Llm.Provider)
		}
	}

	// Check required auth configuration
	if bc.Auth == nil || bc.Auth.Encryption == nil || bc.Auth.Encryption.Key == "" {
		missingFields = append(missingFields, "auth.encryption.key (ENCRYPTION_KEY)")
	}

	if len(missingFields) > 0 {
		return fmt.Errorf("missing required configuration fields: %s", strings.Join(missingFields, ", "))
	}

	return nil
}
