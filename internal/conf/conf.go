// Package conf defines the bootstrap configuration structures for ExitLane.
// Durations are carried as durationpb.Duration so YAML/env values parsed by
// Viper round-trip the same way across all sections.
package conf

import (
	"google.golang.org/protobuf/types/known/durationpb"
)

// Bootstrap is the root configuration object.
type Bootstrap struct {
	Server    *Server
	Data      *Data
	Llm       *LLM
	Interview *Interview
	Auth      *Auth
	Log       *Log
}

// Server holds transport configuration.
type Server struct {
	Http *Server_HTTP
}

// Server_HTTP configures the kratos HTTP server.
type Server_HTTP struct {
	Network string
	Addr    string
	Timeout *durationpb.Duration
}

// Data holds storage configuration.
type Data struct {
	Database *Data_Database
	Redis    *Data_Redis
}

// Data_Database configures the MySQL connection.
type Data_Database struct {
	Driver string
	Source string
}

// Data_Redis configures the Redis connection.
type Data_Redis struct {
	Network      string
	Addr         string
	ReadTimeout  *durationpb.Duration
	WriteTimeout *durationpb.Duration
}

// LLM configures the resilient language-model invocation layer.
type LLM struct {
	// Provider selects the upstream adapter: "openai" or "anthropic".
	Provider string
	Model    string
	ApiKey   string
	// BaseUrl overrides the provider endpoint (enterprise deployments).
	BaseUrl string
	// Timeout is the per-attempt upstream call timeout.
	Timeout *durationpb.Duration
	// MaxRetries is the number of additional attempts after the first failure.
	MaxRetries  int32
	BackoffBase *durationpb.Duration
	Breaker     *LLM_Breaker
	Cache       *LLM_Cache
}

// LLM_Breaker configures the upstream circuit breaker.
type LLM_Breaker struct {
	FailureThreshold int32
	RecoveryPeriod   *durationpb.Duration
}

// LLM_Cache configures the deduplicating response cache.
type LLM_Cache struct {
	Ttl        *durationpb.Duration
	MaxEntries int32
}

// Interview configures conversation orchestration behavior.
type Interview struct {
	// MaxFollowUps caps follow-up questions per catalog question.
	MaxFollowUps int32
	// TurnLockTtl bounds the per-interview turn serialization lock.
	TurnLockTtl *durationpb.Duration
	// StaleAge is the idle age after which an in-progress interview is
	// marked abandoned by the cron sweep.
	StaleAge *durationpb.Duration
}

// Auth holds authentication and encryption configuration.
type Auth struct {
	ApiKey     string
	Encryption *Auth_Encryption
}

// Auth_Encryption configures transcript encryption at rest.
type Auth_Encryption struct {
	Key string
}

// Log configures the Zap logger.
type Log struct {
	Level      string
	Format     string
	Env        string
	OutputFile string
}
