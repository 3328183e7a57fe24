// Package config holds the server's runtime configuration, populated from
// command-line flags (see main.go's urfave/cli wiring).
package config

import "time"

// HashAlgorithm selects how request text is reduced to a cache key.
type HashAlgorithm string

const (
	HashMD5    HashAlgorithm = "md5"
	HashSHA256 HashAlgorithm = "sha256"
)

// Config is the full set of options recognised by the service, per
// spec.md §6.
type Config struct {
	// Host is the bind address of the HTTP listener.
	Host string
	// Port is the TCP port of the HTTP listener.
	Port int
	// APIPath is the URL path the JSON-RPC endpoint is served on.
	APIPath string
	// TTSAPIURL holds the --tts-api-url value. It is not passed to any
	// TTS Driver: the dispatcher builds the in-process stub driver from
	// DriverTickInterval alone.
	TTSAPIURL string
	// TTSAPILimit is the maximum number of concurrent TTS conversions.
	TTSAPILimit int
	// MaxCacheItems bounds the content-addressed cache.
	MaxCacheItems int
	// Verbose raises log verbosity (sets DEBUG=true for the process).
	Verbose bool

	// HashAlgorithm picks the content-hash used as the cache key.
	HashAlgorithm HashAlgorithm
	// DriverTickInterval is how often the stub TTS Driver emits one
	// byte; a real driver ignores this.
	DriverTickInterval time.Duration
	// StatsInterval is how often main.go logs an admission control
	// heartbeat taken from the dispatcher. Zero disables it.
	StatsInterval time.Duration
}

// NewDefaultConfig mirrors the defaults of the original speech_pool
// service (run-speech-pool-srv.py): host 127.0.0.1, port 8080,
// api path /api/v1, tts-api-limit 10.
func NewDefaultConfig() *Config {
	return &Config{
		Host:               "127.0.0.1",
		Port:               8080,
		APIPath:            "/api/v1",
		TTSAPILimit:        10,
		MaxCacheItems:      128,
		HashAlgorithm:      HashMD5,
		DriverTickInterval: 5 * time.Millisecond,
		StatsInterval:      30 * time.Second,
	}
}
