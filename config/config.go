package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
)

// Config carries every tunable of the client. The reconnect and resync knobs
// are deliberately configuration, not constants: the server does not document
// them and deployments want to pick their own trade-off.
type Config struct {
	BaseURL string `envconfig:"TPLUS_BASE_URL" default:"http://localhost:8080"`

	// Timeout of a single request/response round trip.
	RequestTimeout time.Duration `envconfig:"TPLUS_REQUEST_TIMEOUT" default:"10s"`

	// Per-stream buffer capacity. On overflow the buffered events are dropped
	// and the consumer is forced to resynchronize instead of blocking the
	// transport read loop.
	StreamBufferSize int `envconfig:"TPLUS_STREAM_BUFFER_SIZE" default:"512"`

	// Reconnect backoff: delay grows from Min by Factor up to Max, with jitter.
	ReconnectMinDelay time.Duration `envconfig:"TPLUS_RECONNECT_MIN_DELAY" default:"500ms"`
	ReconnectMaxDelay time.Duration `envconfig:"TPLUS_RECONNECT_MAX_DELAY" default:"30s"`
	ReconnectFactor   float64       `envconfig:"TPLUS_RECONNECT_FACTOR" default:"2"`

	// How many consecutive failed resyncs a depth stream tolerates before it
	// reports a terminal error.
	MaxResyncAttempts int `envconfig:"TPLUS_MAX_RESYNC_ATTEMPTS" default:"5"`

	DebugMode bool `envconfig:"TPLUS_DEBUG" default:"false"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.WithField("component", "config").Debug("no .env file found, using environment")
	}

	var conf Config
	if err := envconfig.Process("", &conf); err != nil {
		return nil, err
	}

	if conf.DebugMode {
		log.SetLevel(log.DebugLevel)
	}

	return &conf, nil
}

// Default returns the configuration used when the caller does not care about
// environment overrides (tests, examples).
func Default() *Config {
	return &Config{
		BaseURL:           "http://localhost:8080",
		RequestTimeout:    10 * time.Second,
		StreamBufferSize:  512,
		ReconnectMinDelay: 500 * time.Millisecond,
		ReconnectMaxDelay: 30 * time.Second,
		ReconnectFactor:   2,
		MaxResyncAttempts: 5,
	}
}
