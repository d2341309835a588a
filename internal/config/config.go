// Package config loads service configuration from the environment.
package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Config is the full service configuration, populated from environment
// variables with sensible defaults for local development.
type Config struct {
	Environment string `env:"ENV" envDefault:"development"`

	HTTP struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}

	Logging struct {
		Level  string `env:"LOG_LEVEL" envDefault:"info"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}

	Optimization struct {
		// InitialDesignSize and MaxIterations are the job defaults used
		// when a request leaves them unset.
		InitialDesignSize int `env:"OPT_INITIAL_DESIGN_SIZE" envDefault:"10"`
		MaxIterations     int `env:"OPT_MAX_ITERATIONS" envDefault:"50"`

		// MaxDuration is the default wall-clock budget per job.
		MaxDuration time.Duration `env:"OPT_MAX_DURATION" envDefault:"10m"`

		// SampleAttempts bounds rejection sampling per requested feasible
		// point before a job fails with a sampling-exhausted error.
		SampleAttempts int `env:"OPT_SAMPLE_ATTEMPTS" envDefault:"10000"`

		// AcqSeeds is the acquisition maximizer's candidate budget.
		AcqSeeds int `env:"OPT_ACQ_SEEDS" envDefault:"256"`
	}
}

// Load parses the environment into a Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
