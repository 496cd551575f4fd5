package config

import (
	"os"
	"strconv"
	"time"

	"github.com/caarlos0/env/v10"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
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
	Search struct {
		MinParam      float64 `env:"SEARCH_MIN_PARAM" envDefault:"10"`
		MaxParam      float64 `env:"SEARCH_MAX_PARAM" envDefault:"51"`
		InitialParam  float64 `env:"SEARCH_INITIAL_PARAM" envDefault:"18"`
		MaxIterations int     `env:"SEARCH_MAX_ITERATIONS" envDefault:"500"`
		MinSSIM       float64 `env:"SEARCH_MIN_SSIM" envDefault:"0.95"`
		MinPSNR       float64 `env:"SEARCH_MIN_PSNR" envDefault:"35"`
		MinMSSSIM     float64 `env:"SEARCH_MIN_MSSSIM" envDefault:"0.90"`
		Exhaustive    bool    `env:"SEARCH_EXHAUSTIVE" envDefault:"false"`
		Verbose       bool    `env:"SEARCH_VERBOSE" envDefault:"false"`
	}
	Encoder struct {
		// Codec is the precise backend; FastCodec, when set, enables
		// the two-stage coarse phase.
		Codec     string `env:"ENCODER_CODEC" envDefault:"libx265"`
		FastCodec string `env:"ENCODER_FAST_CODEC"`
		Preset    string `env:"ENCODER_PRESET" envDefault:"medium"`
		WorkDir   string `env:"ENCODER_WORK_DIR"`
		Extension string `env:"ENCODER_EXTENSION" envDefault:"mkv"`
	}
	Batch struct {
		// Workers of 0 derives the pool size from the core budget.
		Workers  int    `env:"BATCH_WORKERS" envDefault:"0"`
		Workload string `env:"BATCH_WORKLOAD" envDefault:"video"`
	}
}

func Load() (*Config, error) {
	cfg := &Config{}

	// Parse environment variables
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Set default logging level based on environment
	if cfg.Environment == "development" && cfg.Logging.Level == "" {
		cfg.Logging.Level = "debug"
	}

	return cfg, nil
}

// GetEnv returns the value of the environment variable or the default value
func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvAsInt returns the value of the environment variable as int or the default value
func GetEnvAsInt(key string, defaultValue int) int {
	valueStr := GetEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// GetEnvAsBool returns the value of the environment variable as bool or the default value
func GetEnvAsBool(key string, defaultValue bool) bool {
	valueStr := GetEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
