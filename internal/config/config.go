package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	Backend BackendConfig
	Session SessionConfig
	Audio   AudioConfig
	History HistoryConfig
	Metrics MetricsConfig
	Log     LogConfig
}

// BackendConfig holds the loan advisory backend configuration
type BackendConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SessionConfig says where the bearer credential comes from
type SessionConfig struct {
	Token     string `mapstructure:"token"`
	TokenFile string `mapstructure:"token_file"`
}

// AudioConfig holds the capture and playback configuration
type AudioConfig struct {
	CaptureCommand []string `mapstructure:"capture_command"`
	SampleRate     int      `mapstructure:"sample_rate"`
	OutputDir      string   `mapstructure:"output_dir"`
}

// HistoryConfig holds the transcript sink configuration
type HistoryConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// MetricsConfig holds the Prometheus listener configuration
type MetricsConfig struct {
	Address string `mapstructure:"address"`
}

// LogConfig holds the logger configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

const envPrefix = "LOANADVISOR"

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend.base_url", "http://localhost:5001")
	v.SetDefault("backend.timeout", 60*time.Second)
	v.SetDefault("session.token", "")
	v.SetDefault("session.token_file", "")
	v.SetDefault("audio.capture_command", []string{"arecord", "-q", "-f", "S16_LE", "-r", "16000", "-c", "1", "-t", "raw"})
	v.SetDefault("audio.sample_rate", 16000)
	v.SetDefault("audio.output_dir", "")
	v.SetDefault("history.db_path", "")
	v.SetDefault("metrics.address", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load loads the configuration from CONFIG_PATH, or config.yaml in the
// working directory. A missing file is not an error; defaults and
// LOANADVISOR_* environment variables still apply.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
