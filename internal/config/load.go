package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load configuration from environment variables and optionally a config
// file. Environment variables use the LATTICE_ prefix with underscores
// separating sections (e.g. LATTICE_SERVER_PORT) and take precedence
// over values from config files. Returns a populated Config struct or an
// error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("sessions.idle_timeout_minutes", 30)
	v.SetDefault("sessions.sweep_interval_minutes", 5)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("LATTICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file is fine; everything can come from the environment.
	}

	// AutomaticEnv only resolves keys viper already knows about, so bind
	// every key the Config struct declares.
	for _, key := range []string{
		"server.port", "server.log_level",
		"database.url",
		"auth.jwt_secret",
		"srs.min_easiness_factor", "srs.first_interval", "srs.second_interval",
		"srs.failure_interval", "srs.max_interval_days",
		"srs.learned_min_repetitions", "srs.learned_min_quality",
		"credit.propagation_factor", "credit.promotion_threshold",
		"credit.demotion_threshold", "credit.max_fanout",
		"credit.propagate_to_dependents",
		"sessions.idle_timeout_minutes", "sessions.sweep_interval_minutes",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind environment variable for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}
