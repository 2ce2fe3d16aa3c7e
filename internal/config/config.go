package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth" validate:"required"`
	SRS      SRSConfig      `mapstructure:"srs"`
	Credit   CreditConfig   `mapstructure:"credit"`
	Sessions SessionsConfig `mapstructure:"sessions"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32"`
}

// SRSConfig tunes the scheduling algorithm. Zero values fall back to the
// algorithm defaults.
type SRSConfig struct {
	MinEasinessFactor     float64 `mapstructure:"min_easiness_factor" validate:"omitempty,gte=1"`
	FirstInterval         int     `mapstructure:"first_interval" validate:"omitempty,gt=0"`
	SecondInterval        int     `mapstructure:"second_interval" validate:"omitempty,gt=0"`
	FailureInterval       int     `mapstructure:"failure_interval" validate:"omitempty,gt=0"`
	MaxIntervalDays       int     `mapstructure:"max_interval_days" validate:"omitempty,gt=0"`
	LearnedMinRepetitions int     `mapstructure:"learned_min_repetitions" validate:"omitempty,gt=0"`
	LearnedMinQuality     int     `mapstructure:"learned_min_quality" validate:"omitempty,gte=0,lte=5"`
}

// CreditConfig tunes prerequisite credit propagation. Zero values fall
// back to the propagation defaults.
type CreditConfig struct {
	PropagationFactor  float64 `mapstructure:"propagation_factor" validate:"omitempty,gt=0,lte=1"`
	PromotionThreshold float64 `mapstructure:"promotion_threshold" validate:"omitempty,gt=0,lte=1"`
	DemotionThreshold  float64 `mapstructure:"demotion_threshold" validate:"omitempty,lt=0,gte=-1"`
	MaxFanout          int     `mapstructure:"max_fanout" validate:"omitempty,gt=0"`

	// PropagateToDependents reverses the credit flow: the reviewed node
	// credits the nodes that depend on it instead of its prerequisites.
	PropagateToDependents bool `mapstructure:"propagate_to_dependents"`
}

// SessionsConfig controls study-session bookkeeping.
type SessionsConfig struct {
	// IdleTimeoutMinutes is how long a session may go without a review
	// before the sweeper closes it.
	IdleTimeoutMinutes int `mapstructure:"idle_timeout_minutes" validate:"omitempty,gt=0"`

	// SweepIntervalMinutes is how often the sweeper runs.
	SweepIntervalMinutes int `mapstructure:"sweep_interval_minutes" validate:"omitempty,gt=0"`
}
