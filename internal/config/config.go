// Package config loads the console's configuration from YAML plus
// environment overrides for credentials.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Dashboard    DashboardConfig    `mapstructure:"dashboard"`
	Archive      ArchiveConfig      `mapstructure:"archive"`
	Insight      InsightConfig      `mapstructure:"insight"`
	Logger       LoggerConfig       `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// OrchestratorConfig holds the upstream orchestrator endpoints. When
// ServiceToken is set the console talks to the orchestrator with that fixed
// service-account token instead of forwarding each caller's session token.
type OrchestratorConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	SubmitURL    string        `mapstructure:"submit_url"`
	ServiceToken string        `mapstructure:"service_token"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// AuthConfig maps identities to roles. Roles is an email-to-role map;
// unknown identities fall back to default_role.
type AuthConfig struct {
	Roles       map[string]string `mapstructure:"roles"`
	DefaultRole string            `mapstructure:"default_role"`
}

// DashboardConfig holds KPI tuning.
type DashboardConfig struct {
	// PlacementGoal is the monthly placement target in PEN.
	PlacementGoal float64 `mapstructure:"placement_goal"`
	// USDRate converts USD amounts into PEN for the KPI.
	USDRate float64 `mapstructure:"usd_rate"`
}

// ArchiveConfig holds the local sqlite archive settings.
type ArchiveConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// InsightConfig holds the advisor's OpenAI settings.
type InsightConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Temperature float32 `mapstructure:"temperature"`
}

// LoggerConfig holds logger configuration.
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load reads the config file, applies defaults and environment overrides
// and validates the result.
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	viper.SetDefault("orchestrator.timeout", 30*time.Second)

	viper.SetDefault("auth.default_role", "viewer")

	viper.SetDefault("dashboard.placement_goal", 500000)
	viper.SetDefault("dashboard.usd_rate", 3.75)

	viper.SetDefault("archive.path", "data/console.db")
	viper.SetDefault("archive.max_open_conns", 25)
	viper.SetDefault("archive.max_idle_conns", 5)
	viper.SetDefault("archive.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("archive.migrations_dir", "migrations")

	viper.SetDefault("insight.model", "gpt-4o-mini")
	viper.SetDefault("insight.temperature", 0.2)

	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

func bindEnvVars() {
	viper.BindEnv("orchestrator.base_url", "ORCHESTRATOR_BASE_URL")
	viper.BindEnv("orchestrator.submit_url", "ORCHESTRATOR_SUBMIT_URL")
	viper.BindEnv("orchestrator.service_token", "ORCHESTRATOR_SERVICE_TOKEN")
	viper.BindEnv("insight.api_key", "OPENAI_API_KEY")
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.Orchestrator.BaseURL == "" {
		return fmt.Errorf("orchestrator.base_url is required")
	}
	if c.Orchestrator.SubmitURL == "" {
		return fmt.Errorf("orchestrator.submit_url is required")
	}
	if c.Dashboard.USDRate <= 0 {
		return fmt.Errorf("dashboard.usd_rate must be positive")
	}
	if c.Dashboard.PlacementGoal <= 0 {
		return fmt.Errorf("dashboard.placement_goal must be positive")
	}
	switch c.Auth.DefaultRole {
	case "analyst", "admin", "viewer":
	default:
		return fmt.Errorf("auth.default_role must be analyst, admin or viewer")
	}
	return nil
}
