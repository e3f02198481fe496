// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	JWTSecret      string `mapstructure:"JWT_SECRET"`
	Port           string `mapstructure:"PORT"`
	DBHost         string `mapstructure:"DB_HOST"`
	DBPort         string `mapstructure:"DB_PORT"`
	DBUser         string `mapstructure:"DB_USER"`
	DBPassword     string `mapstructure:"DB_PASSWORD"`
	DBName         string `mapstructure:"DB_NAME"`
	DBSSLMode      string `mapstructure:"DB_SSLMODE"`
	DBReadHost     string `mapstructure:"DB_READ_HOST"`
	RedisURL       string `mapstructure:"REDIS_URL"`

	// Schema management policy. "hybrid" runs SQL migrations everywhere and
	// AutoMigrate only outside prod-like environments.
	DBSchemaMode                  string `mapstructure:"DB_SCHEMA_MODE"`
	DBAutoMigrateAllowDestructive bool   `mapstructure:"DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE"`
	DBMaxOpenConns                int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns                int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetimeMinutes      int    `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`

	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	Env            string `mapstructure:"APP_ENV"`

	// External content-analysis capability. When AnalysisEndpoint is empty
	// the built-in rule analyzer (AnalysisRulesFile) is used instead.
	AnalysisEndpoint  string `mapstructure:"ANALYSIS_ENDPOINT"`
	AnalysisAPIKey    string `mapstructure:"ANALYSIS_API_KEY"`
	AnalysisTimeoutMS int    `mapstructure:"ANALYSIS_TIMEOUT_MS"`
	AnalysisRulesFile string `mapstructure:"ANALYSIS_RULES_FILE"`

	// Violation-check tuning. These are policy values, not contracts.
	CheckCacheTTLSeconds int `mapstructure:"CHECK_CACHE_TTL_SECONDS"`
	CheckCacheSize       int `mapstructure:"CHECK_CACHE_SIZE"`
	CheckDebounceMS      int `mapstructure:"CHECK_DEBOUNCE_MS"`
	MinTitleLen          int `mapstructure:"MIN_TITLE_LEN"`
	MinBodyLen           int `mapstructure:"MIN_BODY_LEN"`

	// Distributed tracing. Exporter is "stdout" or "otlp".
	TracingEnabled     bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter    string  `mapstructure:"TRACING_EXPORTER"`
	TracingOTLPURL     string  `mapstructure:"TRACING_OTLP_ENDPOINT"`
	TracingSampleRatio float64 `mapstructure:"TRACING_SAMPLE_RATIO"`

	DevBootstrapRoot bool   `mapstructure:"DEV_BOOTSTRAP_ROOT"`
	DevRootUsername  string `mapstructure:"DEV_ROOT_USERNAME"`
	DevRootEmail     string `mapstructure:"DEV_ROOT_EMAIL"`
	DevRootPassword  string `mapstructure:"DEV_ROOT_PASSWORD"`
}

// AnalysisTimeout returns the analysis call timeout as a duration.
func (c *Config) AnalysisTimeout() time.Duration {
	return time.Duration(c.AnalysisTimeoutMS) * time.Millisecond
}

// CheckCacheTTL returns the violation-check cache TTL as a duration.
func (c *Config) CheckCacheTTL() time.Duration {
	return time.Duration(c.CheckCacheTTLSeconds) * time.Second
}

// CheckDebounce returns the edit-debounce window as a duration.
func (c *Config) CheckDebounce() time.Duration {
	return time.Duration(c.CheckDebounceMS) * time.Millisecond
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// Initial read to get APP_ENV if set in base config.
	// The config file may not exist yet; env vars and defaults still apply.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			var notFoundErr viper.ConfigFileNotFoundError
			if !errors.As(err, &notFoundErr) {
				return nil, fmt.Errorf("reading profile config 'config.%s.yml': %w", env, err)
			}
		} else {
			log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
		}
	}

	// Set default values for development
	viper.SetDefault("PORT", "8460")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "gatehouse")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_SCHEMA_MODE", "hybrid")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 5)
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("JWT_SECRET", "your-secret-key-change-in-production")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("ANALYSIS_ENDPOINT", "")
	viper.SetDefault("ANALYSIS_API_KEY", "")
	viper.SetDefault("ANALYSIS_TIMEOUT_MS", 5000)
	viper.SetDefault("ANALYSIS_RULES_FILE", "analysis_rules.yml")
	viper.SetDefault("CHECK_CACHE_TTL_SECONDS", 600)
	viper.SetDefault("CHECK_CACHE_SIZE", 4096)
	viper.SetDefault("CHECK_DEBOUNCE_MS", 1500)
	viper.SetDefault("MIN_TITLE_LEN", 3)
	viper.SetDefault("MIN_BODY_LEN", 20)
	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("TRACING_OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_SAMPLE_RATIO", 1.0)
	viper.SetDefault("DEV_BOOTSTRAP_ROOT", false)

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.AnalysisTimeoutMS <= 0 {
		return errors.New("ANALYSIS_TIMEOUT_MS must be positive")
	}
	if c.CheckCacheTTLSeconds <= 0 {
		return errors.New("CHECK_CACHE_TTL_SECONDS must be positive")
	}
	if c.CheckDebounceMS <= 0 {
		return errors.New("CHECK_DEBOUNCE_MS must be positive")
	}
	if c.MinTitleLen < 0 || c.MinBodyLen < 0 {
		return errors.New("minimum content lengths must not be negative")
	}

	isProduction := c.Env == "production" || c.Env == "prod"

	// Strict checks for production
	if isProduction {
		if c.JWTSecret == "your-secret-key-change-in-production" {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.DBPassword == "password" || c.DBPassword == "" {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
			return errors.New("DB_SSLMODE must not be 'disable' in production")
		}
		if c.AnalysisEndpoint == "" {
			return errors.New("ANALYSIS_ENDPOINT is required in production (rule analyzer is for development only)")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	} else {
		// Development/Test warnings
		if len(c.JWTSecret) < 32 {
			log.Println("WARNING: JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
		}
	}

	return nil
}
