package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix              = "FITLINK"
	defaultHTTPAddress     = "0.0.0.0:8080"
	defaultDatabasePath    = "fitlink.db"
	defaultLogLevel        = "info"
	defaultRedirectScheme  = "myracetime"
	defaultProviderTimeout = 30 * time.Second
)

// AppConfig captures runtime configuration for the fitlink API.
type AppConfig struct {
	HTTPAddress        string
	DatabasePath       string
	LogLevel           string
	RedirectScheme     string
	StateSigningSecret string
	ProviderTimeout    time.Duration
	StravaClientID     string
	StravaClientSecret string
	FitbitClientID     string
	FitbitClientSecret string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("oauth.redirect_scheme", defaultRedirectScheme)
	configViper.SetDefault("provider.timeout", defaultProviderTimeout.String())
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:        configViper.GetString("http.address"),
		DatabasePath:       configViper.GetString("database.path"),
		LogLevel:           configViper.GetString("log.level"),
		RedirectScheme:     configViper.GetString("oauth.redirect_scheme"),
		StateSigningSecret: configViper.GetString("oauth.state_secret"),
		ProviderTimeout:    configViper.GetDuration("provider.timeout"),
		StravaClientID:     configViper.GetString("strava.client_id"),
		StravaClientSecret: configViper.GetString("strava.client_secret"),
		FitbitClientID:     configViper.GetString("fitbit.client_id"),
		FitbitClientSecret: configViper.GetString("fitbit.client_secret"),
	}

	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = defaultProviderTimeout
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.RedirectScheme) == "" {
		return fmt.Errorf("oauth.redirect_scheme is required")
	}
	if strings.TrimSpace(c.StateSigningSecret) == "" {
		return fmt.Errorf("oauth.state_secret is required")
	}
	if strings.TrimSpace(c.StravaClientID) == "" || strings.TrimSpace(c.StravaClientSecret) == "" {
		return fmt.Errorf("strava.client_id and strava.client_secret are required")
	}
	if strings.TrimSpace(c.FitbitClientID) == "" || strings.TrimSpace(c.FitbitClientSecret) == "" {
		return fmt.Errorf("fitbit.client_id and fitbit.client_secret are required")
	}
	return nil
}
