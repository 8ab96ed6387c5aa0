package providers

import (
	"fmt"
	"sort"
	"strings"

	"github.com/myracetime/fitlink/internal/activity"
	"golang.org/x/oauth2"
)

// Provider ids exposed to callers. They match the activity source values.
const (
	ProviderStrava        = string(activity.SourceStrava)
	ProviderGoogleFit     = string(activity.SourceGoogleFit)
	ProviderFitbit        = string(activity.SourceFitbit)
	ProviderSamsungHealth = string(activity.SourceSamsungHealth)
	ProviderAppleHealth   = string(activity.SourceAppleHealth)
)

const (
	defaultStravaAuthURL    = "https://www.strava.com/oauth/mobile/authorize"
	defaultStravaTokenURL   = "https://www.strava.com/oauth/token"
	defaultStravaAPIBaseURL = "https://www.strava.com/api/v3"

	defaultFitbitAuthURL    = "https://www.fitbit.com/oauth2/authorize"
	defaultFitbitTokenURL   = "https://api.fitbit.com/oauth2/token"
	defaultFitbitAPIBaseURL = "https://api.fitbit.com/1"
)

// OAuthClient carries one provider's application registration. The endpoint
// URLs default to the provider's public endpoints and exist as fields so
// tests can point flows at local servers.
type OAuthClient struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	APIBaseURL   string
}

// RegistryConfig describes the provider registrations for this deployment.
type RegistryConfig struct {
	// RedirectScheme is the app's custom URI scheme, e.g. "myracetime".
	// Providers validate the registered redirect URI exactly, so the derived
	// "{scheme}://{provider}" string must match the app registration.
	RedirectScheme string
	Strava         OAuthClient
	Fitbit         OAuthClient
}

// Provider bundles everything needed to talk to one fitness service. OAuth
// is nil for providers whose connect flow is not implemented; SupportsFetch
// is false for providers whose activity client is not implemented.
type Provider struct {
	ID            string
	Source        activity.Source
	OAuth         *oauth2.Config
	APIBaseURL    string
	SupportsFetch bool
}

// Registry resolves provider ids to their registrations.
type Registry struct {
	scheme    string
	providers map[string]*Provider
}

// NewRegistry validates the configuration and registers all known providers.
// Strava and Fitbit get full OAuth configurations; Google Fit, Samsung
// Health and Apple Health are registered as stubs so lookups succeed and
// flows fail with ErrNotImplemented instead of ErrUnknownProvider.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	scheme := strings.TrimSpace(cfg.RedirectScheme)
	if scheme == "" {
		return nil, fmt.Errorf("providers: redirect scheme is required")
	}
	if cfg.Strava.ClientID == "" || cfg.Strava.ClientSecret == "" {
		return nil, fmt.Errorf("providers: strava client credentials are required")
	}
	if cfg.Fitbit.ClientID == "" || cfg.Fitbit.ClientSecret == "" {
		return nil, fmt.Errorf("providers: fitbit client credentials are required")
	}

	registry := &Registry{
		scheme:    scheme,
		providers: make(map[string]*Provider),
	}

	registry.register(&Provider{
		ID:            ProviderStrava,
		Source:        activity.SourceStrava,
		APIBaseURL:    orDefault(cfg.Strava.APIBaseURL, defaultStravaAPIBaseURL),
		SupportsFetch: true,
		OAuth: &oauth2.Config{
			ClientID:     cfg.Strava.ClientID,
			ClientSecret: cfg.Strava.ClientSecret,
			RedirectURL:  scheme + "://" + ProviderStrava,
			Scopes:       []string{"read", "activity:read_all"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   orDefault(cfg.Strava.AuthURL, defaultStravaAuthURL),
				TokenURL:  orDefault(cfg.Strava.TokenURL, defaultStravaTokenURL),
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
	})

	registry.register(&Provider{
		ID:         ProviderFitbit,
		Source:     activity.SourceFitbit,
		APIBaseURL: orDefault(cfg.Fitbit.APIBaseURL, defaultFitbitAPIBaseURL),
		OAuth: &oauth2.Config{
			ClientID:     cfg.Fitbit.ClientID,
			ClientSecret: cfg.Fitbit.ClientSecret,
			RedirectURL:  scheme + "://" + ProviderFitbit,
			Scopes:       []string{"activity", "profile"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   orDefault(cfg.Fitbit.AuthURL, defaultFitbitAuthURL),
				TokenURL:  orDefault(cfg.Fitbit.TokenURL, defaultFitbitTokenURL),
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
	})

	registry.register(&Provider{ID: ProviderGoogleFit, Source: activity.SourceGoogleFit})
	registry.register(&Provider{ID: ProviderSamsungHealth, Source: activity.SourceSamsungHealth})
	registry.register(&Provider{ID: ProviderAppleHealth, Source: activity.SourceAppleHealth})

	return registry, nil
}

func (r *Registry) register(provider *Provider) {
	r.providers[provider.ID] = provider
}

// Lookup resolves a provider id, case-insensitively.
func (r *Registry) Lookup(id string) (*Provider, error) {
	provider, ok := r.providers[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, id)
	}
	return provider, nil
}

// IDs returns all registered provider ids in stable order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RedirectScheme returns the app's custom URI scheme.
func (r *Registry) RedirectScheme() string {
	return r.scheme
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
