package providers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/myracetime/fitlink/internal/activity"
	"github.com/myracetime/fitlink/internal/credentials"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const defaultProviderTimeout = 30 * time.Second

// AuthSessionResult reports how the browser-based consent step ended.
// Completed is false when the user dismissed the screen; RedirectURL is the
// custom-scheme URL the provider redirected to on completion.
type AuthSessionResult struct {
	Completed   bool
	RedirectURL string
}

// AuthSessionLauncher opens the provider's consent page outside the app and
// suspends until the provider redirects back or the user gives up.
type AuthSessionLauncher interface {
	OpenAuthSession(ctx context.Context, authURL, redirectScheme string) (AuthSessionResult, error)
}

// ServiceConfig describes the dependencies of the provider service.
type ServiceConfig struct {
	Registry *Registry
	Store    *credentials.Store
	States   *StateCodec
	// Launcher is only required by Connect; deployments that drive the
	// consent step through BeginConnect/CompleteConnect can omit it.
	Launcher   AuthSessionLauncher
	HTTPClient *http.Client
	Logger     *zap.Logger
	Clock      func() time.Time
}

// Service is the exposed surface of the fitness-provider subsystem: OAuth
// connect/disconnect, connectivity checks and normalized activity retrieval.
type Service struct {
	registry   *Registry
	store      *credentials.Store
	states     *StateCodec
	launcher   AuthSessionLauncher
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time
}

// NewService constructs the provider service with validated dependencies.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("providers: registry required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("providers: credential store required")
	}
	if cfg.States == nil {
		return nil, fmt.Errorf("providers: state codec required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultProviderTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		registry:   cfg.Registry,
		store:      cfg.Store,
		states:     cfg.States,
		launcher:   cfg.Launcher,
		httpClient: httpClient,
		logger:     logger,
		now:        clock,
	}, nil
}

// ProviderIDs returns every registered provider id in stable order.
func (s *Service) ProviderIDs() []string {
	return s.registry.IDs()
}

// IsConnected reports whether the provider has a stored, unexpired
// credential. Unknown providers report false.
func (s *Service) IsConnected(providerID string) bool {
	if _, err := s.registry.Lookup(providerID); err != nil {
		return false
	}
	return s.store.IsConnected(normalizeID(providerID))
}

// Disconnect removes the provider's stored credential. Disconnecting a
// provider that was never connected is a no-op.
func (s *Service) Disconnect(_ context.Context, providerID string) error {
	if _, err := s.registry.Lookup(providerID); err != nil {
		return err
	}
	if err := s.store.Remove(normalizeID(providerID)); err != nil {
		return err
	}
	s.logger.Info("provider disconnected", zap.String("provider", normalizeID(providerID)))
	return nil
}

func normalizeID(providerID string) string {
	return strings.ToLower(strings.TrimSpace(providerID))
}

// credentialFromToken maps an exchanged oauth2 token onto the stored shape.
func credentialFromToken(provider *Provider, token *oauth2.Token) credentials.Credential {
	cred := credentials.Credential{
		AppID:        provider.ID,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}
	if !token.Expiry.IsZero() {
		cred.ExpiresAt = token.Expiry.UnixMilli()
	} else if expiresAt, ok := token.Extra("expires_at").(float64); ok && expiresAt > 0 {
		// Strava reports an absolute expires_at in epoch seconds.
		cred.ExpiresAt = int64(expiresAt) * 1000
	}
	cred.UserID = externalUserID(provider, token)
	return cred
}

// externalUserID extracts the provider's own user identifier from the
// token-endpoint response extras, when the provider includes one.
func externalUserID(provider *Provider, token *oauth2.Token) string {
	switch provider.Source {
	case activity.SourceStrava:
		athlete, ok := token.Extra("athlete").(map[string]any)
		if !ok {
			return ""
		}
		switch id := athlete["id"].(type) {
		case float64:
			return strconv.FormatInt(int64(id), 10)
		case string:
			return id
		}
	case activity.SourceFitbit:
		if id, ok := token.Extra("user_id").(string); ok {
			return id
		}
	}
	return ""
}
