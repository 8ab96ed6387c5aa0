package providers

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/myracetime/fitlink/internal/credentials"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// ConnectSession describes a started authorization flow: the consent URL to
// open and the redirect URI the provider will call back on.
type ConnectSession struct {
	ProviderID  string `json:"providerId"`
	AuthURL     string `json:"authUrl"`
	State       string `json:"state"`
	RedirectURI string `json:"redirectUri"`
}

// BeginConnect builds the provider's consent URL with a signed state
// parameter. Providers without an implemented flow fail ErrNotImplemented.
func (s *Service) BeginConnect(providerID string) (ConnectSession, error) {
	provider, err := s.registry.Lookup(providerID)
	if err != nil {
		return ConnectSession{}, err
	}
	if provider.OAuth == nil {
		return ConnectSession{}, fmt.Errorf("%w: connecting %s", ErrNotImplemented, provider.ID)
	}
	state, err := s.states.Issue(provider.ID)
	if err != nil {
		return ConnectSession{}, err
	}
	return ConnectSession{
		ProviderID:  provider.ID,
		AuthURL:     provider.OAuth.AuthCodeURL(state),
		State:       state,
		RedirectURI: provider.OAuth.RedirectURL,
	}, nil
}

// CompleteConnect consumes the provider's redirect URL, exchanges the
// authorization code for tokens and persists the resulting credential.
func (s *Service) CompleteConnect(ctx context.Context, providerID, redirectURL string) (credentials.Credential, error) {
	provider, err := s.registry.Lookup(providerID)
	if err != nil {
		return credentials.Credential{}, err
	}
	if provider.OAuth == nil {
		return credentials.Credential{}, fmt.Errorf("%w: connecting %s", ErrNotImplemented, provider.ID)
	}

	code, err := s.parseRedirect(redirectURL, provider.ID)
	if err != nil {
		return credentials.Credential{}, err
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	token, err := provider.OAuth.Exchange(ctx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return credentials.Credential{}, fmt.Errorf("%w: %s", ErrTokenExchangeFailed, strings.TrimSpace(string(retrieveErr.Body)))
		}
		return credentials.Credential{}, fmt.Errorf("%w: %v", ErrTokenExchangeFailed, err)
	}

	cred := credentialFromToken(provider, token)
	if err := s.store.Save(cred); err != nil {
		return credentials.Credential{}, err
	}
	s.logger.Info("provider connected",
		zap.String("provider", provider.ID),
		zap.String("external_user_id", cred.UserID))
	return cred, nil
}

// Connect runs the full interactive authorization-code flow: open the
// consent screen through the configured launcher, wait for the redirect and
// complete the exchange.
func (s *Service) Connect(ctx context.Context, providerID string) (credentials.Credential, error) {
	if s.launcher == nil {
		return credentials.Credential{}, fmt.Errorf("providers: auth session launcher not configured")
	}
	session, err := s.BeginConnect(providerID)
	if err != nil {
		return credentials.Credential{}, err
	}
	result, err := s.launcher.OpenAuthSession(ctx, session.AuthURL, s.registry.RedirectScheme())
	if err != nil {
		return credentials.Credential{}, fmt.Errorf("providers: auth session: %w", err)
	}
	if !result.Completed {
		return credentials.Credential{}, ErrAuthorizationCancelled
	}
	return s.CompleteConnect(ctx, session.ProviderID, result.RedirectURL)
}

// parseRedirect extracts the authorization code from the custom-scheme
// redirect. An error parameter wins over a code; a state parameter, when
// present, must verify against this provider's flow.
func (s *Service) parseRedirect(redirectURL, providerID string) (string, error) {
	parsed, err := url.Parse(redirectURL)
	if err != nil {
		return "", fmt.Errorf("%w: malformed redirect url", ErrMissingAuthorizationCode)
	}
	query := parsed.Query()
	if reason := query.Get("error"); reason != "" {
		return "", fmt.Errorf("%w: %s", ErrAuthorizationDenied, reason)
	}
	if state := query.Get("state"); state != "" {
		if err := s.states.Verify(state, providerID); err != nil {
			return "", err
		}
	}
	code := query.Get("code")
	if code == "" {
		return "", ErrMissingAuthorizationCode
	}
	return code, nil
}
