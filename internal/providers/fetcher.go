package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/myracetime/fitlink/internal/activity"
	"github.com/myracetime/fitlink/internal/credentials"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const fetchPageSize = 100

// FetchActivities retrieves the provider's activity records for the optional
// time range and returns them in canonical form. The stored credential is
// refreshed first when it has expired and a refresh token is available.
func (s *Service) FetchActivities(ctx context.Context, providerID string, start, end *time.Time) ([]activity.Activity, error) {
	provider, err := s.registry.Lookup(providerID)
	if err != nil {
		return nil, err
	}
	cred, err := s.validCredential(ctx, provider)
	if err != nil {
		return nil, err
	}
	if !provider.SupportsFetch {
		return nil, fmt.Errorf("%w: fetching %s activities", ErrNotImplemented, provider.ID)
	}

	raw, err := s.fetchRaw(ctx, provider, cred, start, end)
	if err != nil {
		return nil, err
	}

	normalized, err := activity.NormalizeAll(provider.Source, raw)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("activities fetched",
		zap.String("provider", provider.ID),
		zap.Int("count", len(normalized)))
	return normalized, nil
}

// validCredential loads the stored credential and ensures it is usable,
// running the refresh grant when the access token has expired.
func (s *Service) validCredential(ctx context.Context, provider *Provider) (credentials.Credential, error) {
	stored, err := s.store.Get(provider.ID)
	if err != nil {
		return credentials.Credential{}, err
	}
	if stored == nil {
		return credentials.Credential{}, fmt.Errorf("%w: connect %s first", ErrProviderNotConnected, provider.ID)
	}
	if stored.ExpiresAt == 0 || stored.ExpiresAt > s.now().UnixMilli() {
		return *stored, nil
	}
	if stored.RefreshToken == "" || provider.OAuth == nil {
		return credentials.Credential{}, fmt.Errorf("%w: %s access expired, reconnect required", ErrProviderNotConnected, provider.ID)
	}
	return s.refreshCredential(ctx, provider, *stored)
}

// refreshCredential exchanges the stored refresh token for a fresh grant and
// persists the result. Providers may omit fields on refresh, so the stale
// credential fills any gaps.
func (s *Service) refreshCredential(ctx context.Context, provider *Provider, stale credentials.Credential) (credentials.Credential, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	source := provider.OAuth.TokenSource(ctx, &oauth2.Token{RefreshToken: stale.RefreshToken})
	token, err := source.Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return credentials.Credential{}, fmt.Errorf("%w: %s", ErrTokenExchangeFailed, strings.TrimSpace(string(retrieveErr.Body)))
		}
		return credentials.Credential{}, fmt.Errorf("%w: %v", ErrTokenExchangeFailed, err)
	}

	refreshed := credentialFromToken(provider, token)
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = stale.RefreshToken
	}
	if refreshed.UserID == "" {
		refreshed.UserID = stale.UserID
	}
	if err := s.store.Save(refreshed); err != nil {
		return credentials.Credential{}, err
	}
	s.logger.Info("provider token refreshed", zap.String("provider", provider.ID))
	return refreshed, nil
}

func (s *Service) fetchRaw(ctx context.Context, provider *Provider, cred credentials.Credential, start, end *time.Time) ([]json.RawMessage, error) {
	switch provider.Source {
	case activity.SourceStrava:
		return s.fetchStrava(ctx, provider, cred, start, end)
	default:
		return nil, fmt.Errorf("%w: fetching %s activities", ErrNotImplemented, provider.ID)
	}
}

// fetchStrava lists the athlete's activities. Range filters translate to
// Strava's after/before Unix-second parameters.
func (s *Service) fetchStrava(ctx context.Context, provider *Provider, cred credentials.Credential, start, end *time.Time) ([]json.RawMessage, error) {
	endpoint, err := url.Parse(provider.APIBaseURL + "/athlete/activities")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderAPI, err)
	}
	query := url.Values{}
	query.Set("per_page", strconv.Itoa(fetchPageSize))
	if start != nil {
		query.Set("after", strconv.FormatInt(start.Unix(), 10))
	}
	if end != nil {
		query.Set("before", strconv.FormatInt(end.Unix(), 10))
	}
	endpoint.RawQuery = query.Encode()

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderAPI, err)
	}
	request.Header.Set("Authorization", "Bearer "+cred.AccessToken)

	response, err := s.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderAPI, err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderAPI, err)
	}
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: %s returned %d: %s", ErrProviderAPI, provider.ID, response.StatusCode, strings.TrimSpace(string(body)))
	}

	var payloads []json.RawMessage
	if err := json.Unmarshal(body, &payloads); err != nil {
		return nil, fmt.Errorf("%w: malformed activity list: %v", ErrProviderAPI, err)
	}
	return payloads, nil
}
