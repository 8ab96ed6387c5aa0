package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/myracetime/fitlink/internal/credentials"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stubLauncher struct {
	result AuthSessionResult
	err    error
}

func (l stubLauncher) OpenAuthSession(context.Context, string, string) (AuthSessionResult, error) {
	return l.result, l.err
}

func newTestStore(t *testing.T) *credentials.Store {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&credentials.Credential{}); err != nil {
		t.Fatalf("failed to migrate credential schema: %v", err)
	}
	store, err := credentials.NewStore(credentials.StoreConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}

type serviceOptions struct {
	launcher AuthSessionLauncher
	tokenURL string
	apiURL   string
	clock    func() time.Time
}

func newTestService(t *testing.T, store *credentials.Store, opts serviceOptions) *Service {
	t.Helper()
	registry, err := NewRegistry(RegistryConfig{
		RedirectScheme: "myracetime",
		Strava: OAuthClient{
			ClientID:     "strava-client",
			ClientSecret: "strava-secret",
			TokenURL:     opts.tokenURL,
			APIBaseURL:   opts.apiURL,
		},
		Fitbit: OAuthClient{
			ClientID:     "fitbit-client",
			ClientSecret: "fitbit-secret",
		},
	})
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}
	states, err := NewStateCodec(StateCodecConfig{SigningSecret: []byte("test-state-secret")})
	if err != nil {
		t.Fatalf("failed to build state codec: %v", err)
	}
	service, err := NewService(ServiceConfig{
		Registry: registry,
		Store:    store,
		States:   states,
		Launcher: opts.launcher,
		Logger:   zap.NewNop(),
		Clock:    opts.clock,
	})
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	return service
}

func newStravaTokenServer(t *testing.T, expectedCode string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse token request: %v", err)
		}
		if expectedCode != "" && r.FormValue("code") != expectedCode {
			t.Errorf("unexpected authorization code: %q", r.FormValue("code"))
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"token_type":    "Bearer",
			"access_token":  "tok",
			"refresh_token": "ref",
			"expires_at":    1893456000,
			"athlete":       map[string]any{"id": 42},
		})
	}))
}

func TestConnectStoresStravaCredential(t *testing.T) {
	tokenServer := newStravaTokenServer(t, "abc123")
	defer tokenServer.Close()

	store := newTestStore(t)
	service := newTestService(t, store, serviceOptions{
		launcher: stubLauncher{result: AuthSessionResult{
			Completed:   true,
			RedirectURL: "myracetime://strava?code=abc123",
		}},
		tokenURL: tokenServer.URL,
	})

	cred, err := service.Connect(context.Background(), "strava")
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	if cred.AppID != "strava" || cred.AccessToken != "tok" || cred.RefreshToken != "ref" {
		t.Fatalf("unexpected credential: %+v", cred)
	}
	if cred.UserID != "42" {
		t.Fatalf("expected athlete id 42 as user id, got %q", cred.UserID)
	}
	if cred.ExpiresAt != 1893456000000 {
		t.Fatalf("expected expires_at in epoch millis, got %d", cred.ExpiresAt)
	}

	stored, err := store.Get("strava")
	if err != nil {
		t.Fatalf("reading stored credential failed: %v", err)
	}
	if stored == nil || stored.AccessToken != "tok" {
		t.Fatalf("expected credential persisted, got %+v", stored)
	}
	if !service.IsConnected("strava") {
		t.Fatalf("expected provider to report connected")
	}
}

func TestConnectCancelledSessionFailsWithDistinctError(t *testing.T) {
	service := newTestService(t, newTestStore(t), serviceOptions{
		launcher: stubLauncher{result: AuthSessionResult{Completed: false}},
	})

	_, err := service.Connect(context.Background(), "strava")
	if !errors.Is(err, ErrAuthorizationCancelled) {
		t.Fatalf("expected ErrAuthorizationCancelled, got %v", err)
	}
	if service.IsConnected("strava") {
		t.Fatalf("cancelled flow must not leave a credential behind")
	}
}

func TestConnectDeniedRedirectSurfacesProviderReason(t *testing.T) {
	service := newTestService(t, newTestStore(t), serviceOptions{
		launcher: stubLauncher{result: AuthSessionResult{
			Completed:   true,
			RedirectURL: "myracetime://strava?error=access_denied",
		}},
	})

	_, err := service.Connect(context.Background(), "strava")
	if !errors.Is(err, ErrAuthorizationDenied) {
		t.Fatalf("expected ErrAuthorizationDenied, got %v", err)
	}
	if !strings.Contains(err.Error(), "access_denied") {
		t.Fatalf("expected provider reason in message, got %q", err.Error())
	}
}

func TestConnectRedirectWithoutCodeFails(t *testing.T) {
	service := newTestService(t, newTestStore(t), serviceOptions{
		launcher: stubLauncher{result: AuthSessionResult{
			Completed:   true,
			RedirectURL: "myracetime://strava",
		}},
	})

	_, err := service.Connect(context.Background(), "strava")
	if !errors.Is(err, ErrMissingAuthorizationCode) {
		t.Fatalf("expected ErrMissingAuthorizationCode, got %v", err)
	}
}

func TestConnectTokenExchangeFailureCarriesProviderMessage(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"invalid code"}`))
	}))
	defer tokenServer.Close()

	service := newTestService(t, newTestStore(t), serviceOptions{
		launcher: stubLauncher{result: AuthSessionResult{
			Completed:   true,
			RedirectURL: "myracetime://strava?code=bad",
		}},
		tokenURL: tokenServer.URL,
	})

	_, err := service.Connect(context.Background(), "strava")
	if !errors.Is(err, ErrTokenExchangeFailed) {
		t.Fatalf("expected ErrTokenExchangeFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "invalid code") {
		t.Fatalf("expected provider body in message, got %q", err.Error())
	}
}

func TestConnectRejectsTamperedState(t *testing.T) {
	service := newTestService(t, newTestStore(t), serviceOptions{
		launcher: stubLauncher{result: AuthSessionResult{
			Completed:   true,
			RedirectURL: "myracetime://strava?code=abc123&state=garbage",
		}},
	})

	_, err := service.Connect(context.Background(), "strava")
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestConnectFailsFastForUnimplementedProviders(t *testing.T) {
	service := newTestService(t, newTestStore(t), serviceOptions{
		launcher: stubLauncher{result: AuthSessionResult{Completed: true}},
	})

	for _, provider := range []string{"google_fit", "samsung_health", "apple_health"} {
		_, err := service.Connect(context.Background(), provider)
		if !errors.Is(err, ErrNotImplemented) {
			t.Fatalf("%s: expected ErrNotImplemented, got %v", provider, err)
		}
	}
}

func TestConnectRejectsUnknownProvider(t *testing.T) {
	service := newTestService(t, newTestStore(t), serviceOptions{
		launcher: stubLauncher{result: AuthSessionResult{Completed: true}},
	})

	_, err := service.Connect(context.Background(), "peloton")
	if !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestBeginConnectBuildsAuthorizationURL(t *testing.T) {
	service := newTestService(t, newTestStore(t), serviceOptions{})

	session, err := service.BeginConnect("strava")
	if err != nil {
		t.Fatalf("begin connect failed: %v", err)
	}
	if session.RedirectURI != "myracetime://strava" {
		t.Fatalf("unexpected redirect uri: %q", session.RedirectURI)
	}

	parsed, err := url.Parse(session.AuthURL)
	if err != nil {
		t.Fatalf("auth url does not parse: %v", err)
	}
	query := parsed.Query()
	if query.Get("client_id") != "strava-client" {
		t.Fatalf("unexpected client_id: %q", query.Get("client_id"))
	}
	if query.Get("redirect_uri") != "myracetime://strava" {
		t.Fatalf("unexpected redirect_uri: %q", query.Get("redirect_uri"))
	}
	if query.Get("response_type") != "code" {
		t.Fatalf("unexpected response_type: %q", query.Get("response_type"))
	}
	if !strings.Contains(query.Get("scope"), "activity:read_all") {
		t.Fatalf("unexpected scope: %q", query.Get("scope"))
	}
	if query.Get("state") != session.State || session.State == "" {
		t.Fatalf("auth url must carry the issued state")
	}
}

func TestCompleteConnectAcceptsRedirectWithValidState(t *testing.T) {
	tokenServer := newStravaTokenServer(t, "abc123")
	defer tokenServer.Close()

	store := newTestStore(t)
	service := newTestService(t, store, serviceOptions{tokenURL: tokenServer.URL})

	session, err := service.BeginConnect("strava")
	if err != nil {
		t.Fatalf("begin connect failed: %v", err)
	}

	redirect := "myracetime://strava?code=abc123&state=" + url.QueryEscape(session.State)
	cred, err := service.CompleteConnect(context.Background(), "strava", redirect)
	if err != nil {
		t.Fatalf("complete connect failed: %v", err)
	}
	if cred.AppID != "strava" || cred.AccessToken != "tok" {
		t.Fatalf("unexpected credential: %+v", cred)
	}
}

func TestDisconnectRemovesCredential(t *testing.T) {
	store := newTestStore(t)
	service := newTestService(t, store, serviceOptions{})

	if err := store.Save(credentials.Credential{AppID: "strava", AccessToken: "tok"}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := service.Disconnect(context.Background(), "strava"); err != nil {
		t.Fatalf("disconnect failed: %v", err)
	}
	if service.IsConnected("strava") {
		t.Fatalf("expected provider to be disconnected")
	}
	// Disconnecting again is a no-op.
	if err := service.Disconnect(context.Background(), "strava"); err != nil {
		t.Fatalf("second disconnect failed: %v", err)
	}
}
