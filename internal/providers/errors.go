package providers

import "errors"

// Error kinds surfaced by connect and fetch flows. Messages are written to
// be shown to the user directly; wrapped detail adds the provider's reason
// when one is available.
var (
	// ErrUnknownProvider indicates a provider id that is not registered at all.
	ErrUnknownProvider = errors.New("providers: unknown provider")
	// ErrNotImplemented marks deliberate extension points for providers whose
	// integration is not built yet. Distinguishable from runtime failures so
	// callers can show "coming soon" messaging.
	ErrNotImplemented = errors.New("providers: integration not available yet")
	// ErrAuthorizationCancelled is returned when the user dismissed the
	// consent screen. Retrying the flow is safe.
	ErrAuthorizationCancelled = errors.New("providers: authorization was cancelled")
	// ErrAuthorizationDenied is returned when the provider redirected back
	// with an error parameter.
	ErrAuthorizationDenied = errors.New("providers: authorization was denied")
	// ErrMissingAuthorizationCode means the redirect completed without a
	// code; the flow must be re-initiated from the start.
	ErrMissingAuthorizationCode = errors.New("providers: redirect did not include an authorization code")
	// ErrInvalidState means the redirect's state parameter failed
	// verification, so the redirect cannot be trusted.
	ErrInvalidState = errors.New("providers: authorization state is invalid")
	// ErrTokenExchangeFailed wraps a non-2xx response from the provider's
	// token endpoint.
	ErrTokenExchangeFailed = errors.New("providers: token exchange failed")
	// ErrProviderNotConnected is returned when a fetch is attempted without a
	// usable stored credential.
	ErrProviderNotConnected = errors.New("providers: provider is not connected")
	// ErrProviderAPI wraps a non-2xx response from an activity endpoint.
	ErrProviderAPI = errors.New("providers: provider request failed")
)
