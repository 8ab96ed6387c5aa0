package providers

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const defaultStateTTL = 10 * time.Minute

var errMissingStateSecret = errors.New("providers: state signing secret must be provided")

type stateClaims struct {
	Provider string `json:"provider"`
	jwt.RegisteredClaims
}

// StateCodec mints and verifies the OAuth state parameter as a short-lived
// signed token, binding each redirect to the provider whose flow minted it.
type StateCodec struct {
	signingSecret []byte
	ttl           time.Duration
	clock         func() time.Time
}

// StateCodecConfig configures state minting.
type StateCodecConfig struct {
	SigningSecret []byte
	TTL           time.Duration
	Clock         func() time.Time
}

// NewStateCodec constructs a codec with sane defaults.
func NewStateCodec(cfg StateCodecConfig) (*StateCodec, error) {
	if len(cfg.SigningSecret) == 0 {
		return nil, errMissingStateSecret
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultStateTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &StateCodec{
		signingSecret: cfg.SigningSecret,
		ttl:           ttl,
		clock:         clock,
	}, nil
}

// Issue produces a signed state value for one provider's flow.
func (c *StateCodec) Issue(providerID string) (string, error) {
	now := c.clock()
	claims := stateClaims{
		Provider: providerID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.signingSecret)
	if err != nil {
		return "", fmt.Errorf("providers: sign state: %w", err)
	}
	return signed, nil
}

// Verify checks the signature, expiry and provider binding of a state value
// received on redirect.
func (c *StateCodec) Verify(state, providerID string) error {
	var claims stateClaims
	parsed, err := jwt.ParseWithClaims(state, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return c.signingSecret, nil
	}, jwt.WithTimeFunc(c.clock))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if !parsed.Valid {
		return fmt.Errorf("%w: token is not valid", ErrInvalidState)
	}
	if claims.Provider != providerID {
		return fmt.Errorf("%w: state was issued for a different provider", ErrInvalidState)
	}
	return nil
}
