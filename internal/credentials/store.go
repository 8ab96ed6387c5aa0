package credentials

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrMissingProvider indicates a credential was saved without a provider id.
var ErrMissingProvider = errors.New("credentials: provider id is required")

// StoreConfig describes the dependencies of the credential store.
type StoreConfig struct {
	Database *gorm.DB
	Logger   *zap.Logger
	Clock    func() time.Time
}

// Store persists one credential row per provider. Because rows are keyed by
// provider id and written with a single upsert, concurrent saves for
// different providers never contend with each other.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewStore constructs a credential store backed by the provided database.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("credentials: database connection required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Store{
		db:     cfg.Database,
		logger: logger,
		now:    clock,
	}, nil
}

// Save upserts the credential for its provider and stamps ConnectedAt.
func (s *Store) Save(cred Credential) error {
	if strings.TrimSpace(cred.AppID) == "" {
		return ErrMissingProvider
	}
	cred.ConnectedAt = s.now().UnixMilli()
	err := s.db.
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "app_id"}},
			UpdateAll: true,
		}).
		Create(&cred).
		Error
	if err != nil {
		return fmt.Errorf("credentials: save %s: %w", cred.AppID, err)
	}
	s.logger.Debug("credential saved", zap.String("provider", cred.AppID))
	return nil
}

// Get returns the stored credential for a provider, or nil when absent.
func (s *Store) Get(appID string) (*Credential, error) {
	var cred Credential
	err := s.db.First(&cred, "app_id = ?", appID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("credentials: read %s: %w", appID, err)
	}
	return &cred, nil
}

// GetAll returns every stored credential keyed by provider id. Read failures
// degrade to an empty map so connectivity summaries never take down callers;
// the failure is logged instead.
func (s *Store) GetAll() map[string]Credential {
	var creds []Credential
	if err := s.db.Find(&creds).Error; err != nil {
		s.logger.Warn("credential read failed", zap.Error(err))
		return map[string]Credential{}
	}
	out := make(map[string]Credential, len(creds))
	for _, cred := range creds {
		out[cred.AppID] = cred
	}
	return out
}

// Remove deletes one provider's credential. Removing a provider that has no
// stored credential is a no-op.
func (s *Store) Remove(appID string) error {
	if err := s.db.Delete(&Credential{}, "app_id = ?", appID).Error; err != nil {
		return fmt.Errorf("credentials: remove %s: %w", appID, err)
	}
	return nil
}

// IsConnected reports whether a credential exists for the provider and has
// not expired. Storage failures report false rather than propagating, since
// connectivity checks back UI state that must never crash.
func (s *Store) IsConnected(appID string) bool {
	cred, err := s.Get(appID)
	if err != nil {
		s.logger.Warn("connectivity check failed", zap.String("provider", appID), zap.Error(err))
		return false
	}
	if cred == nil {
		return false
	}
	return cred.ExpiresAt == 0 || cred.ExpiresAt > s.now().UnixMilli()
}

// ClearAll deletes every stored credential.
func (s *Store) ClearAll() error {
	err := s.db.
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&Credential{}).
		Error
	if err != nil {
		return fmt.Errorf("credentials: clear all: %w", err)
	}
	return nil
}
