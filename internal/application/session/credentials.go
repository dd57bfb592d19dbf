package session

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wavechat/client/internal/domain/shared"
	syncdomain "github.com/wavechat/client/internal/domain/sync"
)

// CredentialStore wraps the durable state repository for the stored
// credential and its companions. The credential occupies two slots: the
// primary key plus a legacy fallback that older installs read and write.
type CredentialStore struct {
	repo   syncdomain.StateRepository
	logger *zap.Logger
}

// NewCredentialStore creates a credential store over the state repository
func NewCredentialStore(repo syncdomain.StateRepository, logger *zap.Logger) *CredentialStore {
	return &CredentialStore{repo: repo, logger: logger.Named("credentials")}
}

// Load reads the stored credential, primary slot first, then the legacy
// fallback. Returns shared.ErrNoCredential when both are empty.
func (s *CredentialStore) Load(ctx context.Context) (string, error) {
	token, err := s.repo.Get(ctx, syncdomain.StateKeyCredential)
	if err == nil && token != "" {
		return token, nil
	}
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return "", err
	}

	token, err = s.repo.Get(ctx, syncdomain.StateKeyCredentialFallback)
	if err == nil && token != "" {
		s.logger.Debug("credential found in legacy slot")
		return token, nil
	}
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return "", err
	}
	return "", shared.ErrNoCredential
}

// Store writes the credential to both slots so downgraded installs keep
// working against the same local state.
func (s *CredentialStore) Store(ctx context.Context, token string) error {
	if err := s.repo.Set(ctx, syncdomain.StateKeyCredential, token); err != nil {
		return err
	}
	return s.repo.Set(ctx, syncdomain.StateKeyCredentialFallback, token)
}

// Clear destroys the credential in both slots
func (s *CredentialStore) Clear(ctx context.Context) error {
	if err := s.repo.Delete(ctx, syncdomain.StateKeyCredential); err != nil {
		return err
	}
	return s.repo.Delete(ctx, syncdomain.StateKeyCredentialFallback)
}

// LastUser returns the last confirmed identity, used to label a degraded
// session while the backend cannot be reached.
func (s *CredentialStore) LastUser(ctx context.Context) (syncdomain.User, bool) {
	raw, err := s.repo.Get(ctx, syncdomain.StateKeyLastUser)
	if err != nil || raw == "" {
		return syncdomain.User{}, false
	}
	var user syncdomain.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return syncdomain.User{}, false
	}
	return user, true
}

// StoreLastUser persists the confirmed identity
func (s *CredentialStore) StoreLastUser(ctx context.Context, user syncdomain.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return s.repo.Set(ctx, syncdomain.StateKeyLastUser, string(raw))
}

// DeviceID returns the stable device identifier, generating and persisting
// one on first use.
func (s *CredentialStore) DeviceID(ctx context.Context) (string, error) {
	id, err := s.repo.Get(ctx, syncdomain.StateKeyDeviceID)
	if err == nil && id != "" {
		return id, nil
	}
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return "", err
	}

	id = uuid.NewString()
	if err := s.repo.Set(ctx, syncdomain.StateKeyDeviceID, id); err != nil {
		return "", err
	}
	s.logger.Info("generated device identifier", zap.String("device_id", id))
	return id, nil
}
