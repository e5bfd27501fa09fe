package credential

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"go-art-session/internal/model"
)

const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyUserData     = "user_data"

	KeyCart                = "cart"
	KeyWishlist            = "wishlist"
	KeyTheme               = "theme"
	KeyOnboardingCompleted = "onboarding_completed"
)

var authKeys = []string{KeyAccessToken, KeyRefreshToken, KeyUserData}

// AncillaryKeys are UI-local values that live next to the credentials and
// are wiped together with them on logout.
var AncillaryKeys = []string{KeyCart, KeyWishlist, KeyTheme, KeyOnboardingCompleted}

// Store persists the access token, refresh token and cached user profile.
// Reads never fail: missing or corrupt data reads as absent.
type Store struct {
	backend Backend
	logger  *slog.Logger
}

func NewStore(backend Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{backend: backend, logger: logger.With("component", "credential_store")}
}

func (s *Store) SetTokens(ctx context.Context, accessToken string, refreshToken string) error {
	if err := s.backend.Set(ctx, KeyAccessToken, accessToken); err != nil {
		return fmt.Errorf("%w: store access token: %v", model.ErrStorage, err)
	}

	if refreshToken != "" {
		if err := s.backend.Set(ctx, KeyRefreshToken, refreshToken); err != nil {
			return fmt.Errorf("%w: store refresh token: %v", model.ErrStorage, err)
		}
	}

	s.logger.Debug("tokens stored", "has_refresh_token", refreshToken != "")
	return nil
}

func (s *Store) SetUserProfile(ctx context.Context, profile model.UserProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("%w: encode user profile: %v", model.ErrStorage, err)
	}

	if err := s.backend.Set(ctx, KeyUserData, string(data)); err != nil {
		return fmt.Errorf("%w: store user profile: %v", model.ErrStorage, err)
	}

	s.logger.Debug("user profile stored", "user_id", profile.ID, "role", profile.Role)
	return nil
}

func (s *Store) GetToken(ctx context.Context) string {
	return s.read(ctx, KeyAccessToken)
}

func (s *Store) GetRefreshToken(ctx context.Context) string {
	return s.read(ctx, KeyRefreshToken)
}

func (s *Store) GetUserProfile(ctx context.Context) *model.UserProfile {
	raw := s.read(ctx, KeyUserData)
	if raw == "" {
		return nil
	}

	var profile model.UserProfile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		s.logger.Warn("discarding corrupt user profile", "error", err)
		return nil
	}
	if strings.TrimSpace(profile.ID) == "" {
		s.logger.Warn("discarding user profile without id")
		return nil
	}

	return &profile
}

func (s *Store) HasCompleteState(ctx context.Context) bool {
	return s.GetToken(ctx) != "" && s.GetUserProfile(ctx) != nil
}

// ClearAll removes the three auth keys. Removal failures are logged only.
func (s *Store) ClearAll(ctx context.Context) {
	s.remove(ctx, authKeys)
	s.logger.Debug("credentials cleared")
}

func (s *Store) ClearAncillary(ctx context.Context) {
	s.remove(ctx, AncillaryKeys)
}

func (s *Store) GetLocal(ctx context.Context, key string) (string, error) {
	if err := checkAncillaryKey(key); err != nil {
		return "", err
	}
	return s.read(ctx, key), nil
}

func (s *Store) SetLocal(ctx context.Context, key string, value string) error {
	if err := checkAncillaryKey(key); err != nil {
		return err
	}
	if err := s.backend.Set(ctx, key, value); err != nil {
		return fmt.Errorf("%w: store %s: %v", model.ErrStorage, key, err)
	}
	return nil
}

func (s *Store) read(ctx context.Context, key string) string {
	value, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		s.logger.Warn("credential read failed", "key", key, "error", err)
		return ""
	}
	if !ok {
		return ""
	}
	return value
}

func (s *Store) remove(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := s.backend.Delete(ctx, key); err != nil {
			s.logger.Error("credential removal failed", "key", key, "error", err)
		}
	}
}

func checkAncillaryKey(key string) error {
	for _, k := range AncillaryKeys {
		if k == key {
			return nil
		}
	}
	for _, k := range authKeys {
		if k == key {
			return fmt.Errorf("%w: %s", model.ErrReservedKey, key)
		}
	}
	return fmt.Errorf("%w: unknown local key %q", model.ErrInvalidInput, key)
}
