package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/domain"
	"github.com/kandyfoma/goshopperai-sub000/internal/core/port"
	"github.com/kandyfoma/goshopperai-sub000/internal/repository"
)

// ErrUnknownProfileField indicates a profile update with a field outside the allow list.
var ErrUnknownProfileField = errors.New("unknown profile field")

// profileFields lists the keys clients may write to the profile document.
var profileFields = map[string]struct{}{
	"name":               {},
	"city":               {},
	"country_iso":        {},
	"preferred_language": {},
	"preferred_currency": {},
	"monthly_budget":     {},
	"notifications":      {},
}

// UserService exposes the signed-in user's account and profile document.
type UserService struct {
	identity port.IdentityProvider
	profiles port.ProfileStore
}

// NewUserService constructs UserService.
func NewUserService(identity port.IdentityProvider, profiles port.ProfileStore) *UserService {
	return &UserService{identity: identity, profiles: profiles}
}

// GetUser returns the account and its profile. A user without a profile gets an
// empty document.
func (s *UserService) GetUser(ctx context.Context, userID string) (domain.User, domain.Profile, error) {
	user, err := s.identity.GetUser(ctx, userID)
	if err != nil {
		return domain.User{}, domain.Profile{}, err
	}

	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, domain.Profile{}, fmt.Errorf("load profile: %w", err)
		}
		profile = domain.Profile{UserID: userID, Fields: map[string]any{}}
	}
	return user, profile, nil
}

// UpdateProfile merges fields into the profile document.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, fields map[string]any) (domain.Profile, error) {
	if len(fields) == 0 {
		return domain.Profile{}, domain.NewValidationError("fields", errors.New("no fields to update"))
	}
	clean := make(map[string]any, len(fields))
	for key, value := range fields {
		key = strings.TrimSpace(key)
		if _, ok := profileFields[key]; !ok {
			return domain.Profile{}, domain.NewValidationError(key, ErrUnknownProfileField)
		}
		if str, ok := value.(string); ok {
			value = strings.TrimSpace(str)
		}
		clean[key] = value
	}
	if iso, ok := clean["country_iso"].(string); ok {
		clean["country_iso"] = strings.ToUpper(iso)
	}

	if err := s.profiles.SaveProfile(ctx, userID, clean); err != nil {
		return domain.Profile{}, fmt.Errorf("save profile: %w", err)
	}
	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("load profile: %w", err)
	}
	return profile, nil
}
