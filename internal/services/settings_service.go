package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"bilancio/internal/cache"
	"bilancio/internal/core"
	"bilancio/internal/storage"
)

// SettingsStore persists user settings.
type SettingsStore interface {
	GetSettings(ctx context.Context, userID uuid.UUID) (core.UserSettings, error)
	SaveSettings(ctx context.Context, userID uuid.UUID, s core.UserSettings) error
}

// SettingsService serves user settings through a per-user cache. Users
// without a stored row get the defaults.
type SettingsService struct {
	store SettingsStore
	cache cache.Cache[uuid.UUID, core.UserSettings]
}

func NewSettingsService(store SettingsStore, c cache.Cache[uuid.UUID, core.UserSettings]) *SettingsService {
	return &SettingsService{store: store, cache: c}
}

func (s *SettingsService) Get(ctx context.Context, userID uuid.UUID) (core.UserSettings, error) {
	if s.cache != nil {
		if v, ok := s.cache.Get(userID); ok {
			return v, nil
		}
	}

	settings, err := s.store.GetSettings(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		settings = core.DefaultUserSettings()
	} else if err != nil {
		return core.UserSettings{}, fmt.Errorf("load settings: %w", err)
	}

	if s.cache != nil {
		s.cache.Set(userID, settings)
	}
	return settings, nil
}

func (s *SettingsService) Update(ctx context.Context, userID uuid.UUID, settings core.UserSettings) (core.UserSettings, error) {
	if err := settings.Validate(); err != nil {
		return core.UserSettings{}, err
	}
	if err := s.store.SaveSettings(ctx, userID, settings); err != nil {
		return core.UserSettings{}, err
	}
	if s.cache != nil {
		s.cache.Delete(userID)
	}

	slog.InfoContext(ctx, "User settings updated",
		"user_id", userID,
		"custom_period_active", settings.CustomPeriodActive,
		"custom_period_start_day", settings.CustomPeriodStartDay)

	return settings, nil
}
