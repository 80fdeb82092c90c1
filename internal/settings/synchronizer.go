package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"medrunner-portal/internal/model"
	"medrunner-portal/internal/session"
	"medrunner-portal/pkg/apierror"
)

// Uploader stores the whole preferences blob remotely.
type Uploader interface {
	UpdateSettings(ctx context.Context, blob string) error
}

type Synchronizer struct {
	uploader Uploader
	session  *session.Store

	mu       sync.Mutex
	migrated map[string]struct{}
}

func NewSynchronizer(uploader Uploader, sessions *session.Store) *Synchronizer {
	return &Synchronizer{
		uploader: uploader,
		session:  sessions,
		migrated: map[string]struct{}{},
	}
}

// MigrateLegacyIfNeeded uploads the legacy preferences as a blob when the
// profile has legacy preferences and no blob yet. It uploads at most once per
// user; later calls are no-ops and report false.
func (s *Synchronizer) MigrateLegacyIfNeeded(ctx context.Context, profile model.Person) (bool, error) {
	if profile.IsZero() || profile.ClientPortalPreferencesBlob != "" || len(profile.ClientPortalPreferences) == 0 {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, done := s.migrated[profile.ID]; done {
		return false, nil
	}

	record := FromLegacy(profile.ClientPortalPreferences)
	blob, err := Serialize(record)
	if err != nil {
		return false, err
	}

	if err := s.uploader.UpdateSettings(ctx, blob); err != nil {
		return false, fmt.Errorf("upload migrated settings: %w", err)
	}
	s.migrated[profile.ID] = struct{}{}

	if current := s.session.Snapshot(); current.IsAuthenticated && current.User.ID == profile.ID {
		s.session.SetPreferencesBlob(blob, record)
	}

	slog.Info("legacy preferences migrated", "user_id", profile.ID)
	return true, nil
}

// Persist merges partial over the current record and uploads the merged
// record as a whole. A nil value unsets the key so it falls back to its
// default. Unknown keys or malformed values are rejected before any upload.
func (s *Synchronizer) Persist(ctx context.Context, partial map[string]any) (model.SyncedSettings, error) {
	current := s.session.Snapshot()
	if !current.IsAuthenticated {
		return model.SyncedSettings{}, model.ErrNoSession
	}

	merged := ToMap(current.Settings)
	for key, value := range partial {
		if !IsKnownKey(key) {
			return model.SyncedSettings{}, apierror.Validation("unknown setting", key)
		}
		if value == nil {
			delete(merged, key)
			continue
		}
		merged[key] = value
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return model.SyncedSettings{}, apierror.Validation("invalid setting value", err.Error())
	}

	record, err := decode(data, true)
	if err != nil {
		return model.SyncedSettings{}, err
	}

	blob := string(data)
	if err := s.uploader.UpdateSettings(ctx, blob); err != nil {
		return model.SyncedSettings{}, fmt.Errorf("upload settings: %w", err)
	}

	s.session.SetPreferencesBlob(blob, record)
	return record, nil
}
