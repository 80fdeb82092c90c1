package settings

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"medrunner-portal/internal/event"
	"medrunner-portal/internal/model"
	"medrunner-portal/internal/session"
	"medrunner-portal/pkg/apierror"
)

type mockUploader struct {
	mock.Mock
}

func (m *mockUploader) UpdateSettings(ctx context.Context, blob string) error {
	args := m.Called(ctx, blob)
	return args.Error(0)
}

func newAuthenticated(t *testing.T, profile model.Person) *session.Store {
	t.Helper()

	store := session.NewStore(ApplyFromBlob, event.NewBus())
	_, err := store.PopulateFromUserFetch(profile)
	require.NoError(t, err)
	return store
}

func legacyProfile() model.Person {
	return model.Person{
		ID:        "p1",
		DiscordID: "d1",
		ClientPortalPreferences: map[string]any{
			"globalNotifications": false,
			"selectedLanguage":    "fr-FR",
		},
	}
}

func TestMigrateLegacyIsIdempotent(t *testing.T) {
	profile := legacyProfile()
	sessions := newAuthenticated(t, profile)
	uploader := new(mockUploader)
	uploader.On("UpdateSettings", mock.Anything, mock.Anything).Return(nil).Once()
	synchronizer := NewSynchronizer(uploader, sessions)

	migrated, err := synchronizer.MigrateLegacyIfNeeded(context.Background(), profile)
	require.NoError(t, err)
	assert.True(t, migrated)

	migrated, err = synchronizer.MigrateLegacyIfNeeded(context.Background(), profile)
	require.NoError(t, err)
	assert.False(t, migrated)

	uploader.AssertNumberOfCalls(t, "UpdateSettings", 1)

	snapshot := sessions.Snapshot()
	assert.False(t, snapshot.Settings.GlobalNotifications)
	assert.Equal(t, "fr-FR", snapshot.Settings.SelectedLanguage)
	assert.NotEmpty(t, snapshot.User.ClientPortalPreferencesBlob)
}

func TestMigrateLegacyConcurrentCallsUploadOnce(t *testing.T) {
	profile := legacyProfile()
	uploader := new(mockUploader)
	uploader.On("UpdateSettings", mock.Anything, mock.Anything).Return(nil)
	synchronizer := NewSynchronizer(uploader, newAuthenticated(t, profile))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = synchronizer.MigrateLegacyIfNeeded(context.Background(), profile)
		}()
	}
	wg.Wait()

	uploader.AssertNumberOfCalls(t, "UpdateSettings", 1)
}

func TestMigrateLegacySkipsWhenBlobExists(t *testing.T) {
	profile := legacyProfile()
	profile.ClientPortalPreferencesBlob = `{"globalNotifications":true}`
	uploader := new(mockUploader)
	synchronizer := NewSynchronizer(uploader, newAuthenticated(t, profile))

	migrated, err := synchronizer.MigrateLegacyIfNeeded(context.Background(), profile)
	require.NoError(t, err)
	assert.False(t, migrated)
	uploader.AssertNotCalled(t, "UpdateSettings", mock.Anything, mock.Anything)
}

func TestMigrateLegacyRetriesAfterFailure(t *testing.T) {
	profile := legacyProfile()
	uploader := new(mockUploader)
	uploader.On("UpdateSettings", mock.Anything, mock.Anything).Return(errors.New("offline")).Once()
	uploader.On("UpdateSettings", mock.Anything, mock.Anything).Return(nil).Once()
	synchronizer := NewSynchronizer(uploader, newAuthenticated(t, profile))

	_, err := synchronizer.MigrateLegacyIfNeeded(context.Background(), profile)
	require.Error(t, err)

	migrated, err := synchronizer.MigrateLegacyIfNeeded(context.Background(), profile)
	require.NoError(t, err)
	assert.True(t, migrated)
	uploader.AssertNumberOfCalls(t, "UpdateSettings", 2)
}

func TestPersistUploadsMergedWhole(t *testing.T) {
	profile := model.Person{ID: "p1", ClientPortalPreferencesBlob: `{"selectedLanguage":"fr-FR","globalAnalytics":false}`}
	sessions := newAuthenticated(t, profile)

	var uploaded string
	uploader := new(mockUploader)
	uploader.On("UpdateSettings", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		uploaded = args.String(1)
	}).Return(nil).Once()
	synchronizer := NewSynchronizer(uploader, sessions)

	record, err := synchronizer.Persist(context.Background(), map[string]any{
		KeyChatMessageNotification: int(model.MessageNotificationPing),
		KeySelectedLanguage:        nil,
	})
	require.NoError(t, err)

	assert.Equal(t, model.MessageNotificationPing, record.ChatMessageNotification)
	assert.Equal(t, "", record.SelectedLanguage)
	assert.False(t, record.GlobalAnalytics)

	// The whole record is uploaded, minus the unset key.
	assert.Contains(t, uploaded, `"globalAnalytics":false`)
	assert.Contains(t, uploaded, `"globalNotifications":true`)
	assert.NotContains(t, uploaded, KeySelectedLanguage)

	assert.Equal(t, record, sessions.Snapshot().Settings)
	assert.Equal(t, uploaded, sessions.Snapshot().User.ClientPortalPreferencesBlob)
}

func TestPersistRejectsBadInput(t *testing.T) {
	uploader := new(mockUploader)
	synchronizer := NewSynchronizer(uploader, newAuthenticated(t, model.Person{ID: "p1"}))

	_, err := synchronizer.Persist(context.Background(), map[string]any{"notASetting": true})
	assert.True(t, apierror.IsKind(err, apierror.KindValidationFailed))

	_, err = synchronizer.Persist(context.Background(), map[string]any{KeyGlobalNotifications: "sometimes"})
	assert.True(t, apierror.IsKind(err, apierror.KindValidationFailed))

	_, err = synchronizer.Persist(context.Background(), map[string]any{KeyChatMessageNotification: 7})
	assert.True(t, apierror.IsKind(err, apierror.KindValidationFailed))

	uploader.AssertNotCalled(t, "UpdateSettings", mock.Anything, mock.Anything)
}

func TestPersistRequiresSession(t *testing.T) {
	synchronizer := NewSynchronizer(new(mockUploader), session.NewStore(ApplyFromBlob, event.NewBus()))

	_, err := synchronizer.Persist(context.Background(), map[string]any{KeyGlobalAnalytics: false})
	assert.ErrorIs(t, err, model.ErrNoSession)
}
