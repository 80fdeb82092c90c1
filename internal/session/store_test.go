package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medrunner-portal/internal/event"
	"medrunner-portal/internal/model"
)

func testDecoder(blob string) model.SyncedSettings {
	settings := model.SyncedSettings{GlobalNotifications: true}
	if blob == "lang:fr" {
		settings.SelectedLanguage = "fr-FR"
	}
	return settings
}

func emptySnapshot() Snapshot {
	return Snapshot{Settings: testDecoder("")}
}

func TestPopulateAuthenticatesAndDecodesSettings(t *testing.T) {
	store := NewStore(testDecoder, event.NewBus())

	snapshot, err := store.PopulateFromUserFetch(model.Person{ID: "p1", ClientPortalPreferencesBlob: "lang:fr"})
	require.NoError(t, err)

	assert.True(t, snapshot.IsAuthenticated)
	assert.Equal(t, "p1", snapshot.User.ID)
	assert.Equal(t, "fr-FR", snapshot.Settings.SelectedLanguage)
	assert.Equal(t, snapshot, store.Snapshot())
}

func TestPopulateRejectsEmptyProfile(t *testing.T) {
	store := NewStore(testDecoder, event.NewBus())

	_, err := store.PopulateFromUserFetch(model.Person{})
	assert.ErrorIs(t, err, model.ErrInvalidInput)
	assert.False(t, store.IsAuthenticated())
}

func TestResetClearsAllFieldsTogether(t *testing.T) {
	bus := event.NewBus()
	store := NewStore(testDecoder, bus)
	resets, unsubscribe := bus.Subscribe(event.TypeSessionReset)
	defer unsubscribe()

	_, err := store.PopulateFromUserFetch(model.Person{ID: "p1", RSIHandle: "Pilot", ClientPortalPreferencesBlob: "lang:fr"})
	require.NoError(t, err)
	store.MarkBlocked(true)

	store.Reset()

	assert.Equal(t, emptySnapshot(), store.Snapshot())
	e := <-resets
	assert.Equal(t, model.SessionReset{Epoch: 1}, e.Payload)
	assert.Equal(t, uint64(1), store.Epoch())

	// Reset of an empty session is still the empty session.
	store.Reset()
	assert.Equal(t, emptySnapshot(), store.Snapshot())
}

func TestOutOfOrderResponsesKeepNewestFetch(t *testing.T) {
	store := NewStore(testDecoder, event.NewBus())

	ticketA := store.BeginFetch()
	ticketB := store.BeginFetch()

	profileA := model.Person{ID: "p1", RSIHandle: "", DiscordID: "from-a"}
	profileB := model.Person{ID: "p1", RSIHandle: "Pilot", DiscordID: "from-b", ClientPortalPreferencesBlob: "lang:fr"}

	_, err := store.Populate(ticketB, profileB)
	require.NoError(t, err)

	current, err := store.Populate(ticketA, profileA)
	assert.ErrorIs(t, err, model.ErrStaleResponse)

	final := store.Snapshot()
	assert.Equal(t, final, current)
	assert.Equal(t, profileB, final.User)
	assert.Equal(t, "fr-FR", final.Settings.SelectedLanguage)
}

func TestPopulateChangeReportsReplacedState(t *testing.T) {
	store := NewStore(testDecoder, event.NewBus())
	_, err := store.PopulateFromUserFetch(model.Person{ID: "p1"})
	require.NoError(t, err)

	older := store.BeginFetch()
	newer := store.BeginFetch()
	linked := model.Person{ID: "p1", RSIHandle: "Pilot"}

	previous, current, err := store.PopulateChange(newer, linked)
	require.NoError(t, err)
	assert.False(t, previous.User.IsLinked())
	assert.True(t, current.User.IsLinked())

	// Only one fetch may observe the unlinked to linked transition.
	previous, current, err = store.PopulateChange(older, linked)
	assert.ErrorIs(t, err, model.ErrStaleResponse)
	assert.True(t, previous.User.IsLinked())
	assert.Equal(t, previous, current)
}

func TestResetInvalidatesInFlightFetches(t *testing.T) {
	store := NewStore(testDecoder, event.NewBus())

	ticket := store.BeginFetch()
	store.Reset()

	_, err := store.Populate(ticket, model.Person{ID: "p1"})
	assert.ErrorIs(t, err, model.ErrStaleResponse)
	assert.False(t, store.IsAuthenticated())

	_, err = store.PopulateFromUserFetch(model.Person{ID: "p1"})
	require.NoError(t, err)
	assert.True(t, store.IsAuthenticated())
}

func TestMarkBlockedIsIndependentOfAuthentication(t *testing.T) {
	store := NewStore(testDecoder, event.NewBus())

	store.MarkBlocked(true)
	assert.True(t, store.Snapshot().IsBlocked)
	assert.False(t, store.Snapshot().IsAuthenticated)

	_, err := store.PopulateFromUserFetch(model.Person{ID: "p1"})
	require.NoError(t, err)
	assert.True(t, store.Snapshot().IsBlocked)
}

func TestOrgSettingsStoredVerbatim(t *testing.T) {
	store := NewStore(testDecoder, event.NewBus())

	_, ok := store.OrgSettings()
	assert.False(t, ok)

	store.SetOrgSettings(model.PublicOrgSettings{EmergenciesEnabled: true, AnonymousAlertsEnabled: true, LocationsEnabled: []string{"Stanton"}})
	store.SetOrgSettings(model.PublicOrgSettings{EmergenciesEnabled: false})

	org, ok := store.OrgSettings()
	require.True(t, ok)
	assert.Equal(t, model.PublicOrgSettings{EmergenciesEnabled: false}, org)
}

func TestSubscribeStreamsChanges(t *testing.T) {
	store := NewStore(testDecoder, event.NewBus())
	changes, unsubscribe := store.Subscribe()
	defer unsubscribe()

	_, err := store.PopulateFromUserFetch(model.Person{ID: "p1"})
	require.NoError(t, err)
	store.Reset()

	first := <-changes
	second := <-changes
	assert.Equal(t, event.TypeSessionChanged, first.Type)
	assert.Equal(t, event.TypeSessionReset, second.Type)
}
