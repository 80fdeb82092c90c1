package session

import (
	"fmt"
	"log/slog"
	"sync"

	"medrunner-portal/internal/event"
	"medrunner-portal/internal/model"
)

// Snapshot is an immutable copy of the session fields. The four fields are
// always read and written together.
type Snapshot struct {
	User            model.Person         `json:"user"`
	IsAuthenticated bool                 `json:"isAuthenticated"`
	IsBlocked       bool                 `json:"isBlocked"`
	Settings        model.SyncedSettings `json:"settings"`
}

// SettingsDecoder turns a stored preferences blob into a settings record. An
// empty blob must yield the defaults.
type SettingsDecoder func(blob string) model.SyncedSettings

// Ticket orders user fetches. A response is applied only if its ticket is
// newer than every ticket applied so far.
type Ticket uint64

type Store struct {
	decode SettingsDecoder
	bus    event.Bus

	mu      sync.RWMutex
	state   Snapshot
	org     *model.PublicOrgSettings
	issued  uint64
	applied uint64
	epoch   uint64
}

func NewStore(decode SettingsDecoder, bus event.Bus) *Store {
	s := &Store{decode: decode, bus: bus}
	s.state = s.emptyLocked()
	return s
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsAuthenticated
}

// BeginFetch issues a ticket for a user fetch about to be sent.
func (s *Store) BeginFetch() Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return Ticket(s.issued)
}

// Populate applies a fetched profile. Responses superseded by a newer applied
// fetch, or issued before the last reset, return model.ErrStaleResponse and
// leave the state untouched.
func (s *Store) Populate(ticket Ticket, profile model.Person) (Snapshot, error) {
	_, current, err := s.PopulateChange(ticket, profile)
	return current, err
}

// PopulateChange is Populate that also returns the state the profile
// replaced. The pair is taken under one lock, so of two fetches racing over
// the same transition only one observes it.
func (s *Store) PopulateChange(ticket Ticket, profile model.Person) (previous, current Snapshot, err error) {
	if profile.IsZero() {
		return Snapshot{}, Snapshot{}, fmt.Errorf("populate session: %w", model.ErrInvalidInput)
	}

	settings := s.decode(profile.ClientPortalPreferencesBlob)

	s.mu.Lock()
	if uint64(ticket) <= s.applied {
		current = s.state
		s.mu.Unlock()
		slog.Debug("discarding superseded user fetch", "ticket", ticket)
		return current, current, model.ErrStaleResponse
	}
	s.applied = uint64(ticket)
	previous = s.state
	s.state = Snapshot{
		User:            profile,
		IsAuthenticated: true,
		IsBlocked:       s.state.IsBlocked,
		Settings:        settings,
	}
	current = s.state
	s.mu.Unlock()

	s.publish(event.TypeSessionChanged, current)
	return previous, current, nil
}

// PopulateFromUserFetch applies a profile fetched outside the ticket protocol.
func (s *Store) PopulateFromUserFetch(profile model.Person) (Snapshot, error) {
	return s.Populate(s.BeginFetch(), profile)
}

// MarkBlocked records the block status fetched at session start.
func (s *Store) MarkBlocked(blocked bool) {
	s.mu.Lock()
	if s.state.IsBlocked == blocked {
		s.mu.Unlock()
		return
	}
	s.state.IsBlocked = blocked
	snapshot := s.state
	s.mu.Unlock()

	s.publish(event.TypeSessionChanged, snapshot)
}

// SetSettings replaces the synced settings record.
func (s *Store) SetSettings(settings model.SyncedSettings) {
	s.mu.Lock()
	s.state.Settings = settings
	snapshot := s.state
	s.mu.Unlock()

	s.publish(event.TypeSessionChanged, snapshot)
}

// SetPreferencesBlob records the blob now stored remotely together with the
// record it encodes.
func (s *Store) SetPreferencesBlob(blob string, settings model.SyncedSettings) {
	s.mu.Lock()
	if s.state.IsAuthenticated {
		s.state.User.ClientPortalPreferencesBlob = blob
	}
	s.state.Settings = settings
	snapshot := s.state
	s.mu.Unlock()

	s.publish(event.TypeSessionChanged, snapshot)
}

// Reset is the only way to clear the session. All four fields are cleared
// together and every outstanding fetch ticket is invalidated.
func (s *Store) Reset() {
	s.mu.Lock()
	s.state = s.emptyLocked()
	s.applied = s.issued
	s.epoch++
	epoch := s.epoch
	s.mu.Unlock()

	slog.Info("session reset", "epoch", epoch)
	s.publish(event.TypeSessionReset, model.SessionReset{Epoch: epoch})
}

// Epoch is the number of resets so far.
func (s *Store) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// SetOrgSettings stores the public org settings exactly as received.
func (s *Store) SetOrgSettings(public model.PublicOrgSettings) {
	s.mu.Lock()
	s.org = &public
	s.mu.Unlock()

	s.publish(event.TypeOrgSettings, public)
}

func (s *Store) OrgSettings() (model.PublicOrgSettings, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.org == nil {
		return model.PublicOrgSettings{}, false
	}
	return *s.org, true
}

// Subscribe streams session changes and resets.
func (s *Store) Subscribe() (<-chan event.Event, func()) {
	return s.bus.Subscribe(event.TypeSessionChanged, event.TypeSessionReset)
}

func (s *Store) emptyLocked() Snapshot {
	return Snapshot{Settings: s.decode("")}
}

func (s *Store) publish(t event.Type, payload any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(event.New(t, payload))
}
