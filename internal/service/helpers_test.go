package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"medrunner-portal/internal/event"
	"medrunner-portal/internal/model"
	"medrunner-portal/internal/repository"
)

// Tokens are checked against the wall clock by the memory repository.
var testNow = time.Now().UTC().Truncate(time.Second)

type fixture struct {
	bus         *event.InMemoryBus
	persons     *repository.MemoryPersonRepository
	tokens      *repository.MemoryTokenRepository
	emergencies *repository.MemoryEmergencyRepository
	blocks      *repository.MemoryBlockRepository
	auth        *AuthService
	people      *PersonService
	dispatch    *EmergencyService
	org         *OrgService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		bus:         event.NewBus(),
		persons:     repository.NewMemoryPersonRepository(),
		tokens:      repository.NewMemoryTokenRepository(),
		emergencies: repository.NewMemoryEmergencyRepository(),
		blocks:      repository.NewMemoryBlockRepository(),
	}
	publisher := NewPublisher(f.bus)
	clock := func() time.Time { return testNow }

	f.auth = NewAuthService(f.persons, f.tokens, "test-secret", 15*time.Minute, 24*time.Hour)
	f.auth.now = clock
	f.people = NewPersonService(f.persons, f.emergencies, f.blocks, publisher)
	f.people.now = clock
	f.dispatch = NewEmergencyService(f.persons, f.emergencies, publisher)
	f.dispatch.now = clock
	f.org = NewOrgService(DefaultPublicOrgSettings(), publisher)
	f.org.now = clock
	return f
}

func (f *fixture) person(t *testing.T, discordID string, handle string) model.Person {
	t.Helper()
	p := model.Person{ID: "p-" + discordID, DiscordID: discordID, Active: true, RSIHandle: handle, Created: testNow, Updated: testNow}
	require.NoError(t, f.persons.Create(context.Background(), p))
	return p
}

func (f *fixture) subscribe(t *testing.T) <-chan event.Event {
	t.Helper()
	events, unsubscribe := f.bus.Subscribe(event.TypeHubInvocation)
	t.Cleanup(unsubscribe)
	return events
}

func nextMessage(t *testing.T, events <-chan event.Event) model.HubMessage {
	t.Helper()
	select {
	case e := <-events:
		msg, ok := e.Payload.(model.HubMessage)
		require.True(t, ok, "unexpected payload %T", e.Payload)
		return msg
	case <-time.After(time.Second):
		t.Fatal("no hub invocation published")
		return model.HubMessage{}
	}
}

func decodeArg[T any](t *testing.T, msg model.HubMessage) T {
	t.Helper()
	require.Len(t, msg.Frame.Arguments, 1)
	var out T
	require.NoError(t, json.Unmarshal(msg.Frame.Arguments[0], &out))
	return out
}
