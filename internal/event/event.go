package event

type Type string

const (
	TypeSessionChanged  Type = "session.changed"
	TypeSessionReset    Type = "session.reset"
	TypeOrgSettings     Type = "org.settings"
	TypeConnectionState Type = "realtime.state"
	TypeStatusChanged   Type = "status.changed"
	TypeInstanceProbe   Type = "instance.probe"
	TypeInstanceExists  Type = "instance.exists"

	// Published by the development server; the hub fans these out to
	// connections subscribed to the message topic.
	TypeHubInvocation Type = "hub.invocation"
)

type Event struct {
	ID        string `json:"id"`
	Type      Type   `json:"type"`
	Payload   any    `json:"payload"`
	Timestamp string `json:"timestamp"`
	ActorID   string `json:"actor_id,omitempty"` // Instance that published the event
}

type Bus interface {
	Publish(e Event)
	Subscribe(types ...Type) (<-chan Event, func()) // Returns channel and unsubscribe function
}
