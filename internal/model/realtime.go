package model

import "encoding/json"

// ConnectionState is the health of the single realtime connection.
type ConnectionState int

const (
	ConnectionNotStarted ConnectionState = iota
	ConnectionHealthy
	ConnectionReconnecting
	ConnectionDisconnected
)

func (s ConnectionState) String() string {
	switch s {
	case ConnectionNotStarted:
		return "not_started"
	case ConnectionHealthy:
		return "healthy"
	case ConnectionReconnecting:
		return "reconnecting"
	case ConnectionDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// SessionReset is published when the session is cleared. Epoch counts
// resets; a connection opened under an older epoch belongs to a cleared
// session.
type SessionReset struct {
	Epoch uint64 `json:"epoch"`
}

// Realtime event targets emitted by the hub.
const (
	TargetPersonUpdate      = "PersonUpdate"
	TargetOrgSettingsUpdate = "OrgSettingsUpdate"
	TargetDeploymentCreate  = "DeploymentCreate"
	TargetEmergencyUpdate   = "EmergencyUpdate"
)

const (
	FrameInvocation = 1
	FramePing       = 6
	FrameClose      = 7
)

// Frame is one message on the realtime connection.
type Frame struct {
	Type      int               `json:"type"`
	Target    string            `json:"target,omitempty"`
	Arguments []json.RawMessage `json:"arguments,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// Hub topics. A connection's topics are fixed when it is accepted.
const (
	TopicBroadcast         = "broadcast"
	topicPersonPrefix      = "person:"
	topicEmergenciesPrefix = "emergencies:"
)

func TopicPerson(personID string) string {
	return topicPersonPrefix + personID
}

// TopicEmergencies carries emergency events for a client; only linked
// connections subscribe to it.
func TopicEmergencies(personID string) string {
	return topicEmergenciesPrefix + personID
}

// HubMessage is a frame addressed to every connection on Topic.
type HubMessage struct {
	Topic string `json:"topic"`
	Frame Frame  `json:"frame"`
}
