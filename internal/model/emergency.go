package model

import "time"

type Emergency struct {
	ID                string         `json:"id"`
	Created           time.Time      `json:"created"`
	Updated           time.Time      `json:"updated"`
	System            string         `json:"system"`
	Subsystem         string         `json:"subsystem"`
	ThreatLevel       int            `json:"threatLevel"`
	Remarks           string         `json:"remarks,omitempty"`
	ClientRSIHandle   string         `json:"clientRsiHandle"`
	ClientDiscordID   string         `json:"clientDiscordId"`
	ClientID          string         `json:"clientId"`
	Status            int            `json:"status"`
	StatusDescription string         `json:"statusDescription,omitempty"`
	RespondingTeam    RespondingTeam `json:"respondingTeam"`
	IsComplete        bool           `json:"isComplete"`
	Rating            int            `json:"rating,omitempty"`
}

type RespondingTeam struct {
	MaxMembers int          `json:"maxMembers"`
	Staff      []TeamMember `json:"staff"`
}

type TeamMember struct {
	ID            string `json:"id"`
	DiscordID     string `json:"discordId"`
	DiscordHandle string `json:"discordHandle"`
	RSIHandle     string `json:"rsiHandle"`
}

type NewEmergency struct {
	System          string `json:"system"`
	Subsystem       string `json:"subsystem"`
	ThreatLevel     int    `json:"threatLevel"`
	Remarks         string `json:"remarks,omitempty"`
	ClientRSIHandle string `json:"clientRsiHandle,omitempty"`
	ClientDiscordID string `json:"clientDiscordId,omitempty"`
}

type ClientType int

const (
	ClientTypeClientPortal ClientType = iota
	ClientTypeStaffPortal
	ClientTypeBot
)

type Deployment struct {
	ID         string     `json:"id"`
	Version    string     `json:"version"`
	ClientType ClientType `json:"clientType"`
	Created    time.Time  `json:"created"`
}

// EmergencyStatusUpdate is applied by dispatch tooling; completing an
// emergency releases the client's active emergency slot.
type EmergencyStatusUpdate struct {
	Status            int          `json:"status"`
	StatusDescription string       `json:"statusDescription,omitempty"`
	IsComplete        bool         `json:"isComplete"`
	Staff             []TeamMember `json:"staff,omitempty"`
}
