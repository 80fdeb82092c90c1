package model

import (
	"strings"
	"time"
)

type Person struct {
	ID                 string      `json:"id"`
	Created            time.Time   `json:"created"`
	Updated            time.Time   `json:"updated"`
	DiscordID          string      `json:"discordId"`
	RSIHandle          string      `json:"rsiHandle,omitempty"`
	Roles              int         `json:"roles"`
	Active             bool        `json:"active"`
	DeactivationReason int         `json:"deactivationReason"`
	PersonType         int         `json:"personType"`
	ActiveEmergency    string      `json:"activeEmergency,omitempty"`
	ClientStats        ClientStats `json:"clientStats"`

	// ClientPortalPreferencesBlob is the serialized SyncedSettings record.
	ClientPortalPreferencesBlob string `json:"clientPortalPreferencesBlob,omitempty"`

	// ClientPortalPreferences is the legacy unstructured representation,
	// superseded by the blob once migrated.
	ClientPortalPreferences map[string]any `json:"clientPortalPreferences,omitempty"`
}

type ClientStats struct {
	Missions MissionStats `json:"missions"`
}

type MissionStats struct {
	Success     int `json:"success"`
	Failed      int `json:"failed"`
	NoContact   int `json:"noContact"`
	Refused     int `json:"refused"`
	Aborted     int `json:"aborted"`
	ServerError int `json:"serverError"`
	Canceled    int `json:"canceled"`
}

// IsLinked reports whether the account is associated with an in-game handle.
func (p Person) IsLinked() bool {
	return strings.TrimSpace(p.RSIHandle) != ""
}

func (p Person) IsZero() bool {
	return p.ID == ""
}

type BlockStatus struct {
	Blocked bool `json:"blocked"`
}

type BlockReport struct {
	ID        string    `json:"id"`
	RSIHandle string    `json:"rsiHandle,omitempty"`
	OrgSID    string    `json:"orgSid,omitempty"`
	Reason    string    `json:"reason"`
	Created   time.Time `json:"created"`
}

type LinkRequest struct {
	RSIHandle string `json:"rsiHandle"`
}

type UpdateSettingsRequest struct {
	ClientPortalPreferencesBlob string `json:"clientPortalPreferencesBlob"`
}

type History struct {
	ID                         string    `json:"id"`
	Created                    time.Time `json:"created"`
	EmergencyID                string    `json:"emergencyId"`
	ClientID                   string    `json:"clientId"`
	EmergencyCreationTimestamp time.Time `json:"emergencyCreationTimestamp"`
}
