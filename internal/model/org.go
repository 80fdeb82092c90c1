package model

type OrgSettings struct {
	Public *PublicOrgSettings `json:"public,omitempty"`
}

type PublicOrgSettings struct {
	Status                 int              `json:"status"`
	EmergenciesEnabled     bool             `json:"emergenciesEnabled"`
	AnonymousAlertsEnabled bool             `json:"anonymousAlertsEnabled"`
	RegistrationEnabled    bool             `json:"registrationEnabled"`
	MessageOfTheDay        *MessageOfTheDay `json:"messageOfTheDay,omitempty"`
	LocationsEnabled       []string         `json:"locationsEnabled,omitempty"`
}

type MessageOfTheDay struct {
	ID          string `json:"id"`
	Message     string `json:"message"`
	DateCreated string `json:"dateCreated,omitempty"`
}
