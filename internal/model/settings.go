package model

type MessageNotification int

const (
	MessageNotificationAll MessageNotification = iota
	MessageNotificationPing
	MessageNotificationOff
)

func (m MessageNotification) Valid() bool {
	return m >= MessageNotificationAll && m <= MessageNotificationOff
}

type DateFormatSetting int

const (
	DateFormatAuto DateFormatSetting = iota
	DateFormatDMY
	DateFormatMDY
	DateFormatYMD
)

func (d DateFormatSetting) Valid() bool {
	return d >= DateFormatAuto && d <= DateFormatYMD
}

// SyncedSettings is the user preference record stored server side as a
// serialized blob.
type SyncedSettings struct {
	HideEmergencyRulesModal     bool                `json:"hideEmergencyRulesModal"`
	GlobalNotifications         bool                `json:"globalNotifications"`
	EmergencyUpdateNotification bool                `json:"emergencyUpdateNotification"`
	CustomSoundNotification     bool                `json:"customSoundNotification"`
	ChatMessageNotification     MessageNotification `json:"chatMessageNotification"`
	GlobalAnalytics             bool                `json:"globalAnalytics"`
	SelectedLanguage            string              `json:"selectedLanguage,omitempty"`
	LastConfirmedWarningID      string              `json:"lastConfirmedWarningId,omitempty"`
	Hour12FormatingPreference   *bool               `json:"hour12FormatingPreference,omitempty"`
	DateFormatingPreference     DateFormatSetting   `json:"dateFormatingPreference"`
	ShortDateFormatPreference   bool                `json:"shortDateFormatPreference"`
}
