package settings

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"medrunner-portal/internal/model"
	"medrunner-portal/pkg/apierror"
)

// Record keys as they appear in the stored blob.
const (
	KeyHideEmergencyRulesModal     = "hideEmergencyRulesModal"
	KeyGlobalNotifications         = "globalNotifications"
	KeyEmergencyUpdateNotification = "emergencyUpdateNotification"
	KeyCustomSoundNotification     = "customSoundNotification"
	KeyChatMessageNotification     = "chatMessageNotification"
	KeyGlobalAnalytics             = "globalAnalytics"
	KeySelectedLanguage            = "selectedLanguage"
	KeyLastConfirmedWarningID      = "lastConfirmedWarningId"
	KeyHour12FormatingPreference   = "hour12FormatingPreference"
	KeyDateFormatingPreference     = "dateFormatingPreference"
	KeyShortDateFormatPreference   = "shortDateFormatPreference"
)

var knownKeys = map[string]struct{}{
	KeyHideEmergencyRulesModal:     {},
	KeyGlobalNotifications:         {},
	KeyEmergencyUpdateNotification: {},
	KeyCustomSoundNotification:     {},
	KeyChatMessageNotification:     {},
	KeyGlobalAnalytics:             {},
	KeySelectedLanguage:            {},
	KeyLastConfirmedWarningID:      {},
	KeyHour12FormatingPreference:   {},
	KeyDateFormatingPreference:     {},
	KeyShortDateFormatPreference:   {},
}

// Defaults is the record used for every key missing from the blob.
func Defaults() model.SyncedSettings {
	return model.SyncedSettings{
		HideEmergencyRulesModal:     false,
		GlobalNotifications:         true,
		EmergencyUpdateNotification: true,
		CustomSoundNotification:     false,
		ChatMessageNotification:     model.MessageNotificationAll,
		GlobalAnalytics:             true,
		DateFormatingPreference:     model.DateFormatAuto,
	}
}

// IsKnownKey reports whether key is part of the record.
func IsKnownKey(key string) bool {
	_, ok := knownKeys[key]
	return ok
}

// ApplyFromBlob deserializes a stored blob. Unknown keys are dropped, missing
// or malformed keys fall back to their defaults, and a blob that is not a JSON
// object yields the defaults.
func ApplyFromBlob(raw string) model.SyncedSettings {
	record, err := decode([]byte(raw), false)
	if err != nil {
		slog.Warn("ignoring unreadable settings blob", "error", err)
		return Defaults()
	}
	return record
}

// Serialize encodes the full record.
func Serialize(record model.SyncedSettings) (string, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("encode settings: %w", err)
	}
	return string(data), nil
}

// ToMap returns the record keyed by blob key.
func ToMap(record model.SyncedSettings) map[string]any {
	data, err := json.Marshal(record)
	if err != nil {
		return map[string]any{}
	}

	out := map[string]any{}
	_ = json.Unmarshal(data, &out)
	return out
}

// FromLegacy converts the legacy unstructured preferences into a record.
// Unrecognised legacy keys are dropped.
func FromLegacy(legacy map[string]any) model.SyncedSettings {
	data, err := json.Marshal(legacy)
	if err != nil {
		return Defaults()
	}
	return ApplyFromBlob(string(data))
}

func decode(raw []byte, strict bool) (model.SyncedSettings, error) {
	record := Defaults()
	if len(strings.TrimSpace(string(raw))) == 0 {
		return record, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Defaults(), err
	}

	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if !IsKnownKey(key) {
			if strict {
				return Defaults(), apierror.Validation("unknown setting", key)
			}
			continue
		}

		single, _ := json.Marshal(map[string]json.RawMessage{key: fields[key]})
		candidate := record
		if err := json.Unmarshal(single, &candidate); err != nil || !valid(candidate) {
			if strict {
				return Defaults(), apierror.Validation("invalid setting value", key)
			}
			slog.Debug("setting fell back to default", "key", key)
			continue
		}
		record = candidate
	}

	return record, nil
}

func valid(record model.SyncedSettings) bool {
	return record.ChatMessageNotification.Valid() && record.DateFormatingPreference.Valid()
}
