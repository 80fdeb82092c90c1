package localstore

import (
	"strconv"
	"strings"
	"time"
)

// Keys of locally persisted state. Values are plain strings.
const (
	KeyAccessTokenExpiration  = "accessTokenExpiration"
	KeyRefreshTokenExpiration = "refreshTokenExpiration"
	KeyDarkMode               = "darkMode"
	KeyDiscordOpenWeb         = "isDiscordOpenWeb"
	KeySelectedPageSize       = "selectedPageSize"
	KeyDebugLoggerEnabled     = "isDebugLoggerEnabled"
	KeyLanguage               = "language"
)

// Store is the persisted key/value state shared by every instance of the
// client running for the same user.
type Store interface {
	Get(key string) (string, bool)
	Set(key string, value string) error
	Remove(key string) error
}

// GetBool returns the boolean stored under key and whether it was present.
func GetBool(s Store, key string) (value bool, ok bool) {
	raw, exists := s.Get(key)
	if !exists {
		return false, false
	}

	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false, false
	}

	return v, true
}

func SetBool(s Store, key string, value bool) error {
	return s.Set(key, strconv.FormatBool(value))
}

// GetTime returns the timestamp stored under key. Missing or malformed values
// report ok=false.
func GetTime(s Store, key string) (time.Time, bool) {
	raw, exists := s.Get(key)
	if !exists {
		return time.Time{}, false
	}

	v, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, false
	}

	return v, true
}

func SetTime(s Store, key string, value time.Time) error {
	return s.Set(key, value.UTC().Format(time.RFC3339Nano))
}
