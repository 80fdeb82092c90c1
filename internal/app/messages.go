package app

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// Message keys resolved by the UI translation tables.
const (
	MsgGeneric             = "error_generic"
	MsgRateLimit           = "error_rateLimit"
	MsgBlockedUser         = "error_blockedUser"
	MsgFeatureDisabled     = "error_featureDisabled"
	MsgGlobalLoading       = "error_globalLoading"
	MsgAppInitialization   = "error_appInitialization"
	MsgRealtimeUnavailable = "error_wsDisconnected"
)

// ErrorString composes the message shown for a failed call. A custom message
// wins over the status specific default.
func ErrorString(statusCode int, customMessage string) string {
	code := "internal"
	if statusCode != 0 {
		code = strconv.Itoa(statusCode)
	}

	if customMessage != "" {
		return fmt.Sprintf("%s (%s)", customMessage, code)
	}

	message := MsgGeneric
	switch statusCode {
	case http.StatusTooManyRequests:
		message = MsgRateLimit
	case http.StatusForbidden:
		message = MsgBlockedUser
	case http.StatusLocked:
		message = MsgFeatureDisabled
	}

	return fmt.Sprintf("%s (%s)", message, code)
}

// SelectLanguage picks the UI language: the synced setting, then the
// preferred locale, then any locale with the same base language, then en-US.
func SelectLanguage(synced string, preferred string, available []string) string {
	if synced != "" {
		return synced
	}

	for _, locale := range available {
		if locale == preferred {
			return locale
		}
	}

	base, _, _ := strings.Cut(preferred, "-")
	if base != "" {
		for _, locale := range available {
			if strings.HasPrefix(locale, base) {
				return locale
			}
		}
	}

	return "en-US"
}
