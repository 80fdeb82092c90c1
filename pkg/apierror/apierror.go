package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure at the transport boundary. Callers branch on the
// kind, never on raw status codes.
type Kind string

const (
	KindUnauthenticated  Kind = "UNAUTHENTICATED"
	KindTransient        Kind = "TRANSIENT"
	KindValidationFailed Kind = "VALIDATION_FAILED"
	KindBlocked          Kind = "BLOCKED"
)

type APIError struct {
	Kind       Kind   `json:"kind"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}

	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func New(kind Kind, code string, message string, details string, status int) *APIError {
	return &APIError{Kind: kind, Code: code, Message: message, Details: details, StatusCode: status}
}

func Unauthenticated(message string) *APIError {
	return New(KindUnauthenticated, "UNAUTHENTICATED", message, "", http.StatusUnauthorized)
}

func Transient(code string, message string, status int) *APIError {
	return New(KindTransient, code, message, "", status)
}

func Validation(message string, details string) *APIError {
	return New(KindValidationFailed, "VALIDATION_FAILED", message, details, http.StatusBadRequest)
}

// FromStatus maps a failed remote envelope to a tagged error. Only 401 means
// the credential was rejected; a 403 from an ordinary call is a refusal of
// the action, reported as KindBlocked.
func FromStatus(status int, code string, message string) *APIError {
	if code == "" {
		code = http.StatusText(status)
	}

	switch {
	case status == http.StatusUnauthorized:
		return New(KindUnauthenticated, code, message, "", status)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return New(KindValidationFailed, code, message, "", status)
	case status == http.StatusForbidden || status == http.StatusLocked:
		return New(KindBlocked, code, message, "", status)
	default:
		return New(KindTransient, code, message, "", status)
	}
}

// FromCredentialStatus maps a failure of a call that presents a credential
// (token exchange, sign in, realtime handshake). There both 401 and 403 mean
// the credential itself was rejected.
func FromCredentialStatus(status int, code string, message string) *APIError {
	if status == http.StatusForbidden {
		if code == "" {
			code = http.StatusText(status)
		}
		return New(KindUnauthenticated, code, message, "", status)
	}
	return FromStatus(status, code, message)
}

// AsCredentialRejection re-tags a 403 carried by err as KindUnauthenticated.
// Other errors are returned unchanged.
func AsCredentialRejection(err error) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusForbidden {
		return err
	}

	return New(KindUnauthenticated, apiErr.Code, apiErr.Message, apiErr.Details, apiErr.StatusCode)
}

// KindOf reports the kind of err, or KindTransient for untagged errors such as
// network failures.
func KindOf(err error) Kind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}

	return KindTransient
}

func IsKind(err error, kind Kind) bool {
	if err == nil {
		return false
	}

	return KindOf(err) == kind
}

// StatusOf returns the remote status code carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}

	return 0
}
