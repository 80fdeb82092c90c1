package apierror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromStatus(t *testing.T) {
	cases := []struct {
		status int
		kind   Kind
	}{
		{http.StatusUnauthorized, KindUnauthenticated},
		{http.StatusForbidden, KindBlocked},
		{http.StatusBadRequest, KindValidationFailed},
		{http.StatusLocked, KindBlocked},
		{http.StatusTooManyRequests, KindTransient},
		{http.StatusInternalServerError, KindTransient},
	}

	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			err := FromStatus(tc.status, "", "failed")
			assert.Equal(t, tc.kind, err.Kind)
			assert.Equal(t, tc.status, err.StatusCode)
			assert.Equal(t, http.StatusText(tc.status), err.Code)
		})
	}
}

func TestCredentialRejections(t *testing.T) {
	assert.Equal(t, KindUnauthenticated, FromCredentialStatus(http.StatusForbidden, "", "revoked").Kind)
	assert.Equal(t, KindUnauthenticated, FromCredentialStatus(http.StatusUnauthorized, "", "expired").Kind)
	assert.Equal(t, KindTransient, FromCredentialStatus(http.StatusBadGateway, "", "upstream").Kind)

	forbidden := fmt.Errorf("exchange: %w", FromStatus(http.StatusForbidden, "FORBIDDEN", "account disabled"))
	retagged := AsCredentialRejection(forbidden)
	assert.True(t, IsKind(retagged, KindUnauthenticated))
	assert.Equal(t, http.StatusForbidden, StatusOf(retagged))
	assert.Equal(t, "FORBIDDEN: account disabled", retagged.Error())

	transient := Transient("NETWORK_ERROR", "timeout", 0)
	assert.Same(t, transient, AsCredentialRejection(transient))
	assert.NoError(t, AsCredentialRejection(nil))
}

func TestKindOfWrappedError(t *testing.T) {
	wrapped := fmt.Errorf("exchange: %w", Unauthenticated("refresh rejected"))

	assert.True(t, IsKind(wrapped, KindUnauthenticated))
	assert.Equal(t, http.StatusUnauthorized, StatusOf(wrapped))
	assert.Equal(t, KindTransient, KindOf(errors.New("dial tcp: connection refused")))
	assert.False(t, IsKind(nil, KindTransient))
}

func TestErrorString(t *testing.T) {
	assert.Equal(t, "VALIDATION_FAILED: unknown setting (fooBar)", Validation("unknown setting", "fooBar").Error())
	assert.Equal(t, "UNAUTHENTICATED: nope", Unauthenticated("nope").Error())

	var nilErr *APIError
	assert.Equal(t, "", nilErr.Error())
}
