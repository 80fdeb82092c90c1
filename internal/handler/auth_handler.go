package handler

import (
	"errors"
	"net/http"
	"time"

	"medrunner-portal/internal/model"
	"medrunner-portal/internal/service"
)

// RefreshCookieName carries the refresh secret. It is HTTP-only, so clients
// can replay it but never read it.
const RefreshCookieName = "refreshToken"

type AuthHandler struct {
	service      *service.AuthService
	secureCookie bool
}

func NewAuthHandler(service *service.AuthService, secureCookie bool) *AuthHandler {
	return &AuthHandler{service: service, secureCookie: secureCookie}
}

func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var payload model.SignInRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	tokens, err := h.service.SignIn(r.Context(), payload.Code)
	if err != nil {
		writeError(w, err)
		return
	}

	h.setRefreshCookie(w, tokens)
	writeSuccess(w, http.StatusOK, tokens.Response())
}

// Exchange rotates the refresh cookie. A rejected cookie is cleared so the
// client stops replaying it.
func (h *AuthHandler) Exchange(w http.ResponseWriter, r *http.Request) {
	refreshToken := ""
	if cookie, err := r.Cookie(RefreshCookieName); err == nil {
		refreshToken = cookie.Value
	} else if !errors.Is(err, http.ErrNoCookie) {
		writeError(w, err)
		return
	}

	tokens, err := h.service.Exchange(r.Context(), refreshToken)
	if err != nil {
		h.clearRefreshCookie(w)
		writeError(w, err)
		return
	}

	h.setRefreshCookie(w, tokens)
	writeSuccess(w, http.StatusOK, tokens.Response())
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(RefreshCookieName); err == nil {
		if err := h.service.Logout(r.Context(), cookie.Value); err != nil {
			writeError(w, err)
			return
		}
	}

	h.clearRefreshCookie(w)
	writeSuccess(w, http.StatusOK, map[string]any{"loggedOut": true})
}

func (h *AuthHandler) setRefreshCookie(w http.ResponseWriter, tokens model.IssuedTokens) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    tokens.RefreshToken,
		Path:     "/",
		Expires:  tokens.RefreshTokenExpiresAt,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}
