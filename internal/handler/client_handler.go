package handler

import (
	"net/http"
	"strconv"

	"medrunner-portal/internal/middleware"
	"medrunner-portal/internal/model"
	"medrunner-portal/internal/service"
	"medrunner-portal/pkg/apierror"
)

type ClientHandler struct {
	service *service.PersonService
}

func NewClientHandler(service *service.PersonService) *ClientHandler {
	return &ClientHandler{service: service}
}

func (h *ClientHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	person, err := h.service.Get(r.Context(), claims.PersonID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, person)
}

func (h *ClientHandler) Link(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	var payload model.LinkRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	person, err := h.service.LinkHandle(r.Context(), claims.PersonID, payload.RSIHandle)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, person)
}

func (h *ClientHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	var payload model.UpdateSettingsRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	if _, err := h.service.UpdateSettings(r.Context(), claims.PersonID, payload.ClientPortalPreferencesBlob); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"updated": true})
}

func (h *ClientHandler) Blocked(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	status, err := h.service.BlockStatus(r.Context(), claims.PersonID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, status)
}

func (h *ClientHandler) History(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, apierror.Validation("limit must be a positive integer", "limit"))
			return
		}
		limit = parsed
	}

	page, err := h.service.History(r.Context(), claims.PersonID, limit, r.URL.Query().Get("paginationToken"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, page)
}

func (h *ClientHandler) UserBlocks(w http.ResponseWriter, r *http.Request) {
	reports, err := h.service.LookUpUserBlocks(r.Context(), r.URL.Query().Get("rsiHandle"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, reports)
}

func (h *ClientHandler) OrgBlocks(w http.ResponseWriter, r *http.Request) {
	reports, err := h.service.LookUpOrgBlocks(r.Context(), r.URL.Query().Get("orgSid"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, reports)
}

func requireClaims(w http.ResponseWriter, r *http.Request) (*model.AuthClaims, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, apierror.Unauthenticated("authentication required"))
		return nil, false
	}
	return claims, true
}
