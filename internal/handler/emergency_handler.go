package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"medrunner-portal/internal/model"
	"medrunner-portal/internal/service"
	"medrunner-portal/pkg/apierror"
)

type EmergencyHandler struct {
	service *service.EmergencyService
}

func NewEmergencyHandler(service *service.EmergencyService) *EmergencyHandler {
	return &EmergencyHandler{service: service}
}

func (h *EmergencyHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	var payload model.NewEmergency
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	emergency, err := h.service.Create(r.Context(), claims.PersonID, payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, emergency)
}

func (h *EmergencyHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, apierror.Validation("emergency id is required", "id"))
		return
	}

	emergency, err := h.service.Get(r.Context(), claims.PersonID, id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, emergency)
}

func (h *EmergencyHandler) Bulk(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	emergencies, err := h.service.Bulk(r.Context(), claims.PersonID, r.URL.Query()["id"])
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, emergencies)
}
