package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"medrunner-portal/internal/model"
	"medrunner-portal/internal/service"
)

type OrgHandler struct {
	service *service.OrgService
}

func NewOrgHandler(service *service.OrgService) *OrgHandler {
	return &OrgHandler{service: service}
}

func (h *OrgHandler) Public(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, h.service.Public())
}

// DevHandler drives server-side changes that real dispatch tooling would
// make, so a portal can be exercised end to end.
type DevHandler struct {
	org         *service.OrgService
	persons     *service.PersonService
	emergencies *service.EmergencyService
}

func NewDevHandler(org *service.OrgService, persons *service.PersonService, emergencies *service.EmergencyService) *DevHandler {
	return &DevHandler{org: org, persons: persons, emergencies: emergencies}
}

func (h *DevHandler) UpdateOrgSettings(w http.ResponseWriter, r *http.Request) {
	var payload model.PublicOrgSettings
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	if err := h.org.UpdatePublic(payload); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, h.org.Public())
}

func (h *DevHandler) CreateDeployment(w http.ResponseWriter, r *http.Request) {
	var payload model.Deployment
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	deployment, err := h.org.AnnounceDeployment(payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, deployment)
}

func (h *DevHandler) AddBlock(w http.ResponseWriter, r *http.Request) {
	var payload model.BlockReport
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	report, err := h.persons.AddBlock(r.Context(), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, report)
}

func (h *DevHandler) UpdateEmergency(w http.ResponseWriter, r *http.Request) {
	var payload model.EmergencyStatusUpdate
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	emergency, err := h.emergencies.UpdateStatus(r.Context(), chi.URLParam(r, "id"), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, emergency)
}
