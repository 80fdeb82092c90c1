package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"medrunner-portal/internal/model"
	"medrunner-portal/pkg/apierror"
)

const maxBulkEmergencies = 100

type EmergencyService struct {
	persons     PersonStore
	emergencies EmergencyStore
	publisher   *Publisher
	now         func() time.Time
}

func NewEmergencyService(persons PersonStore, emergencies EmergencyStore, publisher *Publisher) *EmergencyService {
	return &EmergencyService{
		persons:     persons,
		emergencies: emergencies,
		publisher:   publisher,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Create files an emergency for a linked client. A client holds at most one
// active emergency at a time.
func (s *EmergencyService) Create(ctx context.Context, personID string, req model.NewEmergency) (model.Emergency, error) {
	req.System = strings.TrimSpace(req.System)
	if req.System == "" {
		return model.Emergency{}, apierror.Validation("system is required", "system")
	}
	if req.ThreatLevel < 0 {
		return model.Emergency{}, apierror.Validation("threatLevel must not be negative", "threatLevel")
	}

	person, err := s.persons.FindByID(ctx, personID)
	if err != nil {
		return model.Emergency{}, err
	}
	if !person.IsLinked() {
		return model.Emergency{}, apierror.New(apierror.KindBlocked, "FORBIDDEN", "account is not linked", "", http.StatusForbidden)
	}
	if person.ActiveEmergency != "" {
		return model.Emergency{}, apierror.Validation("an emergency is already active", person.ActiveEmergency)
	}

	now := s.now()
	emergency := model.Emergency{
		ID:              uuid.NewString(),
		Created:         now,
		Updated:         now,
		System:          req.System,
		Subsystem:       strings.TrimSpace(req.Subsystem),
		ThreatLevel:     req.ThreatLevel,
		Remarks:         strings.TrimSpace(req.Remarks),
		ClientRSIHandle: person.RSIHandle,
		ClientDiscordID: person.DiscordID,
		ClientID:        person.ID,
		RespondingTeam:  model.RespondingTeam{MaxMembers: 4, Staff: []model.TeamMember{}},
	}

	if err := s.emergencies.Create(ctx, emergency); err != nil {
		return model.Emergency{}, err
	}

	updated, err := s.persons.SetActiveEmergency(ctx, person.ID, emergency.ID, now)
	if err != nil {
		return model.Emergency{}, err
	}

	slog.Info("emergency created", "emergency_id", emergency.ID, "person_id", person.ID, "system", emergency.System)
	s.publisher.emergencyUpdated(emergency)
	s.publisher.personUpdated(updated)
	return emergency, nil
}

// Get returns one of the caller's own emergencies.
func (s *EmergencyService) Get(ctx context.Context, personID string, id string) (model.Emergency, error) {
	emergency, err := s.emergencies.FindByID(ctx, id)
	if err != nil {
		return model.Emergency{}, err
	}
	if emergency.ClientID != personID {
		return model.Emergency{}, model.ErrEmergencyNotFound
	}
	return emergency, nil
}

// Bulk returns the caller's emergencies among ids; others are omitted.
func (s *EmergencyService) Bulk(ctx context.Context, personID string, ids []string) ([]model.Emergency, error) {
	if len(ids) == 0 {
		return nil, apierror.Validation("at least one id is required", "id")
	}
	if len(ids) > maxBulkEmergencies {
		return nil, apierror.Validation("too many ids", "id")
	}

	found, err := s.emergencies.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	owned := make([]model.Emergency, 0, len(found))
	for _, e := range found {
		if e.ClientID == personID {
			owned = append(owned, e)
		}
	}
	return owned, nil
}

// UpdateStatus applies a dispatch update. Completing the emergency frees the
// client's active slot and pushes the person change as well.
func (s *EmergencyService) UpdateStatus(ctx context.Context, id string, update model.EmergencyStatusUpdate) (model.Emergency, error) {
	emergency, err := s.emergencies.FindByID(ctx, id)
	if err != nil {
		return model.Emergency{}, err
	}
	if emergency.IsComplete {
		return model.Emergency{}, apierror.Validation("emergency is already complete", id)
	}

	now := s.now()
	emergency.Status = update.Status
	emergency.StatusDescription = strings.TrimSpace(update.StatusDescription)
	emergency.IsComplete = update.IsComplete
	emergency.Updated = now
	if update.Staff != nil {
		emergency.RespondingTeam.Staff = update.Staff
	}

	if err := s.emergencies.Update(ctx, emergency); err != nil {
		return model.Emergency{}, err
	}
	s.publisher.emergencyUpdated(emergency)

	if emergency.IsComplete {
		person, err := s.persons.SetActiveEmergency(ctx, emergency.ClientID, "", now)
		if err != nil && !errors.Is(err, model.ErrPersonNotFound) {
			return model.Emergency{}, err
		}
		if err == nil {
			s.publisher.personUpdated(person)
		}
	}

	return emergency, nil
}
