package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"medrunner-portal/internal/model"
	"medrunner-portal/pkg/apierror"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

var handlePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,60}$`)

type PersonService struct {
	persons     PersonStore
	emergencies EmergencyStore
	blocks      BlockStore
	publisher   *Publisher
	now         func() time.Time
}

func NewPersonService(persons PersonStore, emergencies EmergencyStore, blocks BlockStore, publisher *Publisher) *PersonService {
	return &PersonService{
		persons:     persons,
		emergencies: emergencies,
		blocks:      blocks,
		publisher:   publisher,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *PersonService) Get(ctx context.Context, personID string) (model.Person, error) {
	return s.persons.FindByID(ctx, personID)
}

// LinkHandle associates an in-game handle with the account. The change is
// pushed to the person's connections; it does not alter any token already
// issued.
func (s *PersonService) LinkHandle(ctx context.Context, personID string, handle string) (model.Person, error) {
	handle = strings.TrimSpace(handle)
	if !handlePattern.MatchString(handle) {
		return model.Person{}, apierror.Validation("invalid rsi handle", "rsiHandle")
	}

	current, err := s.persons.FindByID(ctx, personID)
	if err != nil {
		return model.Person{}, err
	}
	if current.IsLinked() {
		if strings.EqualFold(current.RSIHandle, handle) {
			return current, nil
		}
		return model.Person{}, apierror.New(apierror.KindValidationFailed, "ALREADY_LINKED", "account is already linked", current.RSIHandle, http.StatusConflict)
	}

	updated, err := s.persons.SetRSIHandle(ctx, personID, handle, s.now())
	if err != nil {
		return model.Person{}, err
	}

	s.publisher.personUpdated(updated)
	return updated, nil
}

// UpdateSettings replaces the preferences blob wholesale. The blob must be a
// JSON object; its keys are the client's concern.
func (s *PersonService) UpdateSettings(ctx context.Context, personID string, blob string) (model.Person, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(blob), &fields); err != nil || fields == nil {
		return model.Person{}, apierror.Validation("preferences blob must be a JSON object", "clientPortalPreferencesBlob")
	}

	updated, err := s.persons.SetPreferencesBlob(ctx, personID, blob, s.now())
	if err != nil {
		return model.Person{}, err
	}

	s.publisher.personUpdated(updated)
	return updated, nil
}

// BlockStatus reports whether the person's handle appears on a block list.
// Unlinked accounts cannot be blocked by handle.
func (s *PersonService) BlockStatus(ctx context.Context, personID string) (model.BlockStatus, error) {
	person, err := s.persons.FindByID(ctx, personID)
	if err != nil {
		return model.BlockStatus{}, err
	}
	if !person.IsLinked() {
		return model.BlockStatus{}, nil
	}

	reports, err := s.blocks.ListByHandle(ctx, person.RSIHandle)
	if err != nil {
		return model.BlockStatus{}, err
	}
	return model.BlockStatus{Blocked: len(reports) > 0}, nil
}

func (s *PersonService) LookUpUserBlocks(ctx context.Context, handle string) ([]model.BlockReport, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return nil, apierror.Validation("rsiHandle is required", "rsiHandle")
	}
	return s.blocks.ListByHandle(ctx, handle)
}

func (s *PersonService) LookUpOrgBlocks(ctx context.Context, orgSID string) ([]model.BlockReport, error) {
	orgSID = strings.TrimSpace(orgSID)
	if orgSID == "" {
		return nil, apierror.Validation("orgSid is required", "orgSid")
	}
	return s.blocks.ListByOrg(ctx, orgSID)
}

func (s *PersonService) AddBlock(ctx context.Context, report model.BlockReport) (model.BlockReport, error) {
	report.RSIHandle = strings.TrimSpace(report.RSIHandle)
	report.OrgSID = strings.TrimSpace(report.OrgSID)
	if report.RSIHandle == "" && report.OrgSID == "" {
		return model.BlockReport{}, apierror.Validation("rsiHandle or orgSid is required", "")
	}

	report.ID = uuid.NewString()
	report.Created = s.now()
	if err := s.blocks.Add(ctx, report); err != nil {
		return model.BlockReport{}, err
	}
	return report, nil
}

// History pages the person's emergencies newest first. The continuation
// token is the offset of the next page.
func (s *PersonService) History(ctx context.Context, personID string, limit int, paginationToken string) (model.PaginatedResponse[model.History], error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	limit = min(limit, maxHistoryLimit)

	offset := 0
	if paginationToken != "" {
		parsed, err := strconv.Atoi(paginationToken)
		if err != nil || parsed < 0 {
			return model.PaginatedResponse[model.History]{}, apierror.Validation("invalid pagination token", "paginationToken")
		}
		offset = parsed
	}

	emergencies, total, err := s.emergencies.ListByClient(ctx, personID, limit, offset)
	if err != nil {
		return model.PaginatedResponse[model.History]{}, fmt.Errorf("list history: %w", err)
	}

	page := model.PaginatedResponse[model.History]{Data: make([]model.History, 0, len(emergencies))}
	for _, e := range emergencies {
		page.Data = append(page.Data, model.History{
			ID:                         e.ID,
			Created:                    e.Created,
			EmergencyID:                e.ID,
			ClientID:                   e.ClientID,
			EmergencyCreationTimestamp: e.Created,
		})
	}
	if next := offset + len(emergencies); next < total {
		page.PaginationToken = strconv.Itoa(next)
	}

	return page, nil
}
