package service

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"medrunner-portal/internal/model"
	"medrunner-portal/pkg/apierror"
)

// OrgService holds the organization-wide settings of the development server.
type OrgService struct {
	mu        sync.RWMutex
	public    model.PublicOrgSettings
	publisher *Publisher
	now       func() time.Time
}

// DefaultPublicOrgSettings enables everything the portal gates on.
func DefaultPublicOrgSettings() model.PublicOrgSettings {
	return model.PublicOrgSettings{
		Status:                 1,
		EmergenciesEnabled:     true,
		AnonymousAlertsEnabled: false,
		RegistrationEnabled:    true,
	}
}

func NewOrgService(initial model.PublicOrgSettings, publisher *Publisher) *OrgService {
	return &OrgService{
		public:    initial,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *OrgService) Public() model.PublicOrgSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.public
}

// UpdatePublic replaces the public settings and broadcasts them.
func (s *OrgService) UpdatePublic(public model.PublicOrgSettings) error {
	s.mu.Lock()
	s.public = public
	s.mu.Unlock()

	return s.publisher.Invoke(model.TopicBroadcast, model.TargetOrgSettingsUpdate, model.OrgSettings{Public: &public})
}

// AnnounceDeployment broadcasts a new client build.
func (s *OrgService) AnnounceDeployment(d model.Deployment) (model.Deployment, error) {
	d.Version = strings.TrimSpace(d.Version)
	if d.Version == "" {
		return model.Deployment{}, apierror.Validation("version is required", "version")
	}

	d.ID = uuid.NewString()
	d.Created = s.now()
	if err := s.publisher.Invoke(model.TopicBroadcast, model.TargetDeploymentCreate, d); err != nil {
		return model.Deployment{}, err
	}
	return d, nil
}
