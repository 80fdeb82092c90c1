package repository

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"medrunner-portal/internal/model"
)

// The memory repositories back the development server when no database URL
// is configured. They mirror the pgx repositories method for method.

type MemoryPersonRepository struct {
	mu        sync.RWMutex
	byID      map[string]model.Person
	byDiscord map[string]string
}

func NewMemoryPersonRepository() *MemoryPersonRepository {
	return &MemoryPersonRepository{
		byID:      map[string]model.Person{},
		byDiscord: map[string]string{},
	}
}

func (r *MemoryPersonRepository) FindByID(_ context.Context, id string) (model.Person, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[id]
	if !ok {
		return model.Person{}, model.ErrPersonNotFound
	}
	return clonePerson(p), nil
}

func (r *MemoryPersonRepository) FindByDiscordID(ctx context.Context, discordID string) (model.Person, error) {
	r.mu.RLock()
	id, ok := r.byDiscord[discordID]
	r.mu.RUnlock()
	if !ok {
		return model.Person{}, model.ErrPersonNotFound
	}
	return r.FindByID(ctx, id)
}

func (r *MemoryPersonRepository) Create(_ context.Context, p model.Person) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[p.ID]; exists {
		return ErrDuplicate
	}
	if _, exists := r.byDiscord[p.DiscordID]; exists {
		return ErrDuplicate
	}

	r.byID[p.ID] = clonePerson(p)
	r.byDiscord[p.DiscordID] = p.ID
	return nil
}

func (r *MemoryPersonRepository) SetRSIHandle(_ context.Context, id string, handle string, at time.Time) (model.Person, error) {
	return r.update(id, func(p *model.Person) {
		p.RSIHandle = handle
		p.Updated = at
	})
}

func (r *MemoryPersonRepository) SetPreferencesBlob(_ context.Context, id string, blob string, at time.Time) (model.Person, error) {
	return r.update(id, func(p *model.Person) {
		p.ClientPortalPreferencesBlob = blob
		p.ClientPortalPreferences = nil
		p.Updated = at
	})
}

func (r *MemoryPersonRepository) SetActiveEmergency(_ context.Context, id string, emergencyID string, at time.Time) (model.Person, error) {
	return r.update(id, func(p *model.Person) {
		p.ActiveEmergency = emergencyID
		p.Updated = at
	})
}

func (r *MemoryPersonRepository) update(id string, mutate func(*model.Person)) (model.Person, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byID[id]
	if !ok {
		return model.Person{}, model.ErrPersonNotFound
	}
	mutate(&p)
	r.byID[id] = p
	return clonePerson(p), nil
}

func clonePerson(p model.Person) model.Person {
	p.ClientPortalPreferences = maps.Clone(p.ClientPortalPreferences)
	return p
}

type memoryToken struct {
	personID  string
	expiresAt time.Time
}

type MemoryTokenRepository struct {
	mu     sync.Mutex
	tokens map[string]memoryToken
	now    func() time.Time
}

func NewMemoryTokenRepository() *MemoryTokenRepository {
	return &MemoryTokenRepository{tokens: map[string]memoryToken{}, now: time.Now}
}

func (r *MemoryTokenRepository) Store(_ context.Context, fingerprint string, personID string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[fingerprint] = memoryToken{personID: personID, expiresAt: expiresAt}
	return nil
}

func (r *MemoryTokenRepository) Validate(_ context.Context, fingerprint string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	token, ok := r.tokens[fingerprint]
	if !ok || !token.expiresAt.After(r.now()) {
		return "", model.ErrTokenNotFound
	}
	return token.personID, nil
}

func (r *MemoryTokenRepository) Revoke(_ context.Context, fingerprint string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, fingerprint)
	return nil
}

func (r *MemoryTokenRepository) RevokeAllForPerson(_ context.Context, personID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	maps.DeleteFunc(r.tokens, func(_ string, token memoryToken) bool {
		return token.personID == personID
	})
	return nil
}

func (r *MemoryTokenRepository) CleanExpired(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	before := len(r.tokens)
	now := r.now()
	maps.DeleteFunc(r.tokens, func(_ string, token memoryToken) bool {
		return !token.expiresAt.After(now)
	})
	return int64(before - len(r.tokens)), nil
}

type MemoryEmergencyRepository struct {
	mu          sync.RWMutex
	emergencies map[string]model.Emergency
}

func NewMemoryEmergencyRepository() *MemoryEmergencyRepository {
	return &MemoryEmergencyRepository{emergencies: map[string]model.Emergency{}}
}

func (r *MemoryEmergencyRepository) Create(_ context.Context, e model.Emergency) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.emergencies[e.ID]; exists {
		return ErrDuplicate
	}
	r.emergencies[e.ID] = cloneEmergency(e)
	return nil
}

func (r *MemoryEmergencyRepository) Update(_ context.Context, e model.Emergency) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.emergencies[e.ID]; !exists {
		return model.ErrEmergencyNotFound
	}
	r.emergencies[e.ID] = cloneEmergency(e)
	return nil
}

func (r *MemoryEmergencyRepository) FindByID(_ context.Context, id string) (model.Emergency, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.emergencies[id]
	if !ok {
		return model.Emergency{}, model.ErrEmergencyNotFound
	}
	return cloneEmergency(e), nil
}

func (r *MemoryEmergencyRepository) FindByIDs(_ context.Context, ids []string) ([]model.Emergency, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]model.Emergency, 0, len(ids))
	for _, id := range ids {
		if e, ok := r.emergencies[id]; ok {
			result = append(result, cloneEmergency(e))
		}
	}
	slices.SortStableFunc(result, func(a, b model.Emergency) int {
		return a.Created.Compare(b.Created)
	})
	return result, nil
}

func (r *MemoryEmergencyRepository) ListByClient(_ context.Context, clientID string, limit int, offset int) ([]model.Emergency, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	owned := make([]model.Emergency, 0)
	for _, e := range r.emergencies {
		if e.ClientID == clientID {
			owned = append(owned, e)
		}
	}
	slices.SortFunc(owned, func(a, b model.Emergency) int {
		if c := b.Created.Compare(a.Created); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	total := len(owned)
	if offset >= total {
		return []model.Emergency{}, total, nil
	}
	end := min(total, offset+limit)

	page := make([]model.Emergency, 0, end-offset)
	for _, e := range owned[offset:end] {
		page = append(page, cloneEmergency(e))
	}
	return page, total, nil
}

func cloneEmergency(e model.Emergency) model.Emergency {
	e.RespondingTeam.Staff = slices.Clone(e.RespondingTeam.Staff)
	return e
}

type MemoryBlockRepository struct {
	mu      sync.RWMutex
	reports []model.BlockReport
}

func NewMemoryBlockRepository() *MemoryBlockRepository {
	return &MemoryBlockRepository{}
}

func (r *MemoryBlockRepository) Add(_ context.Context, report model.BlockReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
	return nil
}

func (r *MemoryBlockRepository) ListByHandle(_ context.Context, handle string) ([]model.BlockReport, error) {
	return r.filter(func(report model.BlockReport) bool {
		return report.RSIHandle != "" && strings.EqualFold(report.RSIHandle, handle)
	}), nil
}

func (r *MemoryBlockRepository) ListByOrg(_ context.Context, orgSID string) ([]model.BlockReport, error) {
	return r.filter(func(report model.BlockReport) bool {
		return report.OrgSID != "" && strings.EqualFold(report.OrgSID, orgSID)
	}), nil
}

func (r *MemoryBlockRepository) filter(keep func(model.BlockReport) bool) []model.BlockReport {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]model.BlockReport, 0)
	for _, report := range r.reports {
		if keep(report) {
			result = append(result, report)
		}
	}
	return result
}
