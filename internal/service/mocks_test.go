package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/linkedin"
	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/resolver"
)

// --- In-memory repositories shared by the service tests ---

type memCampaignRepo struct {
	campaigns map[int]*model.Campaign
}

func (m *memCampaignRepo) GetByID(id int) (*model.Campaign, error) {
	if c, ok := m.campaigns[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, appErrors.NewCampaignNotFound(id)
}

func (m *memCampaignRepo) ListByStatus(status string) ([]*model.Campaign, error) {
	out := []*model.Campaign{}
	for _, c := range m.campaigns {
		if c.Status == status {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memCampaignRepo) ListCampaigns(offset, limit int, campaignType, status string) ([]*model.Campaign, int, error) {
	return nil, 0, nil
}

func (m *memCampaignRepo) UpdateStatus(campaignID int, status string) error {
	if c, ok := m.campaigns[campaignID]; ok {
		c.Status = status
	}
	return nil
}

func (m *memCampaignRepo) Update(c *model.Campaign) error {
	cp := *c
	m.campaigns[c.ID] = &cp
	return nil
}

func (m *memCampaignRepo) Create(c *model.Campaign) error {
	c.ID = len(m.campaigns) + 1
	cp := *c
	m.campaigns[c.ID] = &cp
	return nil
}

type memProspectRepo struct {
	prospects map[int]*model.Prospect
}

func (m *memProspectRepo) GetByID(id int) (*model.Prospect, error) {
	if p, ok := m.prospects[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (m *memProspectRepo) ListByStatus(campaignID int, status string) ([]model.Prospect, error) {
	out := []model.Prospect{}
	for _, p := range m.prospects {
		if p.CampaignID == campaignID && p.Status == status {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memProspectRepo) Create(p *model.Prospect) error {
	p.ID = len(m.prospects) + 1
	cp := *p
	m.prospects[p.ID] = &cp
	return nil
}

func (m *memProspectRepo) UpdateStatus(id int, status string) error {
	if p, ok := m.prospects[id]; ok {
		p.Status = status
	}
	return nil
}

func (m *memProspectRepo) SetProviderID(id int, providerID string) error {
	if p, ok := m.prospects[id]; ok {
		p.ProviderID = providerID
	}
	return nil
}

func (m *memProspectRepo) FindContactedByProviderID(normalizedID string, excludeProspectID int) (*model.Prospect, error) {
	ids := make([]int, 0, len(m.prospects))
	for id := range m.prospects {
		ids = append(ids, id)
	}
	// Deliberately no fixed order beyond determinism per run; the store gives
	// no ordering guarantee either.
	sort.Ints(ids)
	for _, id := range ids {
		p := m.prospects[id]
		if p.ID == excludeProspectID {
			continue
		}
		if strings.ToLower(p.ProviderID) == normalizedID && p.Contacted() {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

type memQueueRepo struct {
	entries map[int]*model.QueueEntry
	nextID  int
	// campaignAccounts maps campaign id to account id for schedule reads.
	campaignAccounts map[int]int
	// forceUniqueViolation makes every insert behave as if a concurrent run
	// already claimed the slot.
	forceUniqueViolation bool
	// requeueConflict makes Requeue trip the partial unique index.
	requeueConflict bool
	// denyClaim simulates another worker winning the claim first.
	denyClaim bool
}

func newMemQueueRepo() *memQueueRepo {
	return &memQueueRepo{
		entries:          map[int]*model.QueueEntry{},
		campaignAccounts: map[int]int{},
	}
}

func (m *memQueueRepo) Create(e *model.QueueEntry) error {
	if m.forceUniqueViolation {
		return &pq.Error{Code: "23505"}
	}
	for _, existing := range m.entries {
		if existing.ProspectID == e.ProspectID && existing.MessageType == e.MessageType && existing.Active() {
			return &pq.Error{Code: "23505"}
		}
	}
	m.nextID++
	e.ID = m.nextID
	if e.Status == "" {
		e.Status = model.QueueStatusPending
	}
	cp := *e
	m.entries[e.ID] = &cp
	return nil
}

func (m *memQueueRepo) GetByID(id int) (*model.QueueEntry, error) {
	if e, ok := m.entries[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, nil
}

func (m *memQueueRepo) GetActiveEntry(prospectID int, messageType string) (*model.QueueEntry, error) {
	for _, e := range m.entries {
		if e.ProspectID == prospectID && e.MessageType == messageType && e.Active() {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memQueueRepo) FindActiveByProviderID(normalizedID string, campaignID int) (*model.QueueEntry, error) {
	for _, e := range m.entries {
		if !e.Active() || strings.ToLower(e.ProviderID) != normalizedID {
			continue
		}
		if campaignID != 0 && e.CampaignID != campaignID {
			continue
		}
		cp := *e
		return &cp, nil
	}
	return nil, nil
}

func (m *memQueueRepo) ListDue(now time.Time, limit int) ([]model.QueueEntry, error) {
	out := []model.QueueEntry{}
	for _, e := range m.entries {
		if e.Status == model.QueueStatusPending && !e.ScheduledFor.After(now) {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledFor.Before(out[j].ScheduledFor) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memQueueRepo) ListFailed(maxRetries int) ([]model.QueueEntry, error) {
	out := []model.QueueEntry{}
	for _, e := range m.entries {
		if e.Status == model.QueueStatusFailed && e.RetryCount < maxRetries {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memQueueRepo) ClaimPending(id int) (bool, error) {
	if m.denyClaim {
		return false, nil
	}
	e, ok := m.entries[id]
	if !ok || e.Status != model.QueueStatusPending {
		return false, nil
	}
	e.Status = model.QueueStatusSent
	e.LastError = nil
	return true, nil
}

func (m *memQueueRepo) MarkSkipped(id int, note string) error {
	if e, ok := m.entries[id]; ok {
		e.Status = model.QueueStatusSkipped
		e.LastError = &note
	}
	return nil
}

func (m *memQueueRepo) MarkFailed(id int, lastError string) error {
	if e, ok := m.entries[id]; ok {
		e.Status = model.QueueStatusFailed
		e.LastError = &lastError
		e.RetryCount++
	}
	return nil
}

func (m *memQueueRepo) Requeue(id int, providerID string, scheduledFor time.Time) error {
	if m.requeueConflict {
		return &pq.Error{Code: "23505"}
	}
	if e, ok := m.entries[id]; ok {
		e.Status = model.QueueStatusPending
		e.ProviderID = providerID
		e.ScheduledFor = scheduledFor
		e.LastError = nil
	}
	return nil
}

func (m *memQueueRepo) LastScheduled(accountID int) (time.Time, error) {
	var last time.Time
	for _, e := range m.entries {
		if m.campaignAccounts[e.CampaignID] != accountID || !e.Active() {
			continue
		}
		if e.ScheduledFor.After(last) {
			last = e.ScheduledFor
		}
	}
	return last, nil
}

func (m *memQueueRepo) CountScheduled(accountID int, from, to time.Time) (int, error) {
	count := 0
	for _, e := range m.entries {
		if m.campaignAccounts[e.CampaignID] != accountID || !e.Active() {
			continue
		}
		if e.ScheduledFor.After(from) && !e.ScheduledFor.After(to) {
			count++
		}
	}
	return count, nil
}

func (m *memQueueRepo) StatusCounts(campaignID int) (map[string]int, error) {
	counts := map[string]int{"pending": 0, "sent": 0, "failed": 0, "skipped": 0}
	for _, e := range m.entries {
		if campaignID != 0 && e.CampaignID != campaignID {
			continue
		}
		counts[string(e.Status)]++
	}
	return counts, nil
}

type memAccountRepo struct {
	accounts map[int]*model.Account
}

func (m *memAccountRepo) GetByID(id int) (*model.Account, error) {
	if a, ok := m.accounts[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, nil
}

func (m *memAccountRepo) ListConnected() ([]model.Account, error) {
	out := []model.Account{}
	for _, a := range m.accounts {
		if a.Status == model.AccountStatusConnected {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// stubResolver resolves from a fixed table; provider-id-shaped refs pass
// through like the real resolver.
type stubResolver struct {
	resolutions map[string]*resolver.Resolution
	errs        map[string]error
	calls       int
}

func (s *stubResolver) ResolveWithBackoff(ctx context.Context, ref, providerAccountID string) (*resolver.Resolution, error) {
	s.calls++
	if err, ok := s.errs[ref]; ok {
		return nil, err
	}
	if r, ok := s.resolutions[ref]; ok {
		cp := *r
		return &cp, nil
	}
	if linkedin.IsProviderID(ref) {
		return &resolver.Resolution{ProviderID: ref}, nil
	}
	return nil, appErrors.NewProfileNotFound(ref)
}
