package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/outreach-backend/internal/model"
)

type sendCall struct {
	accountID  string
	providerID string
	content    string
}

type mockSender struct {
	invites  []sendCall
	messages []sendCall
	err      error
}

func (m *mockSender) SendInvitation(ctx context.Context, accountID, providerID, message string) error {
	if m.err != nil {
		return m.err
	}
	m.invites = append(m.invites, sendCall{accountID, providerID, message})
	return nil
}

func (m *mockSender) SendMessage(ctx context.Context, accountID, providerID, text string) error {
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, sendCall{accountID, providerID, text})
	return nil
}

type workerFixture struct {
	campaigns *memCampaignRepo
	prospects *memProspectRepo
	queue     *memQueueRepo
	accounts  *memAccountRepo
	sender    *mockSender
	now       time.Time
	worker    *Worker
}

func newWorkerFixture() *workerFixture {
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

	f := &workerFixture{
		campaigns: &memCampaignRepo{campaigns: map[int]*model.Campaign{
			1: {ID: 1, AccountID: 1, Type: model.CampaignTypeConnector, Status: model.CampaignStatusActive},
		}},
		prospects: &memProspectRepo{prospects: map[int]*model.Prospect{
			10: {ID: 10, CampaignID: 1, Status: model.ProspectStatusQueued},
		}},
		queue: newMemQueueRepo(),
		accounts: &memAccountRepo{accounts: map[int]*model.Account{
			1: {ID: 1, ProviderAccountID: "acct-provider-1", Status: model.AccountStatusConnected},
		}},
		sender: &mockSender{},
		now:    now,
	}
	f.queue.campaignAccounts[1] = 1

	f.worker = NewWorker(f.queue, f.prospects, f.campaigns, f.accounts, f.sender, zerolog.Nop())
	f.worker.Now = func() time.Time { return now }
	return f
}

func (f *workerFixture) addEntry(e model.QueueEntry) {
	if e.Status == "" {
		e.Status = model.QueueStatusPending
	}
	if e.ScheduledFor.IsZero() {
		e.ScheduledFor = f.now.Add(-time.Minute)
	}
	cp := e
	f.queue.entries[e.ID] = &cp
	if e.ID > f.queue.nextID {
		f.queue.nextID = e.ID
	}
}

func TestProcessEntrySendsInvitation(t *testing.T) {
	f := newWorkerFixture()
	f.addEntry(model.QueueEntry{
		ID: 1, CampaignID: 1, ProspectID: 10,
		ProviderID: "ACoAASara00000000001", MessageType: model.MessageTypeConnectionRequest,
		RenderedContent: "Hi Sara, saw your work at Brightline.",
	})

	require.NoError(t, f.worker.ProcessEntry(context.Background(), 1))

	require.Len(t, f.sender.invites, 1)
	assert.Equal(t, "acct-provider-1", f.sender.invites[0].accountID)
	assert.Equal(t, "ACoAASara00000000001", f.sender.invites[0].providerID)
	assert.Equal(t, "Hi Sara, saw your work at Brightline.", f.sender.invites[0].content)

	e, _ := f.queue.GetByID(1)
	assert.Equal(t, model.QueueStatusSent, e.Status)
	p, _ := f.prospects.GetByID(10)
	assert.Equal(t, model.ProspectStatusRequested, p.Status)
}

func TestProcessEntrySendsMessage(t *testing.T) {
	f := newWorkerFixture()
	f.addEntry(model.QueueEntry{
		ID: 1, CampaignID: 1, ProspectID: 10,
		ProviderID: "ACoAAPriya0000000001", MessageType: model.MessageTypeMessage,
		RenderedContent: "Thanks for connecting!",
	})

	require.NoError(t, f.worker.ProcessEntry(context.Background(), 1))

	require.Len(t, f.sender.messages, 1)
	assert.Empty(t, f.sender.invites)
	p, _ := f.prospects.GetByID(10)
	assert.Equal(t, model.ProspectStatusMessaged, p.Status)
}

func TestProcessEntryFailsVanityProviderID(t *testing.T) {
	f := newWorkerFixture()
	f.addEntry(model.QueueEntry{
		ID: 1, CampaignID: 1, ProspectID: 10,
		ProviderID: "sara-ritchie-6a24b834", MessageType: model.MessageTypeConnectionRequest,
	})

	require.NoError(t, f.worker.ProcessEntry(context.Background(), 1))

	assert.Empty(t, f.sender.invites, "a vanity slug must never reach the provider")
	e, _ := f.queue.GetByID(1)
	assert.Equal(t, model.QueueStatusFailed, e.Status)
	assert.Equal(t, 1, e.RetryCount)
	require.NotNil(t, e.LastError)
	assert.Contains(t, *e.LastError, "format mismatch")
	assert.True(t, RepairableError(*e.LastError), "the repair pass must pick this up")
}

func TestProcessEntryRecordsSendRejection(t *testing.T) {
	f := newWorkerFixture()
	f.sender.err = fmt.Errorf("invalid recipient")
	f.addEntry(model.QueueEntry{
		ID: 1, CampaignID: 1, ProspectID: 10,
		ProviderID: "ACoAASara00000000001", MessageType: model.MessageTypeConnectionRequest,
	})

	err := f.worker.ProcessEntry(context.Background(), 1)
	require.NoError(t, err, "rejections are recorded, not redelivered")

	e, _ := f.queue.GetByID(1)
	assert.Equal(t, model.QueueStatusFailed, e.Status)
	require.NotNil(t, e.LastError)
	assert.Equal(t, "invalid recipient", *e.LastError)
}

func TestProcessEntryFailsWhenAccountDisconnected(t *testing.T) {
	f := newWorkerFixture()
	f.accounts.accounts[1].Status = model.AccountStatusDisconnected
	f.addEntry(model.QueueEntry{
		ID: 1, CampaignID: 1, ProspectID: 10,
		ProviderID: "ACoAASara00000000001", MessageType: model.MessageTypeConnectionRequest,
	})

	require.NoError(t, f.worker.ProcessEntry(context.Background(), 1))

	assert.Empty(t, f.sender.invites)
	e, _ := f.queue.GetByID(1)
	assert.Equal(t, model.QueueStatusFailed, e.Status)
}

func TestProcessEntrySkipsNonPending(t *testing.T) {
	f := newWorkerFixture()
	f.addEntry(model.QueueEntry{
		ID: 1, CampaignID: 1, ProspectID: 10,
		ProviderID: "ACoAASara00000000001", MessageType: model.MessageTypeConnectionRequest,
		Status: model.QueueStatusSent,
	})

	require.NoError(t, f.worker.ProcessEntry(context.Background(), 1))
	assert.Empty(t, f.sender.invites, "sent entries are not re-sent")
}

func TestProcessEntrySkipsNotYetDue(t *testing.T) {
	f := newWorkerFixture()
	f.addEntry(model.QueueEntry{
		ID: 1, CampaignID: 1, ProspectID: 10,
		ProviderID: "ACoAASara00000000001", MessageType: model.MessageTypeConnectionRequest,
		ScheduledFor: f.now.Add(time.Hour),
	})

	require.NoError(t, f.worker.ProcessEntry(context.Background(), 1))

	assert.Empty(t, f.sender.invites)
	e, _ := f.queue.GetByID(1)
	assert.Equal(t, model.QueueStatusPending, e.Status, "early dispatch leaves the entry for the scheduler")
}

func TestProcessEntryDuplicateDeliverySendsOnce(t *testing.T) {
	f := newWorkerFixture()
	f.addEntry(model.QueueEntry{
		ID: 1, CampaignID: 1, ProspectID: 10,
		ProviderID: "ACoAASara00000000001", MessageType: model.MessageTypeConnectionRequest,
	})

	// Redelivery and the dispatch cron can hand the same entry id to the
	// worker more than once.
	require.NoError(t, f.worker.ProcessEntry(context.Background(), 1))
	require.NoError(t, f.worker.ProcessEntry(context.Background(), 1))

	assert.Len(t, f.sender.invites, 1, "duplicate deliveries must not send twice")
	e, _ := f.queue.GetByID(1)
	assert.Equal(t, model.QueueStatusSent, e.Status)
}

func TestProcessEntrySkipsWhenClaimLost(t *testing.T) {
	f := newWorkerFixture()
	f.addEntry(model.QueueEntry{
		ID: 1, CampaignID: 1, ProspectID: 10,
		ProviderID: "ACoAASara00000000001", MessageType: model.MessageTypeConnectionRequest,
	})
	// Another worker wins the claim between the read and the send.
	f.queue.denyClaim = true

	require.NoError(t, f.worker.ProcessEntry(context.Background(), 1))

	assert.Empty(t, f.sender.invites, "losing the claim means no provider call")
	p, _ := f.prospects.GetByID(10)
	assert.Equal(t, model.ProspectStatusQueued, p.Status, "the claim winner owns the transition")
}

func TestProcessEntryMissingEntry(t *testing.T) {
	f := newWorkerFixture()
	require.NoError(t, f.worker.ProcessEntry(context.Background(), 999))
}
