package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/unclebandit/outreach-backend/internal/linkedin"
	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/repository"
)

// Sender performs the outbound provider call for one queue entry.
type Sender interface {
	SendInvitation(ctx context.Context, accountID, providerID, message string) error
	SendMessage(ctx context.Context, accountID, providerID, text string) error
}

// Worker processes due queue entries: one provider call, then a status
// transition. Shared by the AMQP consumer and the in-process dispatcher.
type Worker struct {
	QueueRepo    repository.QueueRepositoryInterface
	ProspectRepo repository.ProspectRepositoryInterface
	CampaignRepo repository.CampaignRepositoryInterface
	AccountRepo  repository.AccountRepositoryInterface
	Sender       Sender
	Log          zerolog.Logger
	Now          func() time.Time
}

func NewWorker(
	queueRepo repository.QueueRepositoryInterface,
	prospectRepo repository.ProspectRepositoryInterface,
	campaignRepo repository.CampaignRepositoryInterface,
	accountRepo repository.AccountRepositoryInterface,
	sender Sender,
	log zerolog.Logger,
) *Worker {
	return &Worker{
		QueueRepo:    queueRepo,
		ProspectRepo: prospectRepo,
		CampaignRepo: campaignRepo,
		AccountRepo:  accountRepo,
		Sender:       sender,
		Log:          log,
		Now:          time.Now,
	}
}

// ProcessEntry sends one queue entry. A returned error means infrastructure
// trouble worth redelivering; send rejections are recorded on the entry and
// do not propagate.
func (w *Worker) ProcessEntry(ctx context.Context, entryID int) error {
	e, err := w.QueueRepo.GetByID(entryID)
	if err != nil {
		return err
	}
	if e == nil {
		w.Log.Warn().Int("entry_id", entryID).Msg("queue entry not found")
		return nil
	}
	if e.Status != model.QueueStatusPending {
		return nil
	}
	if e.ScheduledFor.After(w.Now()) {
		// Dispatched early; the scheduler will pick it up when due.
		return nil
	}

	// The send API accepts only opaque ids. Catching a vanity here records
	// the repairable failure instead of burning a provider call.
	if !linkedin.IsProviderID(e.ProviderID) {
		return w.fail(e, "format mismatch: expected opaque id, got vanity slug")
	}

	campaign, err := w.CampaignRepo.GetByID(e.CampaignID)
	if err != nil {
		return err
	}
	acct, err := w.AccountRepo.GetByID(campaign.AccountID)
	if err != nil {
		return err
	}
	if acct == nil || acct.Status != model.AccountStatusConnected {
		return w.fail(e, "sending account disconnected")
	}

	// Claim before the provider call. Duplicate deliveries (redelivery, a
	// scaled-out consumer, the dispatch cron re-publishing) race on this
	// transition; only the winner sends.
	claimed, err := w.QueueRepo.ClaimPending(e.ID)
	if err != nil {
		return err
	}
	if !claimed {
		w.Log.Debug().Int("entry_id", e.ID).Msg("entry claimed elsewhere")
		return nil
	}

	var sendErr error
	switch e.MessageType {
	case model.MessageTypeMessage:
		sendErr = w.Sender.SendMessage(ctx, acct.ProviderAccountID, e.ProviderID, e.RenderedContent)
	default:
		sendErr = w.Sender.SendInvitation(ctx, acct.ProviderAccountID, e.ProviderID, e.RenderedContent)
	}
	if sendErr != nil {
		w.Log.Warn().Err(sendErr).
			Int("entry_id", e.ID).
			Int("prospect_id", e.ProspectID).
			Int("campaign_id", e.CampaignID).
			Msg("send rejected")
		return w.fail(e, sendErr.Error())
	}

	prospectStatus := model.ProspectStatusRequested
	if e.MessageType == model.MessageTypeMessage {
		prospectStatus = model.ProspectStatusMessaged
	}
	if err := w.ProspectRepo.UpdateStatus(e.ProspectID, prospectStatus); err != nil {
		w.Log.Warn().Err(err).Int("prospect_id", e.ProspectID).Msg("failed to transition prospect after send")
	}

	w.Log.Info().Int("entry_id", e.ID).Int("prospect_id", e.ProspectID).Msg("entry sent")
	return nil
}

func (w *Worker) fail(e *model.QueueEntry, detail string) error {
	return w.QueueRepo.MarkFailed(e.ID, detail)
}
