// internal/service/admission_service.go
package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/queue"
	"github.com/unclebandit/outreach-backend/internal/repository"
	"github.com/unclebandit/outreach-backend/internal/resolver"
)

// Skip reasons recorded per prospect.
const (
	SkipAlreadyQueued     = "already_queued"
	SkipAlreadyAdmitted   = "already_admitted"
	SkipAlreadyContacted  = "already_contacted"
	SkipAlreadyConnected  = "already_connected"
	SkipInvitationPending = "invitation_pending"
	SkipResolutionFailed  = "resolution_failed"
	SkipInsertFailed      = "insert_failed"
)

// IdentifierResolver is the resolution dependency of the batch passes.
type IdentifierResolver interface {
	ResolveWithBackoff(ctx context.Context, ref, providerAccountID string) (*resolver.Resolution, error)
}

// SkippedProspect records why a prospect was left out of a batch, with
// enough context for manual review.
type SkippedProspect struct {
	ProspectID int            `json:"prospect_id"`
	Reason     string         `json:"reason"`
	Detail     string         `json:"detail,omitempty"`
	Conflict   *DedupConflict `json:"conflict,omitempty"`
}

// AdmissionResult summarises one admission pass.
type AdmissionResult struct {
	BatchID    string            `json:"batch_id"`
	CampaignID int               `json:"campaign_id"`
	Admitted   int               `json:"admitted"`
	EntryIDs   []int             `json:"entry_ids"`
	Skipped    []SkippedProspect `json:"skipped"`
}

// AdmissionService turns approved prospects into scheduled pending queue
// entries. Each admission decision is a single atomic insert; idempotence
// rides on the store's uniqueness constraint, not on in-memory state.
type AdmissionService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	ProspectRepo repository.ProspectRepositoryInterface
	QueueRepo    repository.QueueRepositoryInterface
	AccountRepo  repository.AccountRepositoryInterface
	Resolver     IdentifierResolver
	Dedup        *DedupIndex
	Planner      *SlotPlanner
	// Dispatch receives ids of entries due immediately. Optional.
	Dispatch queue.Queue
	Log      zerolog.Logger
}

type admissionCandidate struct {
	prospect   model.Prospect
	providerID string
	rendered   string
}

// RunAdmission runs one admission pass for a campaign. Individual prospect
// failures are isolated and recorded; only store-level failures abort the
// pass.
func (s *AdmissionService) RunAdmission(ctx context.Context, campaignID int) (*AdmissionResult, error) {
	campaign, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Status != model.CampaignStatusActive && campaign.Status != model.CampaignStatusDraft {
		return nil, fmt.Errorf("campaign %d cannot admit in status: %s", campaignID, campaign.Status)
	}

	acct, err := s.AccountRepo.GetByID(campaign.AccountID)
	if err != nil {
		return nil, err
	}
	if acct == nil || acct.Status != model.AccountStatusConnected {
		return nil, appErrors.NewAccountDisconnected(campaign.AccountID)
	}

	prospects, err := s.eligibleProspects(campaign)
	if err != nil {
		return nil, err
	}

	result := &AdmissionResult{
		BatchID:    uuid.NewString(),
		CampaignID: campaignID,
		EntryIDs:   []int{},
		Skipped:    []SkippedProspect{},
	}
	messageType := campaign.MessageType()

	candidates := []admissionCandidate{}
	for i := range prospects {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := prospects[i]

		cand, skip, err := s.evaluate(ctx, campaign, acct, &p, messageType)
		if err != nil {
			return nil, err
		}
		if skip != nil {
			result.Skipped = append(result.Skipped, *skip)
			continue
		}
		candidates = append(candidates, *cand)
	}

	slots, err := s.Planner.NextSlots(s.QueueRepo, acct, len(candidates))
	if err != nil {
		return nil, err
	}

	for i, c := range candidates {
		entry := &model.QueueEntry{
			CampaignID:      campaignID,
			ProspectID:      c.prospect.ID,
			ProviderID:      c.providerID,
			MessageType:     messageType,
			RenderedContent: c.rendered,
			ScheduledFor:    slots[i],
			Status:          model.QueueStatusPending,
		}

		if err := s.QueueRepo.Create(entry); err != nil {
			if appErrors.IsUniqueViolation(err) {
				// A concurrent run got there first. Not a failure.
				result.Skipped = append(result.Skipped, SkippedProspect{
					ProspectID: c.prospect.ID,
					Reason:     SkipAlreadyAdmitted,
				})
				continue
			}
			s.Log.Error().Err(err).
				Int("campaign_id", campaignID).
				Int("prospect_id", c.prospect.ID).
				Msg("failed to insert queue entry")
			result.Skipped = append(result.Skipped, SkippedProspect{
				ProspectID: c.prospect.ID,
				Reason:     SkipInsertFailed,
				Detail:     err.Error(),
			})
			continue
		}

		if err := s.ProspectRepo.UpdateStatus(c.prospect.ID, model.ProspectStatusQueued); err != nil {
			// The entry exists; the next pass's local dedup makes this safe.
			s.Log.Warn().Err(err).Int("prospect_id", c.prospect.ID).Msg("failed to mark prospect queued")
		}

		result.Admitted++
		result.EntryIDs = append(result.EntryIDs, entry.ID)

		if s.Dispatch != nil && !entry.ScheduledFor.After(s.Planner.Now()) {
			if err := s.Dispatch.Publish(queue.TopicSendDispatch, entry.ID); err != nil {
				s.Log.Warn().Err(err).Int("entry_id", entry.ID).Msg("failed to dispatch due entry")
			}
		}
	}

	s.Log.Info().
		Str("batch_id", result.BatchID).
		Int("campaign_id", campaignID).
		Int("admitted", result.Admitted).
		Int("skipped", len(result.Skipped)).
		Msg("admission pass complete")

	return result, nil
}

// eligibleProspects returns approved prospects, plus connected ones for
// messenger campaigns.
func (s *AdmissionService) eligibleProspects(campaign *model.Campaign) ([]model.Prospect, error) {
	prospects, err := s.ProspectRepo.ListByStatus(campaign.ID, model.ProspectStatusApproved)
	if err != nil {
		return nil, err
	}
	if campaign.Type == model.CampaignTypeMessenger {
		connected, err := s.ProspectRepo.ListByStatus(campaign.ID, model.ProspectStatusConnected)
		if err != nil {
			return nil, err
		}
		prospects = append(prospects, connected...)
	}
	return prospects, nil
}

func (s *AdmissionService) evaluate(ctx context.Context, campaign *model.Campaign, acct *model.Account, p *model.Prospect, messageType string) (*admissionCandidate, *SkippedProspect, error) {
	// Local dedup before spending a network call.
	existing, err := s.QueueRepo.GetActiveEntry(p.ID, messageType)
	if err != nil {
		return nil, nil, err
	}
	if existing != nil {
		return nil, &SkippedProspect{ProspectID: p.ID, Reason: SkipAlreadyQueued}, nil
	}

	ref := p.ProviderID
	if ref == "" {
		ref = p.LinkedInRef
	}
	res, err := s.Resolver.ResolveWithBackoff(ctx, ref, acct.ProviderAccountID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}
		// A single bad profile must never abort the whole run.
		s.Log.Warn().Err(err).
			Int("campaign_id", campaign.ID).
			Int("prospect_id", p.ID).
			Str("ref", ref).
			Msg("identifier resolution failed")
		return nil, &SkippedProspect{ProspectID: p.ID, Reason: SkipResolutionFailed, Detail: err.Error()}, nil
	}

	if res.LookedUp && p.ProviderID != res.ProviderID {
		if err := s.ProspectRepo.SetProviderID(p.ID, res.ProviderID); err != nil {
			s.Log.Warn().Err(err).Int("prospect_id", p.ID).Msg("failed to store resolved provider id")
		}
	}

	if campaign.Type == model.CampaignTypeConnector {
		if res.Connected() {
			if err := s.ProspectRepo.UpdateStatus(p.ID, model.ProspectStatusConnected); err != nil {
				s.Log.Warn().Err(err).Int("prospect_id", p.ID).Msg("failed to mark prospect connected")
			}
			return nil, &SkippedProspect{ProspectID: p.ID, Reason: SkipAlreadyConnected}, nil
		}
		if res.InvitationPending {
			if err := s.ProspectRepo.UpdateStatus(p.ID, model.ProspectStatusRequested); err != nil {
				s.Log.Warn().Err(err).Int("prospect_id", p.ID).Msg("failed to mark invitation pending")
			}
			return nil, &SkippedProspect{ProspectID: p.ID, Reason: SkipInvitationPending}, nil
		}
	}

	dup, conflict, err := s.Dedup.IsContacted(res.ProviderID, GlobalScope, p.ID)
	if err != nil {
		return nil, nil, err
	}
	if dup {
		return nil, &SkippedProspect{ProspectID: p.ID, Reason: SkipAlreadyContacted, Conflict: conflict}, nil
	}

	return &admissionCandidate{
		prospect:   *p,
		providerID: res.ProviderID,
		rendered:   RenderProspectTemplate(campaign.BaseTemplate, p),
	}, nil, nil
}
