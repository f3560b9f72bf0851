// internal/service/recovery_service.go
package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/repository"
)

// repairableMarkers identify failures caused by unresolved identifiers or
// stale account bindings. Genuine external rejections (blocked recipient,
// disconnected account at send time) never match and stay terminal for
// manual review.
var repairableMarkers = []string{
	"format mismatch",
	"expected opaque id",
	"cannot resolve",
	"invalid recipient",
	"stale account",
	"unknown provider id",
}

// RepairableError reports whether a recorded failure is a candidate for the
// automatic repair pass.
func RepairableError(detail string) bool {
	lower := strings.ToLower(detail)
	for _, marker := range repairableMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// RecoveryResult summarises one repair pass.
type RecoveryResult struct {
	Scanned  int `json:"scanned"`
	Repaired int `json:"repaired"`
	// Terminal entries had non-repairable errors and were left alone.
	Terminal    int `json:"terminal"`
	StillFailed int `json:"still_failed"`
	// Skipped entries lost their slot to a newer active entry while failed.
	Skipped int `json:"skipped"`
}

type repairOutcome int

const (
	repairFailed repairOutcome = iota
	repairDone
	repairSuperseded
)

// RecoveryService re-admits failed queue entries whose errors trace to
// identifier or binding problems. Re-resolution uses the campaign's current
// account binding, which may have changed since original admission. Each
// entry is retried at most MaxRetries times; beyond that it stays failed.
type RecoveryService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	ProspectRepo repository.ProspectRepositoryInterface
	QueueRepo    repository.QueueRepositoryInterface
	AccountRepo  repository.AccountRepositoryInterface
	Resolver     IdentifierResolver
	Planner      *SlotPlanner
	MaxRetries   int
	Log          zerolog.Logger
}

// RunRecovery runs one bounded repair pass over repairable failed entries.
func (s *RecoveryService) RunRecovery(ctx context.Context) (*RecoveryResult, error) {
	entries, err := s.QueueRepo.ListFailed(s.MaxRetries)
	if err != nil {
		return nil, err
	}

	result := &RecoveryResult{}
	for i := range entries {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		e := &entries[i]
		result.Scanned++

		if e.LastError == nil || !RepairableError(*e.LastError) {
			result.Terminal++
			continue
		}

		outcome, err := s.repair(ctx, e)
		if err != nil {
			return result, err
		}
		switch outcome {
		case repairDone:
			result.Repaired++
		case repairSuperseded:
			result.Skipped++
		default:
			result.StillFailed++
		}
	}

	s.Log.Info().
		Int("scanned", result.Scanned).
		Int("repaired", result.Repaired).
		Int("terminal", result.Terminal).
		Int("still_failed", result.StillFailed).
		Int("skipped", result.Skipped).
		Msg("recovery pass complete")

	return result, nil
}

func (s *RecoveryService) repair(ctx context.Context, e *model.QueueEntry) (repairOutcome, error) {
	campaign, err := s.CampaignRepo.GetByID(e.CampaignID)
	if err != nil {
		return repairFailed, err
	}

	// Current binding, not the one the entry was admitted under.
	acct, err := s.AccountRepo.GetByID(campaign.AccountID)
	if err != nil {
		return repairFailed, err
	}
	if acct == nil || acct.Status != model.AccountStatusConnected {
		s.Log.Warn().
			Int("entry_id", e.ID).
			Int("account_id", campaign.AccountID).
			Msg("skipping repair, account not connected")
		return repairFailed, nil
	}

	prospect, err := s.ProspectRepo.GetByID(e.ProspectID)
	if err != nil {
		return repairFailed, err
	}
	if prospect == nil {
		s.Log.Warn().Int("entry_id", e.ID).Int("prospect_id", e.ProspectID).Msg("skipping repair, prospect missing")
		return repairFailed, nil
	}

	res, err := s.Resolver.ResolveWithBackoff(ctx, prospect.LinkedInRef, acct.ProviderAccountID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return repairFailed, ctxErr
		}
		s.Log.Warn().Err(err).
			Int("entry_id", e.ID).
			Int("prospect_id", prospect.ID).
			Msg("repair resolution failed")
		// Counts against the retry bound.
		if markErr := s.QueueRepo.MarkFailed(e.ID, "cannot resolve: "+err.Error()); markErr != nil {
			return repairFailed, markErr
		}
		return repairFailed, nil
	}

	slots, err := s.Planner.NextSlots(s.QueueRepo, acct, 1)
	if err != nil {
		return repairFailed, err
	}

	if err := s.QueueRepo.Requeue(e.ID, res.ProviderID, slots[0]); err != nil {
		// A failed entry releases its (prospect, message type) claim; a newer
		// admission may have taken it since. Already admitted, not a failure.
		if appErrors.IsUniqueViolation(err) {
			s.Log.Info().
				Int("entry_id", e.ID).
				Int("prospect_id", e.ProspectID).
				Msg("slot reclaimed by a newer entry, retiring")
			if markErr := s.QueueRepo.MarkSkipped(e.ID, "slot already claimed"); markErr != nil {
				return repairFailed, markErr
			}
			return repairSuperseded, nil
		}
		return repairFailed, err
	}
	if prospect.ProviderID != res.ProviderID {
		if err := s.ProspectRepo.SetProviderID(prospect.ID, res.ProviderID); err != nil {
			s.Log.Warn().Err(err).Int("prospect_id", prospect.ID).Msg("failed to store repaired provider id")
		}
	}

	s.Log.Info().
		Int("entry_id", e.ID).
		Int("prospect_id", prospect.ID).
		Time("scheduled_for", slots[0]).
		Msg("queue entry repaired")

	return repairDone, nil
}
