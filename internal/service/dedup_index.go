// internal/service/dedup_index.go
package service

import (
	"github.com/unclebandit/outreach-backend/internal/linkedin"
	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/repository"
)

// GlobalScope widens a dedup check across all campaigns.
const GlobalScope = 0

// DedupConflict references the record that makes a candidate a duplicate.
type DedupConflict struct {
	Kind       string `json:"kind"` // queue_entry or prospect
	ID         int    `json:"id"`
	CampaignID int    `json:"campaign_id"`
	Status     string `json:"status"`
}

// DedupIndex answers "has this provider id already been contacted or
// claimed?". Normalization happens here, once, so casing or trailing-slash
// differences can never cause a silent miss.
type DedupIndex struct {
	QueueRepo    repository.QueueRepositoryInterface
	ProspectRepo repository.ProspectRepositoryInterface
}

// IsContacted checks the normalized provider id against active queue entries
// and, for the global scope, against prospects in a contacted status.
// excludeProspectID exempts the candidate's own record; a connected messenger
// prospect always matches itself otherwise. A pure read; an empty result
// means "not a duplicate".
func (d *DedupIndex) IsContacted(providerID string, campaignID, excludeProspectID int) (bool, *DedupConflict, error) {
	norm := linkedin.Normalize(providerID)
	if norm == "" {
		return false, nil, nil
	}

	entry, err := d.QueueRepo.FindActiveByProviderID(norm, campaignID)
	if err != nil {
		return false, nil, err
	}
	if entry != nil {
		return true, &DedupConflict{
			Kind:       "queue_entry",
			ID:         entry.ID,
			CampaignID: entry.CampaignID,
			Status:     string(entry.Status),
		}, nil
	}

	if campaignID != GlobalScope {
		return false, nil, nil
	}

	var prospect *model.Prospect
	prospect, err = d.ProspectRepo.FindContactedByProviderID(norm, excludeProspectID)
	if err != nil {
		return false, nil, err
	}
	if prospect != nil {
		return true, &DedupConflict{
			Kind:       "prospect",
			ID:         prospect.ID,
			CampaignID: prospect.CampaignID,
			Status:     prospect.Status,
		}, nil
	}

	return false, nil, nil
}
