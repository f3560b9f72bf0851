// internal/model/campaign.go
package model

import "time"

// Campaign types. A connector campaign sends connection requests; a
// messenger campaign sends direct messages to already-connected prospects.
const (
	CampaignTypeConnector = "connector"
	CampaignTypeMessenger = "messenger"
)

const (
	CampaignStatusDraft     = "draft"
	CampaignStatusActive    = "active"
	CampaignStatusPaused    = "paused"
	CampaignStatusCompleted = "completed"
)

type Campaign struct {
	ID           int        `db:"id" json:"id"`
	WorkspaceID  int        `db:"workspace_id" json:"workspace_id"`
	AccountID    int        `db:"account_id" json:"account_id"`
	Name         string     `db:"name" json:"name"`
	Type         string     `db:"type" json:"type"`
	Status       string     `db:"status" json:"status"`
	BaseTemplate string     `db:"base_template" json:"base_template"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// MessageType returns the queue entry message type this campaign produces.
func (c *Campaign) MessageType() string {
	if c.Type == CampaignTypeMessenger {
		return MessageTypeMessage
	}
	return MessageTypeConnectionRequest
}
