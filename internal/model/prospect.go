// internal/model/prospect.go
package model

import "time"

// Prospect lifecycle statuses. Prospects are never deleted, only
// status-transitioned.
const (
	ProspectStatusPending     = "pending"
	ProspectStatusApproved    = "approved"
	ProspectStatusQueued      = "queued"
	ProspectStatusSent        = "sent"
	ProspectStatusRequested   = "connection_request_sent"
	ProspectStatusConnected   = "connected"
	ProspectStatusMessaged    = "messaged"
	ProspectStatusReplied     = "replied"
	ProspectStatusFailed      = "failed"
)

type Prospect struct {
	ID         int    `db:"id" json:"id"`
	CampaignID int    `db:"campaign_id" json:"campaign_id"`
	FirstName  string `db:"first_name" json:"first_name"`
	LastName   string `db:"last_name" json:"last_name"`
	Company    string `db:"company" json:"company"`
	Title      string `db:"title" json:"title"`
	Industry   string `db:"industry" json:"industry"`

	// LinkedInRef is the reference as imported: a vanity slug or a full
	// profile URL. Not usable as a send recipient.
	LinkedInRef string `db:"linkedin_ref" json:"linkedin_ref"`
	// ProviderID is the opaque id returned by the provider's profile API.
	// Empty until resolved. The send API accepts only this, never a vanity.
	ProviderID string `db:"provider_id" json:"provider_id,omitempty"`

	Status    string     `db:"status" json:"status"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// Contacted reports whether this prospect has already been reached anywhere.
func (p *Prospect) Contacted() bool {
	switch p.Status {
	case ProspectStatusSent, ProspectStatusRequested, ProspectStatusConnected,
		ProspectStatusMessaged, ProspectStatusReplied:
		return true
	}
	return false
}
