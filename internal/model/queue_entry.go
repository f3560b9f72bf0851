// internal/model/queue_entry.go
package model

import "time"

// QueueEntryStatus represents valid queue entry statuses
type QueueEntryStatus string

const (
	QueueStatusPending QueueEntryStatus = "pending"
	QueueStatusSent    QueueEntryStatus = "sent"
	QueueStatusFailed  QueueEntryStatus = "failed"
	QueueStatusSkipped QueueEntryStatus = "skipped"
)

const (
	MessageTypeConnectionRequest = "connection_request"
	MessageTypeMessage           = "message"
)

// QueueEntry is one scheduled outbound message to one prospect. ProviderID
// must always hold a resolved opaque id; a vanity slug here is the format
// mismatch the repair pass exists to fix.
type QueueEntry struct {
	ID              int              `db:"id" json:"id"`
	CampaignID      int              `db:"campaign_id" json:"campaign_id"`
	ProspectID      int              `db:"prospect_id" json:"prospect_id"`
	ProviderID      string           `db:"provider_id" json:"provider_id"`
	MessageType     string           `db:"message_type" json:"message_type"`
	RenderedContent string           `db:"rendered_content" json:"rendered_content"`
	ScheduledFor    time.Time        `db:"scheduled_for" json:"scheduled_for"`
	Status          QueueEntryStatus `db:"status" json:"status"`
	LastError       *string          `db:"last_error" json:"last_error,omitempty"`
	RetryCount      int              `db:"retry_count" json:"retry_count"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at" json:"updated_at"`
}

// Active reports whether this entry still claims its (prospect, message type)
// slot for deduplication purposes.
func (e *QueueEntry) Active() bool {
	return e.Status == QueueStatusPending || e.Status == QueueStatusSent
}

// CanRepair checks if the entry is still inside the bounded repair budget.
func (e *QueueEntry) CanRepair(maxRetries int) bool {
	return e.Status == QueueStatusFailed && e.RetryCount < maxRetries
}
