package repository

import (
	"database/sql"
	"time"

	"github.com/unclebandit/outreach-backend/internal/model"
)

type QueueRepositoryInterface interface {
	Create(e *model.QueueEntry) error
	GetByID(id int) (*model.QueueEntry, error)
	GetActiveEntry(prospectID int, messageType string) (*model.QueueEntry, error)
	FindActiveByProviderID(normalizedID string, campaignID int) (*model.QueueEntry, error)
	ListDue(now time.Time, limit int) ([]model.QueueEntry, error)
	ListFailed(maxRetries int) ([]model.QueueEntry, error)
	ClaimPending(id int) (bool, error)
	MarkFailed(id int, lastError string) error
	MarkSkipped(id int, note string) error
	Requeue(id int, providerID string, scheduledFor time.Time) error
	LastScheduled(accountID int) (time.Time, error)
	CountScheduled(accountID int, from, to time.Time) (int, error)
	StatusCounts(campaignID int) (map[string]int, error)
}

type QueueRepository struct {
	DB *sql.DB
}

const queueColumns = `id, campaign_id, prospect_id, provider_id, message_type,
        rendered_content, scheduled_for, status, last_error, retry_count, created_at, updated_at`

func scanEntry(row interface{ Scan(...interface{}) error }, e *model.QueueEntry) error {
	return row.Scan(
		&e.ID, &e.CampaignID, &e.ProspectID, &e.ProviderID, &e.MessageType,
		&e.RenderedContent, &e.ScheduledFor, &e.Status, &e.LastError,
		&e.RetryCount, &e.CreatedAt, &e.UpdatedAt,
	)
}

// Create inserts a new queue entry. The partial unique index on
// (prospect_id, message_type) over active entries is the dedup invariant;
// callers must treat a unique violation here as "already admitted".
func (r *QueueRepository) Create(e *model.QueueEntry) error {
	now := time.Now()
	e.CreatedAt = now
	e.UpdatedAt = now
	if e.Status == "" {
		e.Status = model.QueueStatusPending
	}

	query := `
        INSERT INTO send_queue
        (campaign_id, prospect_id, provider_id, message_type, rendered_content, scheduled_for, status, retry_count, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        RETURNING id
    `
	return r.DB.QueryRow(
		query,
		e.CampaignID,
		e.ProspectID,
		e.ProviderID,
		e.MessageType,
		e.RenderedContent,
		e.ScheduledFor,
		e.Status,
		e.RetryCount,
		e.CreatedAt,
		e.UpdatedAt,
	).Scan(&e.ID)
}

// GetByID fetches a queue entry by its ID
func (r *QueueRepository) GetByID(id int) (*model.QueueEntry, error) {
	query := `SELECT ` + queueColumns + ` FROM send_queue WHERE id=$1`
	var e model.QueueEntry
	if err := scanEntry(r.DB.QueryRow(query, id), &e); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

// GetActiveEntry returns the pending or sent entry claiming the
// (prospect, message type) slot, if any.
func (r *QueueRepository) GetActiveEntry(prospectID int, messageType string) (*model.QueueEntry, error) {
	query := `SELECT ` + queueColumns + `
        FROM send_queue
        WHERE prospect_id=$1 AND message_type=$2 AND status IN ('pending', 'sent')
        LIMIT 1`
	var e model.QueueEntry
	if err := scanEntry(r.DB.QueryRow(query, prospectID, messageType), &e); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

// FindActiveByProviderID returns any active entry matching the normalized
// provider id. campaignID 0 widens the check to all campaigns.
func (r *QueueRepository) FindActiveByProviderID(normalizedID string, campaignID int) (*model.QueueEntry, error) {
	query := `SELECT ` + queueColumns + `
        FROM send_queue
        WHERE lower(provider_id)=$1 AND status IN ('pending', 'sent')`
	args := []interface{}{normalizedID}
	if campaignID != 0 {
		query += ` AND campaign_id=$2`
		args = append(args, campaignID)
	}
	query += ` LIMIT 1`

	var e model.QueueEntry
	if err := scanEntry(r.DB.QueryRow(query, args...), &e); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

// ListDue returns pending entries whose scheduled time has passed.
func (r *QueueRepository) ListDue(now time.Time, limit int) ([]model.QueueEntry, error) {
	query := `SELECT ` + queueColumns + `
        FROM send_queue
        WHERE status='pending' AND scheduled_for <= $1
        ORDER BY scheduled_for
        LIMIT $2`
	rows, err := r.DB.Query(query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []model.QueueEntry{}
	for rows.Next() {
		var e model.QueueEntry
		if err := scanEntry(rows, &e); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListFailed returns failed entries still inside the repair retry budget.
// Entries beyond it stay failed for manual review and are excluded here.
func (r *QueueRepository) ListFailed(maxRetries int) ([]model.QueueEntry, error) {
	query := `SELECT ` + queueColumns + `
        FROM send_queue
        WHERE status='failed' AND retry_count < $1
        ORDER BY updated_at`
	rows, err := r.DB.Query(query, maxRetries)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []model.QueueEntry{}
	for rows.Next() {
		var e model.QueueEntry
		if err := scanEntry(rows, &e); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ClaimPending atomically transitions a pending entry to sent and reports
// whether this caller won the claim. Duplicate deliveries of the same entry
// race on the status guard; every loser gets false and must not send.
func (r *QueueRepository) ClaimPending(id int) (bool, error) {
	query := `UPDATE send_queue SET status='sent', last_error=NULL, updated_at=NOW() WHERE id=$1 AND status='pending'`
	res, err := r.DB.Exec(query, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *QueueRepository) MarkFailed(id int, lastError string) error {
	query := `UPDATE send_queue SET status='failed', last_error=$1, retry_count=retry_count+1, updated_at=NOW() WHERE id=$2`
	_, err := r.DB.Exec(query, lastError, id)
	return err
}

// MarkSkipped retires an entry whose (prospect, message type) slot is claimed
// elsewhere. Skipped entries keep their note but never count as contact.
func (r *QueueRepository) MarkSkipped(id int, note string) error {
	query := `UPDATE send_queue SET status='skipped', last_error=$1, updated_at=NOW() WHERE id=$2`
	_, err := r.DB.Exec(query, note, id)
	return err
}

// Requeue puts a repaired entry back into pending with a corrected provider
// id, a fresh slot and a cleared error.
func (r *QueueRepository) Requeue(id int, providerID string, scheduledFor time.Time) error {
	query := `
        UPDATE send_queue
        SET status='pending', provider_id=$1, scheduled_for=$2, last_error=NULL, updated_at=NOW()
        WHERE id=$3
    `
	_, err := r.DB.Exec(query, providerID, scheduledFor, id)
	return err
}

// LastScheduled returns the latest scheduled time among the account's active
// entries, or the zero time when the schedule is empty.
func (r *QueueRepository) LastScheduled(accountID int) (time.Time, error) {
	query := `
        SELECT COALESCE(MAX(q.scheduled_for), 'epoch'::timestamptz)
        FROM send_queue q
        JOIN campaigns c ON c.id = q.campaign_id
        WHERE c.account_id=$1 AND q.status IN ('pending', 'sent')
    `
	var last time.Time
	if err := r.DB.QueryRow(query, accountID).Scan(&last); err != nil {
		return time.Time{}, err
	}
	if last.Unix() == 0 {
		return time.Time{}, nil
	}
	return last, nil
}

// CountScheduled counts the account's active entries scheduled inside
// (from, to]. Ceiling checks run against this live count at decision time;
// a cached count is exactly the stale-limit bug this replaces.
func (r *QueueRepository) CountScheduled(accountID int, from, to time.Time) (int, error) {
	query := `
        SELECT COUNT(*)
        FROM send_queue q
        JOIN campaigns c ON c.id = q.campaign_id
        WHERE c.account_id=$1 AND q.status IN ('pending', 'sent')
          AND q.scheduled_for > $2 AND q.scheduled_for <= $3
    `
	var count int
	err := r.DB.QueryRow(query, accountID, from, to).Scan(&count)
	return count, err
}

// StatusCounts returns entry counts by status. campaignID 0 covers the whole
// queue.
func (r *QueueRepository) StatusCounts(campaignID int) (map[string]int, error) {
	query := `SELECT status, COUNT(*) FROM send_queue`
	args := []interface{}{}
	if campaignID != 0 {
		query += ` WHERE campaign_id=$1`
		args = append(args, campaignID)
	}
	query += ` GROUP BY status`

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{"pending": 0, "sent": 0, "failed": 0, "skipped": 0}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

var _ QueueRepositoryInterface = (*QueueRepository)(nil)
