package repository

import (
	"database/sql"

	"github.com/unclebandit/outreach-backend/internal/model"
)

// ProspectRepositoryInterface defines methods used by services
type ProspectRepositoryInterface interface {
	GetByID(id int) (*model.Prospect, error)
	ListByStatus(campaignID int, status string) ([]model.Prospect, error)
	Create(p *model.Prospect) error
	UpdateStatus(id int, status string) error
	SetProviderID(id int, providerID string) error
	FindContactedByProviderID(normalizedID string, excludeProspectID int) (*model.Prospect, error)
}

// ProspectRepository is the concrete implementation
type ProspectRepository struct {
	DB *sql.DB
}

const prospectColumns = `id, campaign_id, first_name, last_name, company, title, industry,
        linkedin_ref, COALESCE(provider_id, ''), status, created_at, updated_at`

func scanProspect(row interface{ Scan(...interface{}) error }, p *model.Prospect) error {
	return row.Scan(
		&p.ID, &p.CampaignID, &p.FirstName, &p.LastName, &p.Company, &p.Title, &p.Industry,
		&p.LinkedInRef, &p.ProviderID, &p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
}

// GetByID fetches a prospect by ID
func (r *ProspectRepository) GetByID(id int) (*model.Prospect, error) {
	query := `SELECT ` + prospectColumns + ` FROM prospects WHERE id = $1`
	row := r.DB.QueryRow(query, id)

	var p model.Prospect
	if err := scanProspect(row, &p); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // not found
		}
		return nil, err
	}
	return &p, nil
}

// ListByStatus fetches a campaign's prospects in the given lifecycle status.
func (r *ProspectRepository) ListByStatus(campaignID int, status string) ([]model.Prospect, error) {
	query := `SELECT ` + prospectColumns + `
        FROM prospects
        WHERE campaign_id = $1 AND status = $2
        ORDER BY id`
	rows, err := r.DB.Query(query, campaignID, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	prospects := []model.Prospect{}
	for rows.Next() {
		var p model.Prospect
		if err := scanProspect(rows, &p); err != nil {
			return nil, err
		}
		prospects = append(prospects, p)
	}
	return prospects, rows.Err()
}

func (r *ProspectRepository) Create(p *model.Prospect) error {
	if p.Status == "" {
		p.Status = model.ProspectStatusPending
	}
	query := `
        INSERT INTO prospects (campaign_id, first_name, last_name, company, title, industry, linkedin_ref, provider_id, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, NOW())
        RETURNING id, created_at
    `
	return r.DB.QueryRow(query,
		p.CampaignID, p.FirstName, p.LastName, p.Company, p.Title, p.Industry,
		p.LinkedInRef, p.ProviderID, p.Status,
	).Scan(&p.ID, &p.CreatedAt)
}

func (r *ProspectRepository) UpdateStatus(id int, status string) error {
	query := `UPDATE prospects SET status=$1, updated_at=NOW() WHERE id=$2`
	_, err := r.DB.Exec(query, status, id)
	return err
}

// SetProviderID stores a freshly resolved opaque id so later passes skip the
// network lookup.
func (r *ProspectRepository) SetProviderID(id int, providerID string) error {
	query := `UPDATE prospects SET provider_id=$1, updated_at=NOW() WHERE id=$2`
	_, err := r.DB.Exec(query, providerID, id)
	return err
}

// FindContactedByProviderID returns a prospect already contacted anywhere,
// matched by normalized provider id. Used by the dedup index for its global
// scope check. excludeProspectID keeps a candidate's own record out of the
// match; the same person may exist under several campaigns, so the exclusion
// must happen here, not on whichever single row the store returns.
func (r *ProspectRepository) FindContactedByProviderID(normalizedID string, excludeProspectID int) (*model.Prospect, error) {
	query := `SELECT ` + prospectColumns + `
        FROM prospects
        WHERE lower(provider_id) = $1
          AND id <> $2
          AND status IN ('sent', 'connection_request_sent', 'connected', 'messaged', 'replied')
        LIMIT 1`
	row := r.DB.QueryRow(query, normalizedID, excludeProspectID)

	var p model.Prospect
	if err := scanProspect(row, &p); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

var _ ProspectRepositoryInterface = (*ProspectRepository)(nil)
