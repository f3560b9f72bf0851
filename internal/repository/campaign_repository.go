package repository

import (
	"database/sql"
	"fmt"
	"time"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/model"
)

type CampaignRepositoryInterface interface {
	ListCampaigns(offset, limit int, campaignType, status string) ([]*model.Campaign, int, error)
	ListByStatus(status string) ([]*model.Campaign, error)
	GetByID(id int) (*model.Campaign, error)
	UpdateStatus(campaignID int, status string) error
	Update(c *model.Campaign) error
	Create(c *model.Campaign) error
}

type CampaignRepository struct {
	DB *sql.DB
}

func (r *CampaignRepository) Create(c *model.Campaign) error {
	c.CreatedAt = time.Now()
	if c.Status == "" {
		c.Status = model.CampaignStatusDraft
	}
	if c.Type == "" {
		c.Type = model.CampaignTypeConnector
	}
	query := `
        INSERT INTO campaigns (workspace_id, account_id, name, type, status, base_template, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id
    `
	return r.DB.QueryRow(query, c.WorkspaceID, c.AccountID, c.Name, c.Type, c.Status, c.BaseTemplate, c.CreatedAt).Scan(&c.ID)
}

func (r *CampaignRepository) Update(c *model.Campaign) error {
	query := `
        UPDATE campaigns
        SET name=$1, base_template=$2, status=$3, account_id=$4, updated_at=NOW()
        WHERE id=$5
    `
	_, err := r.DB.Exec(query, c.Name, c.BaseTemplate, c.Status, c.AccountID, c.ID)
	return err
}

func (r *CampaignRepository) UpdateStatus(campaignID int, status string) error {
	query := `UPDATE campaigns SET status=$1, updated_at=$2 WHERE id=$3`
	_, err := r.DB.Exec(query, status, time.Now(), campaignID)
	return err
}

func (r *CampaignRepository) GetByID(id int) (*model.Campaign, error) {
	query := `
        SELECT id, workspace_id, account_id, name, type, status, base_template, created_at, updated_at
        FROM campaigns WHERE id=$1
    `
	var c model.Campaign
	err := r.DB.QueryRow(query, id).Scan(&c.ID, &c.WorkspaceID, &c.AccountID, &c.Name, &c.Type, &c.Status, &c.BaseTemplate, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return &c, nil
}

func (r *CampaignRepository) ListByStatus(status string) ([]*model.Campaign, error) {
	query := `
        SELECT id, workspace_id, account_id, name, type, status, base_template, created_at, updated_at
        FROM campaigns WHERE status=$1 ORDER BY id
    `
	rows, err := r.DB.Query(query, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	campaigns := []*model.Campaign{}
	for rows.Next() {
		c := &model.Campaign{}
		if err := rows.Scan(&c.ID, &c.WorkspaceID, &c.AccountID, &c.Name, &c.Type, &c.Status, &c.BaseTemplate, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

func (r *CampaignRepository) ListCampaigns(offset, limit int, campaignType, status string) ([]*model.Campaign, int, error) {
	campaigns := []*model.Campaign{}
	query := `SELECT id, workspace_id, account_id, name, type, status, base_template, created_at, updated_at FROM campaigns WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if campaignType != "" {
		query += fmt.Sprintf(" AND type=$%d", argPos)
		args = append(args, campaignType)
		argPos++
	}
	if status != "" {
		query += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, status)
		argPos++
	}

	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		c := &model.Campaign{}
		if err := rows.Scan(&c.ID, &c.WorkspaceID, &c.AccountID, &c.Name, &c.Type, &c.Status, &c.BaseTemplate, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}

	// Count total
	countQuery := `SELECT COUNT(*) FROM campaigns WHERE 1=1`
	argsCount := []interface{}{}
	argPosCount := 1
	if campaignType != "" {
		countQuery += fmt.Sprintf(" AND type=$%d", argPosCount)
		argsCount = append(argsCount, campaignType)
		argPosCount++
	}
	if status != "" {
		countQuery += fmt.Sprintf(" AND status=$%d", argPosCount)
		argsCount = append(argsCount, status)
	}

	var total int
	if err := r.DB.QueryRow(countQuery, argsCount...).Scan(&total); err != nil {
		return nil, 0, err
	}

	return campaigns, total, nil
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
