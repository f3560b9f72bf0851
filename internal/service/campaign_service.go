// internal/service/campaign_service.go
package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/repository"
)

type CampaignService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	ProspectRepo repository.ProspectRepositoryInterface
	QueueRepo    repository.QueueRepositoryInterface
}

type CampaignDetails struct {
	ID           int            `json:"id"`
	WorkspaceID  int            `json:"workspace_id"`
	AccountID    int            `json:"account_id"`
	Name         string         `json:"name"`
	Type         string         `json:"type"`
	Status       string         `json:"status"`
	BaseTemplate string         `json:"base_template"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    *time.Time     `json:"updated_at"`
	QueueStats   map[string]int `json:"queue_stats"`
}

// RenderPreview renders the campaign template for one prospect, optionally
// with an override template.
func (s *CampaignService) RenderPreview(campaignID, prospectID int, overrideTemplate *string) (string, error) {
	campaign, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return "", err
	}

	prospect, err := s.ProspectRepo.GetByID(prospectID)
	if err != nil {
		return "", err
	}
	if prospect == nil {
		return "", fmt.Errorf("prospect not found")
	}

	template := campaign.BaseTemplate
	if overrideTemplate != nil && strings.TrimSpace(*overrideTemplate) != "" {
		template = *overrideTemplate
	}
	if strings.TrimSpace(template) == "" {
		return "", fmt.Errorf("template cannot be empty")
	}

	return RenderProspectTemplate(template, prospect), nil
}

func (s *CampaignService) CreateCampaign(workspaceID, accountID int, name, campaignType, baseTemplate string) (*model.Campaign, error) {
	if campaignType != "" && campaignType != model.CampaignTypeConnector && campaignType != model.CampaignTypeMessenger {
		return nil, fmt.Errorf("unknown campaign type: %s", campaignType)
	}

	c := &model.Campaign{
		WorkspaceID:  workspaceID,
		AccountID:    accountID,
		Name:         name,
		Type:         campaignType,
		BaseTemplate: baseTemplate,
		Status:       model.CampaignStatusDraft,
	}
	if err := s.CampaignRepo.Create(c); err != nil {
		return nil, err
	}
	return c, nil
}

// ListCampaigns fetches campaigns with pagination
func (s *CampaignService) ListCampaigns(page, pageSize int, campaignType, status string) ([]model.Campaign, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	ptrs, total, err := s.CampaignRepo.ListCampaigns(offset, pageSize, campaignType, status)
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]model.Campaign, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = *c
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}

	return campaigns, pagination, nil
}

func (s *CampaignService) GetCampaignDetailsWithStats(campaignID int) (*CampaignDetails, error) {
	campaign, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return nil, err
	}

	stats, err := s.QueueRepo.StatusCounts(campaignID)
	if err != nil {
		return nil, err
	}
	total := 0
	for _, count := range stats {
		total += count
	}
	stats["total"] = total

	return &CampaignDetails{
		ID:           campaign.ID,
		WorkspaceID:  campaign.WorkspaceID,
		AccountID:    campaign.AccountID,
		Name:         campaign.Name,
		Type:         campaign.Type,
		Status:       campaign.Status,
		BaseTemplate: campaign.BaseTemplate,
		CreatedAt:    campaign.CreatedAt,
		UpdatedAt:    campaign.UpdatedAt,
		QueueStats:   stats,
	}, nil
}
