// internal/controller/campaign_controller.go
package controller

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/streadway/amqp"

	"github.com/unclebandit/outreach-backend/internal/service"
)

type CampaignController struct {
	CampaignService  *service.CampaignService
	AdmissionService *service.AdmissionService
	AMQPURL          string
	AMQPQueue        string
	Log              zerolog.Logger
}

func (c *CampaignController) PersonalizedPreview(w http.ResponseWriter, r *http.Request) {
	campaignIDStr := chi.URLParam(r, "id")
	campaignID, _ := strconv.Atoi(campaignIDStr)

	var body struct {
		ProspectID       int     `json:"prospect_id"`
		OverrideTemplate *string `json:"override_template"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	rendered, err := c.CampaignService.RenderPreview(campaignID, body.ProspectID, body.OverrideTemplate)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"rendered_message": rendered,
		"used_template":    body.OverrideTemplate,
		"prospect_id":      body.ProspectID,
	})
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var body struct {
		WorkspaceID  int    `json:"workspace_id"`
		AccountID    int    `json:"account_id"`
		Name         string `json:"name"`
		Type         string `json:"type"`
		BaseTemplate string `json:"base_template"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	campaign, err := c.CampaignService.CreateCampaign(body.WorkspaceID, body.AccountID, body.Name, body.Type, body.BaseTemplate)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(campaign)
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	campaignType := r.URL.Query().Get("type")
	status := r.URL.Query().Get("status")

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	campaigns, pagination, err := c.CampaignService.ListCampaigns(page, pageSize, campaignType, status)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"data":       campaigns,
		"pagination": pagination,
	})
}

// AdmitCampaign runs one admission pass for the campaign and publishes the
// admitted entry ids for the worker.
func (c *CampaignController) AdmitCampaign(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.Atoi(idStr)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	result, err := c.AdmissionService.RunAdmission(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if len(result.EntryIDs) > 0 && c.AMQPURL != "" {
		if err := c.publishEntries(result.EntryIDs); err != nil {
			c.Log.Warn().Err(err).Int("campaign_id", id).Msg("failed to publish admitted entries")
		}
	}

	json.NewEncoder(w).Encode(result)
}

func (c *CampaignController) publishEntries(entryIDs []int) error {
	conn, err := amqp.Dial(c.AMQPURL)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(
		c.AMQPQueue,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	for _, entryID := range entryIDs {
		body, _ := json.Marshal(map[string]int{"queue_entry_id": entryID})
		if err := ch.Publish(
			"",
			q.Name,
			false,
			false,
			amqp.Publishing{
				ContentType: "application/json",
				Body:        body,
			},
		); err != nil {
			c.Log.Warn().Err(err).Int("entry_id", entryID).Msg("failed to publish entry")
		}
	}
	return nil
}
