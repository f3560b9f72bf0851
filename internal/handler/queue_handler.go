// internal/handler/queue_handler.go
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/unclebandit/outreach-backend/internal/repository"
	"github.com/unclebandit/outreach-backend/internal/service"
)

// QueueHandler holds the dependencies for queue-related HTTP handlers
type QueueHandler struct {
	QueueRepo       repository.QueueRepositoryInterface
	CampaignService *service.CampaignService
	RecoveryService *service.RecoveryService
	Log             zerolog.Logger
}

// GetQueueStats returns queue entry counts by status, optionally scoped to a
// campaign via ?campaign_id=.
func (h *QueueHandler) GetQueueStats(w http.ResponseWriter, r *http.Request) {
	campaignID, _ := strconv.Atoi(r.URL.Query().Get("campaign_id"))

	stats, err := h.QueueRepo.StatusCounts(campaignID)
	if err != nil {
		http.Error(w, "failed to fetch queue stats: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"campaign_id": campaignID,
		"stats":       stats,
	})
}

// RecoverQueue runs one bounded repair pass over failed entries.
func (h *QueueHandler) RecoverQueue(w http.ResponseWriter, r *http.Request) {
	result, err := h.RecoveryService.RunRecovery(r.Context())
	if err != nil {
		h.Log.Error().Err(err).Msg("recovery pass aborted")
		http.Error(w, "recovery failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// GetCampaignWithStats returns a campaign with its queue status counts.
func (h *QueueHandler) GetCampaignWithStats(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.Atoi(idStr)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	details, err := h.CampaignService.GetCampaignDetailsWithStats(id)
	if err != nil {
		http.Error(w, "failed to fetch campaign: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(details)
}
