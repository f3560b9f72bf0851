// cmd/scheduler/main.go
package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/streadway/amqp"

	"github.com/unclebandit/outreach-backend/internal/config"
	"github.com/unclebandit/outreach-backend/internal/db"
	"github.com/unclebandit/outreach-backend/internal/logger"
	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/repository"
	"github.com/unclebandit/outreach-backend/internal/resolver"
	"github.com/unclebandit/outreach-backend/internal/service"
	"github.com/unclebandit/outreach-backend/internal/unipile"
)

// The scheduler replaces engineer-run one-off passes: it dispatches due
// entries to the worker, runs admission for active campaigns, and runs the
// bounded recovery pass.
func main() {
	log := logger.New("scheduler")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	conn, err := db.Connect(cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer conn.Close()

	campaignRepo := &repository.CampaignRepository{DB: conn}
	prospectRepo := &repository.ProspectRepository{DB: conn}
	queueRepo := &repository.QueueRepository{DB: conn}
	accountRepo := &repository.AccountRepository{DB: conn}

	client := unipile.NewClient(cfg.Unipile, log)
	res := resolver.New(client, log)
	planner := service.NewSlotPlanner(cfg.Admission.Spacing)
	dedup := &service.DedupIndex{QueueRepo: queueRepo, ProspectRepo: prospectRepo}

	admission := &service.AdmissionService{
		CampaignRepo: campaignRepo,
		ProspectRepo: prospectRepo,
		QueueRepo:    queueRepo,
		AccountRepo:  accountRepo,
		Resolver:     res,
		Dedup:        dedup,
		Planner:      planner,
		Log:          log,
	}
	recovery := &service.RecoveryService{
		CampaignRepo: campaignRepo,
		ProspectRepo: prospectRepo,
		QueueRepo:    queueRepo,
		AccountRepo:  accountRepo,
		Resolver:     res,
		Planner:      planner,
		MaxRetries:   cfg.Admission.MaxRepairRetries,
		Log:          log,
	}

	c := cron.New()

	// Dispatch due entries to the worker.
	c.AddFunc("* * * * *", func() {
		due, err := queueRepo.ListDue(time.Now(), cfg.Admission.DispatchLimit)
		if err != nil {
			log.Error().Err(err).Msg("failed to list due entries")
			return
		}
		if len(due) == 0 {
			return
		}
		if err := publishDue(cfg.AMQP, due); err != nil {
			log.Error().Err(err).Msg("failed to publish due entries")
			return
		}
		log.Info().Int("count", len(due)).Msg("dispatched due entries")
	})

	// Admission pass for every active campaign on a connected account.
	c.AddFunc("0 * * * *", func() {
		accounts, err := accountRepo.ListConnected()
		if err != nil {
			log.Error().Err(err).Msg("failed to list connected accounts")
			return
		}
		connected := map[int]bool{}
		for _, a := range accounts {
			connected[a.ID] = true
		}

		campaigns, err := campaignRepo.ListByStatus(model.CampaignStatusActive)
		if err != nil {
			log.Error().Err(err).Msg("failed to list active campaigns")
			return
		}
		for _, campaign := range campaigns {
			if !connected[campaign.AccountID] {
				log.Warn().Int("campaign_id", campaign.ID).Int("account_id", campaign.AccountID).
					Msg("skipping admission, account not connected")
				continue
			}
			if _, err := admission.RunAdmission(context.Background(), campaign.ID); err != nil {
				log.Error().Err(err).Int("campaign_id", campaign.ID).Msg("admission pass failed")
			}
		}
	})

	// Bounded repair pass.
	c.AddFunc("*/15 * * * *", func() {
		if _, err := recovery.RunRecovery(context.Background()); err != nil {
			log.Error().Err(err).Msg("recovery pass failed")
		}
	})

	log.Info().Msg("scheduler running")
	c.Run()
}

func publishDue(cfg config.AMQPConfig, entries []model.QueueEntry) error {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil)
	if err != nil {
		return err
	}

	for _, e := range entries {
		body, _ := json.Marshal(map[string]int{"queue_entry_id": e.ID})
		if err := ch.Publish("", q.Name, false, false, amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		}); err != nil {
			return err
		}
	}
	return nil
}
