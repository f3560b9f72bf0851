// cmd/server/main.go
package main

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/unclebandit/outreach-backend/internal/config"
	"github.com/unclebandit/outreach-backend/internal/controller"
	"github.com/unclebandit/outreach-backend/internal/db"
	"github.com/unclebandit/outreach-backend/internal/handler"
	"github.com/unclebandit/outreach-backend/internal/logger"
	"github.com/unclebandit/outreach-backend/internal/queue"
	"github.com/unclebandit/outreach-backend/internal/repository"
	"github.com/unclebandit/outreach-backend/internal/resolver"
	"github.com/unclebandit/outreach-backend/internal/service"
	"github.com/unclebandit/outreach-backend/internal/unipile"
)

func main() {
	log := logger.New("server")

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

	dispatch := queue.NewInMemoryQueue(log)
	worker := service.NewWorker(queueRepo, prospectRepo, campaignRepo, accountRepo, client, log)
	queue.StartSendSubscriber(dispatch, worker, log)

	campaignService := &service.CampaignService{
		CampaignRepo: campaignRepo,
		ProspectRepo: prospectRepo,
		QueueRepo:    queueRepo,
	}
	admissionService := &service.AdmissionService{
		CampaignRepo: campaignRepo,
		ProspectRepo: prospectRepo,
		QueueRepo:    queueRepo,
		AccountRepo:  accountRepo,
		Resolver:     res,
		Dedup:        dedup,
		Planner:      planner,
		Dispatch:     dispatch,
		Log:          log,
	}
	recoveryService := &service.RecoveryService{
		CampaignRepo: campaignRepo,
		ProspectRepo: prospectRepo,
		QueueRepo:    queueRepo,
		AccountRepo:  accountRepo,
		Resolver:     res,
		Planner:      planner,
		MaxRetries:   cfg.Admission.MaxRepairRetries,
		Log:          log,
	}

	campaignController := &controller.CampaignController{
		CampaignService:  campaignService,
		AdmissionService: admissionService,
		AMQPURL:          cfg.AMQP.URL,
		AMQPQueue:        cfg.AMQP.Queue,
		Log:              log,
	}
	queueHandler := &handler.QueueHandler{
		QueueRepo:       queueRepo,
		CampaignService: campaignService,
		RecoveryService: recoveryService,
		Log:             log,
	}

	r := chi.NewRouter()

	// Campaign routes
	r.Post("/campaigns", campaignController.CreateCampaign)
	r.Get("/campaigns", campaignController.ListCampaigns)
	r.Get("/campaigns/{id}", queueHandler.GetCampaignWithStats)
	r.Post("/campaigns/{id}/admit", campaignController.AdmitCampaign)
	r.Post("/campaigns/{id}/personalized-preview", campaignController.PersonalizedPreview)

	// Queue routes
	r.Get("/queue/stats", queueHandler.GetQueueStats)
	r.Post("/queue/recover", queueHandler.RecoverQueue)

	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	log.Info().Str("addr", addr).Msg("server running")
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
