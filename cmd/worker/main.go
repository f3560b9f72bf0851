package main

import (
	"context"
	"encoding/json"

	"github.com/streadway/amqp"

	"github.com/unclebandit/outreach-backend/internal/config"
	"github.com/unclebandit/outreach-backend/internal/db"
	"github.com/unclebandit/outreach-backend/internal/logger"
	"github.com/unclebandit/outreach-backend/internal/repository"
	"github.com/unclebandit/outreach-backend/internal/service"
	"github.com/unclebandit/outreach-backend/internal/unipile"
)

type dispatchJob struct {
	QueueEntryID int `json:"queue_entry_id"`
}

func main() {
	log := logger.New("worker")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	conn, err := db.Connect(cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer conn.Close()

	queueRepo := &repository.QueueRepository{DB: conn}
	prospectRepo := &repository.ProspectRepository{DB: conn}
	campaignRepo := &repository.CampaignRepository{DB: conn}
	accountRepo := &repository.AccountRepository{DB: conn}

	client := unipile.NewClient(cfg.Unipile, log)
	worker := service.NewWorker(queueRepo, prospectRepo, campaignRepo, accountRepo, client, log)

	// Connect to RabbitMQ
	amqpConn, err := amqp.Dial(cfg.AMQP.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer amqpConn.Close()

	ch, err := amqpConn.Channel()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open a channel")
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(
		cfg.AMQP.Queue, // name
		true,           // durable
		false,          // delete when unused
		false,          // exclusive
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to declare queue")
	}

	msgs, err := ch.Consume(
		q.Name,
		"",
		false, // autoAck = false for reliability
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to register consumer")
	}

	forever := make(chan bool)

	go func() {
		for d := range msgs {
			var job dispatchJob
			if err := json.Unmarshal(d.Body, &job); err != nil {
				log.Warn().Err(err).Msg("invalid job payload")
				d.Ack(false)
				continue
			}

			if err := worker.ProcessEntry(context.Background(), job.QueueEntryID); err != nil {
				log.Warn().Err(err).Int("entry_id", job.QueueEntryID).Msg("failed to process entry")
				// Retry logic: requeue up to 3 times
				var retryCount int
				if d.Headers["x-retry-count"] != nil {
					retryCount, _ = d.Headers["x-retry-count"].(int)
				}
				if retryCount < 3 {
					d.Nack(false, true) // requeue
					continue
				}
			}

			d.Ack(false)
		}
	}()

	log.Info().Str("queue", q.Name).Msg("worker running, waiting for messages")
	<-forever
}
