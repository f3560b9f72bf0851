package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// TopicSendDispatch carries queue entry ids that are due for sending.
const TopicSendDispatch = "send_dispatch"

// Queue interface
type Queue interface {
	Publish(topic string, payload any) error
	Subscribe(topic string, handler func(payload any) error) error
}

// InMemoryQueue is an in-process pub/sub with retry, used by single-process
// deployments. Distributed deployments go through AMQP instead.
type InMemoryQueue struct {
	mu       sync.Mutex
	handlers map[string][]func(payload any) error
	log      zerolog.Logger
}

// NewInMemoryQueue creates a new queue
func NewInMemoryQueue(log zerolog.Logger) *InMemoryQueue {
	return &InMemoryQueue{
		handlers: make(map[string][]func(payload any) error),
		log:      log,
	}
}

// JobPayload wraps a message payload with retry info
type JobPayload struct {
	Payload    any
	RetryCount int
	MaxRetries int
}

// Publish sends a message to all subscribers
func (q *InMemoryQueue) Publish(topic string, payload any) error {
	q.mu.Lock()
	handlers := q.handlers[topic]
	q.mu.Unlock()

	if len(handlers) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}

	job := JobPayload{
		Payload:    payload,
		RetryCount: 0,
		MaxRetries: 3,
	}

	for _, handler := range handlers {
		go q.processJob(topic, handler, job)
	}

	return nil
}

// processJob handles retries and errors
func (q *InMemoryQueue) processJob(topic string, handler func(payload any) error, job JobPayload) {
	for job.RetryCount <= job.MaxRetries {
		err := handler(job.Payload)
		if err == nil {
			return // ACK
		}

		job.RetryCount++
		q.log.Warn().Err(err).
			Str("topic", topic).
			Int("attempt", job.RetryCount).
			Int("max_retries", job.MaxRetries).
			Msg("job failed")

		if job.RetryCount > job.MaxRetries {
			q.log.Error().
				Str("topic", topic).
				Interface("payload", job.Payload).
				Msg("job permanently failed")
			return // No requeue
		}

		// Backoff before retry
		time.Sleep(time.Duration(job.RetryCount*500) * time.Millisecond)
	}
}

// Subscribe adds a handler for a topic
func (q *InMemoryQueue) Subscribe(topic string, handler func(payload any) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

// EntryProcessor handles one due queue entry id.
type EntryProcessor interface {
	ProcessEntry(ctx context.Context, entryID int) error
}

// StartSendSubscriber wires the send worker to the in-process dispatch
// topic. Payloads are queue entry ids.
func StartSendSubscriber(q Queue, processor EntryProcessor, log zerolog.Logger) {
	err := q.Subscribe(TopicSendDispatch, func(payload any) error {
		entryID, ok := payload.(int)
		if !ok {
			log.Warn().Interface("payload", payload).Msg("invalid dispatch payload, expected int")
			return nil // no retry
		}
		return processor.ProcessEntry(context.Background(), entryID)
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to start send subscriber")
	}
}
