package queue

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
)

// TopicContentPostings carries jobs for due queue items.
const TopicContentPostings = "content_postings"

// PostingJob is the wire payload of one posting job.
type PostingJob struct {
	QueueItemID int `json:"queue_item_id"`
}

// Publisher sends a message to a topic.
type Publisher interface {
	Publish(topic string, payload any) error
}

// Queue adds in-process subscription on top of publishing. The in-memory
// implementation serves single-process deployments and tests; production
// runs the AMQP publisher with cmd/worker consuming.
type Queue interface {
	Publisher
	Subscribe(topic string, handler func(payload any) error) error
}

// InMemoryQueue dispatches to in-process subscribers with retry.
type InMemoryQueue struct {
	mu       sync.Mutex
	handlers map[string][]func(payload any) error
	Logger   zerolog.Logger
}

func NewInMemoryQueue(logger zerolog.Logger) *InMemoryQueue {
	return &InMemoryQueue{
		handlers: make(map[string][]func(payload any) error),
		Logger:   logger,
	}
}

// jobEnvelope wraps a payload with retry bookkeeping.
type jobEnvelope struct {
	Payload    any
	RetryCount int
	MaxRetries int
}

// Publish hands the payload to every subscriber of the topic.
func (q *InMemoryQueue) Publish(topic string, payload any) error {
	q.mu.Lock()
	handlers := q.handlers[topic]
	q.mu.Unlock()

	if len(handlers) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}

	job := jobEnvelope{Payload: payload, MaxRetries: 3}
	for _, handler := range handlers {
		go q.processJob(topic, handler, job)
	}
	return nil
}

// processJob retries with backoff and drops the job after MaxRetries.
func (q *InMemoryQueue) processJob(topic string, handler func(payload any) error, job jobEnvelope) {
	for job.RetryCount <= job.MaxRetries {
		err := handler(job.Payload)
		if err == nil {
			return
		}

		job.RetryCount++
		q.Logger.Warn().Err(err).
			Str("topic", topic).
			Int("attempt", job.RetryCount).
			Int("max_retries", job.MaxRetries).
			Msg("job failed")

		if job.RetryCount > job.MaxRetries {
			q.Logger.Error().Str("topic", topic).Msg("job permanently failed")
			return
		}

		time.Sleep(time.Duration(job.RetryCount*500) * time.Millisecond)
	}
}

// Subscribe registers a handler for a topic.
func (q *InMemoryQueue) Subscribe(topic string, handler func(payload any) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

// AMQPPublisher publishes JSON jobs to a durable RabbitMQ queue named after
// the topic.
type AMQPPublisher struct {
	Channel *amqp.Channel
}

// NewAMQPPublisher declares the posting queue and returns a publisher
// bound to the channel.
func NewAMQPPublisher(ch *amqp.Channel) (*AMQPPublisher, error) {
	_, err := ch.QueueDeclare(
		TopicContentPostings,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("declare queue %s: %w", TopicContentPostings, err)
	}
	return &AMQPPublisher{Channel: ch}, nil
}

// Publish marshals the payload and publishes it persistently.
func (p *AMQPPublisher) Publish(topic string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	return p.Channel.Publish(
		"",    // default exchange
		topic, // routing key = queue name
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

// StartPostingSubscriber wires an in-process executor to the posting topic.
// Used when the server runs without RabbitMQ.
func StartPostingSubscriber(q Queue, execute func(itemID int) error, logger zerolog.Logger) {
	err := q.Subscribe(TopicContentPostings, func(payload any) error {
		job, ok := payload.(PostingJob)
		if !ok {
			logger.Warn().Msg("invalid posting job payload")
			return nil
		}
		return execute(job.QueueItemID)
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to subscribe posting executor")
	}
}
