// Package events publishes fire-and-forget domain events for completed
// hands and finished games onto Kafka, for downstream consumers the
// coordinator itself has no stake in (analytics, notifications).
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
)

// Kind names the event types this publisher emits.
type Kind string

const (
	KindGameCreated   Kind = "game_created"
	KindHandCompleted Kind = "hand_completed"
	KindGameOver      Kind = "game_over"
)

// Event is the wire envelope for every published message.
type Event struct {
	Kind      Kind            `json:"kind"`
	GameCode  string          `json:"game_code"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Config mirrors the producer tuning knobs the teacher's Kafka alert
// producer exposes, narrowed to the async path this publisher uses.
type Config struct {
	Brokers      []string
	Topic        string
	RetryMax     int
	RetryBackoff time.Duration
}

// Publisher is an async Kafka producer for domain events. Publish never
// blocks on broker acknowledgement; delivery failures are only visible
// on the Errors() channel drained by a background goroutine.
type Publisher struct {
	producer sarama.AsyncProducer
	topic    string
}

// NewPublisher connects an async producer to the given brokers.
func NewPublisher(cfg Config) (*Publisher, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.Return.Successes = false
	saramaCfg.Producer.Return.Errors = true
	saramaCfg.Producer.Retry.Max = cfg.RetryMax
	saramaCfg.Producer.Retry.Backoff = cfg.RetryBackoff

	producer, err := sarama.NewAsyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("events: new producer: %w", err)
	}

	p := &Publisher{producer: producer, topic: cfg.Topic}
	go p.drainErrors()
	return p, nil
}

func (p *Publisher) drainErrors() {
	for range p.producer.Errors() {
		// Fire-and-forget: a dropped domain event never fails a caller's
		// request. Delivery errors are discarded here, neither logged
		// nor counted.
	}
}

// Publish emits one event keyed by game code, so all events for a game
// land on the same partition and preserve order for a single consumer.
func (p *Publisher) Publish(kind Kind, gameCode string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("events: marshal payload: %w", err)
	}
	env := Event{Kind: kind, GameCode: gameCode, Timestamp: time.Now(), Payload: data}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("events: marshal envelope: %w", err)
	}

	p.producer.Input() <- &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(gameCode),
		Value: sarama.ByteEncoder(body),
		Headers: []sarama.RecordHeader{
			{Key: []byte("kind"), Value: []byte(kind)},
		},
		Timestamp: time.Now(),
	}
	return nil
}

// Close drains and closes the underlying producer.
func (p *Publisher) Close() error {
	return p.producer.Close()
}
