// File: internal/infra/amqp/event_sink.go
package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	streadway "github.com/streadway/amqp"

	"gemini-batch-ocr/internal/domain/model"
	"gemini-batch-ocr/internal/domain/ports/adapter"
)

const (
	EventBatchStarted  = "ocr.batch.started"
	EventItemRetrying  = "ocr.item.retrying"
	EventBatchComplete = "ocr.batch.complete"
	itemEventPrefix    = "ocr.item."
)

// Publisher is the part of *amqp.Channel the sink needs.
type Publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg streadway.Publishing) error
}

// Event is the JSON body of every message. The routing key equals Type.
type Event struct {
	Type    string              `json:"type"`
	BatchID string              `json:"batch_id"`
	Batch   *model.BatchSummary `json:"batch,omitempty"`
	Item    *model.ItemResult   `json:"item,omitempty"`
	Attempt int                 `json:"attempt,omitempty"`
	At      time.Time           `json:"at"`
}

var _ adapter.ResultSink = (*EventSink)(nil)

// EventSink publishes batch progress to a topic exchange. Publish failures
// are logged and never interrupt the batch.
type EventSink struct {
	pub      Publisher
	exchange string
	log      *zerolog.Logger
	now      func() time.Time
}

func NewEventSink(pub Publisher, exchange string, log *zerolog.Logger) *EventSink {
	return &EventSink{pub: pub, exchange: exchange, log: log, now: time.Now}
}

// Dial connects to url, declares exchange as a durable topic exchange and
// returns the sink together with a close function.
func Dial(url, exchange string, log *zerolog.Logger) (*EventSink, func() error, error) {
	conn, err := streadway.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // kind
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	closer := func() error {
		_ = ch.Close()
		return conn.Close()
	}
	return NewEventSink(ch, exchange, log), closer, nil
}

func (s *EventSink) publish(ev Event) {
	ev.At = s.now()
	body, err := json.Marshal(ev)
	if err != nil {
		s.log.Error().Err(err).Str("type", ev.Type).Msg("marshal event failed")
		return
	}
	err = s.pub.Publish(
		s.exchange, // exchange
		ev.Type,    // routing key
		false,      // mandatory
		false,      // immediate
		streadway.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: streadway.Persistent,
			Timestamp:    ev.At,
		},
	)
	if err != nil {
		s.log.Warn().Err(err).Str("type", ev.Type).Str("batch_id", ev.BatchID).Msg("publish event failed")
	}
}

func (s *EventSink) OnBatchStarted(ctx context.Context, run model.BatchSummary) {
	s.publish(Event{Type: EventBatchStarted, BatchID: run.ID, Batch: &run})
}

func (s *EventSink) OnItemStatusChanged(ctx context.Context, batchID string, res model.ItemResult) {
	s.publish(Event{Type: itemEventPrefix + string(res.Status), BatchID: batchID, Item: &res})
}

func (s *EventSink) OnRetrying(ctx context.Context, batchID string, res model.ItemResult, attempt int) {
	s.publish(Event{Type: EventItemRetrying, BatchID: batchID, Item: &res, Attempt: attempt})
}

func (s *EventSink) OnBatchComplete(ctx context.Context, run model.BatchSummary) {
	s.publish(Event{Type: EventBatchComplete, BatchID: run.ID, Batch: &run})
}
