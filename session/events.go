package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/wxcuop/pyfixmsg-plus/fix"
	"github.com/wxcuop/pyfixmsg-plus/statemachine"
)

// Event is an observable state-change notification, per spec.md §9's
// observer pattern: "a small list of listeners receiving (oldState,
// newState, event) notifications... registration is static at engine
// construction to avoid races."
type Event struct {
	Session fix.SessionID   `json:"session"`
	From    statemachine.State `json:"from"`
	To      statemachine.State `json:"to"`
	Cause   statemachine.Event `json:"cause"`
	At      time.Time          `json:"at"`
}

// Sink receives Events fanned out alongside the in-process listeners
// already wired through statemachine.Machine's own Listener mechanism.
// This is the extension point for a shared, out-of-process observability
// pipeline (spec.md §7's "structured observability events").
type Sink interface {
	Publish(Event)
}

// KafkaSink publishes Events to a Kafka topic, grounded on
// wyfcoding-financialTrading's pkg/mq.KafkaProducer: a *kafka.Writer per
// sink, JSON-encoded payloads, best-effort delivery: Publish drops marshal
// and write errors without reporting them.
type KafkaSink struct {
	writer *kafka.Writer
	topic  string
}

// NewKafkaSink creates its own *kafka.Writer for topic on brokers. The sink
// owns that writer; Close closes it.
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			AllowAutoTopicCreation: true,
			RequiredAcks:           kafka.RequireOne,
		},
		topic: topic,
	}
}

func (k *KafkaSink) Publish(evt Event) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return
	}
	_ = k.writer.WriteMessages(context.Background(), kafka.Message{
		Key:   []byte(evt.Session.String()),
		Value: payload,
	})
}

// Close releases the underlying Kafka writer.
func (k *KafkaSink) Close() error { return k.writer.Close() }
