// Package outbox publishes working-set change events to Kafka.
package outbox

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(context.Context, string, ...kafka.Message) error
}

type schemaRegistrar interface {
	EnsureSchema(context.Context, string, string) (int, error)
}

// Publisher frames events with their registered schema id and writes them to
// a single topic keyed by the affected activity.
type Publisher struct {
	producer      messageWriter
	registry      schemaRegistrar
	topic         string
	schemaIDCache sync.Map
	now           func() time.Time
}

// NewPublisher constructs a Publisher. A nil registry frames every event with
// schema id 0.
func NewPublisher(producer messageWriter, registry schemaRegistrar, topic string) *Publisher {
	return &Publisher{
		producer: producer,
		registry: registry,
		topic:    topic,
		now:      time.Now,
	}
}

// Publish encodes payload as JSON and writes it to the events topic.
func (p *Publisher) Publish(ctx context.Context, eventType, key string, payload any) (err error) {
	start := time.Now()
	defer func() {
		publishDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			failedCounter.WithLabelValues(eventType).Inc()
			return
		}
		deliveredCounter.WithLabelValues(eventType).Inc()
	}()

	meta, ok := schemaCatalog[eventType]
	if !ok {
		return fmt.Errorf("no schema metadata for event_type=%s", eventType)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	schemaID, err := p.schemaID(ctx, eventType, meta)
	if err != nil {
		return err
	}

	record := kafka.Message{
		Key:   []byte(key),
		Value: encodeWireFormat(schemaID, body),
		Time:  p.now().UTC(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
			{Key: "event_id", Value: []byte(uuid.NewString())},
			{Key: "schema_subject", Value: []byte(p.subject(eventType))},
		},
	}
	return p.producer.WriteMessages(ctx, p.topic, record)
}

func (p *Publisher) subject(eventType string) string {
	return fmt.Sprintf("%s-%s-value", p.topic, eventType)
}

func (p *Publisher) schemaID(ctx context.Context, eventType string, meta SchemaCatalogEntry) (int, error) {
	if p.registry == nil {
		return 0, nil
	}
	subject := p.subject(eventType)
	if cached, found := p.schemaIDCache.Load(subject); found {
		return cached.(int), nil
	}
	id, err := p.registry.EnsureSchema(ctx, subject, meta.Schema)
	if err != nil {
		return 0, err
	}
	p.schemaIDCache.Store(subject, id)
	return id, nil
}

// encodeWireFormat applies Confluent framing for Schema Registry aware payloads.
func encodeWireFormat(schemaID int, payload []byte) []byte {
	frame := make([]byte, 5+len(payload))
	frame[0] = 0
	binary.BigEndian.PutUint32(frame[1:5], uint32(schemaID))
	copy(frame[5:], payload)
	return frame
}
