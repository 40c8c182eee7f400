// Package events publishes domain events to Kafka after a write commits.
package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Publisher emits an event. Failures are logged, never returned: the write
// the event describes has already committed.
type Publisher interface {
	Publish(ctx context.Context, eventType string, correlationID int64, payload any)
}

type Nop struct{}

func (Nop) Publish(context.Context, string, int64, any) {}

type sink interface {
	Publish(key, value []byte, headers ...kafka.Header)
}

// Emitter wraps payloads in an Envelope and hands them to the producer.
type Emitter struct {
	out     sink
	service string
	log     *zap.Logger
}

func NewEmitter(p *Producer, service string, log *zap.Logger) *Emitter {
	return &Emitter{out: p, service: service, log: log}
}

func (e *Emitter) Publish(ctx context.Context, eventType string, correlationID int64, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		e.log.Error("encode event payload", zap.String("event_type", eventType), zap.Error(err))
		return
	}
	id := strconv.FormatInt(correlationID, 10)
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      e.service,
		TraceID:       middleware.GetReqID(ctx),
		CorrelationID: id,
		Payload:       body,
	}
	value, err := json.Marshal(ev)
	if err != nil {
		e.log.Error("encode event", zap.String("event_type", eventType), zap.Error(err))
		return
	}
	e.out.Publish([]byte(eventType+":"+id), value,
		kafka.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafka.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
