package events

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func TestProducerFlushesOnClose(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, 8, zap.NewNop())
	p.Start()

	p.Publish([]byte("a"), []byte("1"))
	p.Publish([]byte("b"), []byte("2"))
	p.Close()
	p.Close()
	p.WaitClosed()

	assert.Len(t, w.msgs, 2)
	assert.True(t, w.closed)
}

func TestProducerDropsWhenFull(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, 1, zap.NewNop())

	p.Publish([]byte("a"), []byte("1"))
	p.Publish([]byte("b"), []byte("2"))

	p.Start()
	p.Close()
	p.WaitClosed()
	assert.Len(t, w.msgs, 1)
}

func TestEmitterWrapsPayload(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, 8, zap.NewNop())
	p.Start()
	e := NewEmitter(p, "stockapp-api", zap.NewNop())

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-1")
	e.Publish(ctx, EventSaleCreated, 42, SalePayload{SaleID: 42, CustomerID: 7, TotalAmount: decimal.NewFromInt(25)})
	p.Close()
	p.WaitClosed()

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "SaleCreated:42", string(msg.Key))

	var ev Envelope
	require.NoError(t, json.Unmarshal(msg.Value, &ev))
	assert.Equal(t, EventSaleCreated, ev.EventType)
	assert.Equal(t, "42", ev.CorrelationID)
	assert.Equal(t, "req-1", ev.TraceID)
	assert.Equal(t, "stockapp-api", ev.Producer)
	assert.NotEmpty(t, ev.EventID)

	var payload SalePayload
	require.NoError(t, json.Unmarshal(ev.Payload, &payload))
	assert.EqualValues(t, 7, payload.CustomerID)
	assert.True(t, decimal.NewFromInt(25).Equal(payload.TotalAmount))
}
