package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func TestPublishCheckoutCompleted(t *testing.T) {
	w := &recordingWriter{}
	p := NewKafkaPublisher(w, "node-a", zap.NewNop())

	ev := CheckoutCompleted{
		BillID:      "bill-1",
		SessionID:   "s1",
		UserID:      "u1",
		Total:       decimal.RequireFromString("109.97"),
		Currency:    "USD",
		ItemCount:   3,
		CompletedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.NoError(t, p.PublishCheckoutCompleted(context.Background(), ev))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "bill-1", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, TypeCheckoutCompleted, string(msg.Headers[0].Value))

	var got CheckoutCompleted
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, "s1", got.SessionID)
	assert.Equal(t, "node-a", got.Origin)
	assert.True(t, ev.Total.Equal(got.Total))
}

func TestPublishCheckoutCompleted_WriterError(t *testing.T) {
	boom := errors.New("broker down")
	p := NewKafkaPublisher(&recordingWriter{err: boom}, "node-a", nil)

	err := p.PublishCheckoutCompleted(context.Background(), CheckoutCompleted{BillID: "b"})
	assert.ErrorIs(t, err, boom)
}
