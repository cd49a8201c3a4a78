package poller

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/vhpx/pleasebuyus-sub000/internal/events"
	"github.com/vhpx/pleasebuyus-sub000/internal/ledger"
)

const retryDelay = time.Second

// MessageReader is the part of *kafka.Reader the poller needs.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Poller listens for checkouts completed on other instances and drops their
// in-memory copy of the cart, so the next request re-reads the cleared cart
// from the shared store.
type Poller struct {
	carts  *ledger.Registry
	reader MessageReader
	origin string
	logger *zap.Logger
}

func NewKafkaReader(topic, groupID string, brokers ...string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
}

// NewPoller ignores events published by origin, the id of this instance.
func NewPoller(carts *ledger.Registry, reader MessageReader, origin string, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{carts: carts, reader: reader, origin: origin, logger: logger}
}

func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		m, err := p.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("error reading message", zap.Error(err))
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				return
			}
			continue
		}

		p.handleMessage(m)
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.logger.Warn("error closing reader", zap.Error(err))
	}
}

func (p *Poller) handleMessage(m kafka.Message) {
	if t := eventType(m); t != "" && t != events.TypeCheckoutCompleted {
		p.logger.Debug("skipping event", zap.String("event_type", t))
		return
	}

	var ev events.CheckoutCompleted
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		p.logger.Warn("error parsing message", zap.Error(err), zap.Int64("offset", m.Offset))
		return
	}
	if ev.SessionID == "" {
		p.logger.Warn("missing session_id", zap.String("bill_id", ev.BillID))
		return
	}
	if ev.Origin != "" && ev.Origin == p.origin {
		return
	}

	p.carts.Forget(ev.SessionID)
	p.logger.Debug("cart dropped after remote checkout",
		zap.String("session_id", ev.SessionID),
		zap.String("bill_id", ev.BillID),
	)
}

func eventType(m kafka.Message) string {
	for _, h := range m.Headers {
		if h.Key == "event_type" {
			return string(h.Value)
		}
	}
	return ""
}
