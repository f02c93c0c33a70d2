package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/wangshifu/cyclemap/internal/core/domain"
	"github.com/wangshifu/cyclemap/internal/core/ports"
)

var _ ports.EventSubscriber = (*Subscriber)(nil)

// Subscriber implements ports.EventSubscriber using NATS JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber with its own connection.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	if err := ensureStreams(js); err != nil {
		conn.Close()
		return nil, err
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// DecodeDay parses a day record message. A body that is not a JSON object, or
// one with out-of-range coordinates, is rejected for good; there is no point
// redelivering it.
func DecodeDay(data []byte) (*domain.DayRecord, error) {
	var day domain.DayRecord
	if err := json.Unmarshal(data, &day); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedDocument, err)
	}
	if err := day.Validate(); err != nil {
		return nil, err
	}
	return &day, nil
}

func (s *Subscriber) SubscribeDayRecords(ctx context.Context, handler func(ctx context.Context, day *domain.DayRecord) error) error {
	sub, err := s.js.Subscribe(SubjectIngestDay, func(msg *nats.Msg) {
		day, err := DecodeDay(msg.Data)
		if err != nil {
			_ = msg.Term()
			return
		}
		if err := handler(ctx, day); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable("day-ingest"),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
