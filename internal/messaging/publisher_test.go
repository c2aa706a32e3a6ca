package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type fakeConn struct {
	closed      bool
	closeCalled bool
}

func (c *fakeConn) IsClosed() bool { return c.closed }

func (c *fakeConn) Close() error {
	c.closeCalled = true
	c.closed = true
	return nil
}

type fakeChannel struct {
	closed      bool
	closeCalled bool
	published   []string
}

func (ch *fakeChannel) IsClosed() bool { return ch.closed }

func (ch *fakeChannel) Close() error {
	ch.closeCalled = true
	ch.closed = true
	return nil
}

func (ch *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error {
	if ch.closed {
		return amqp091.ErrClosed
	}
	ch.published = append(ch.published, key)
	return nil
}

// newTestPublisher returns a publisher whose dial hands out fresh fakes and
// records them.
func newTestPublisher(t *testing.T) (*Publisher, *[]*fakeConn, *[]*fakeChannel) {
	t.Helper()
	var conns []*fakeConn
	var channels []*fakeChannel
	p := &Publisher{
		logger: zap.NewNop(),
		dial: func() (connection, channel, error) {
			conn, ch := &fakeConn{}, &fakeChannel{}
			conns = append(conns, conn)
			channels = append(channels, ch)
			return conn, ch, nil
		},
	}
	if err := p.connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	return p, &conns, &channels
}

func TestPublisherReconnects(t *testing.T) {
	tests := []struct {
		name       string
		connClosed bool
	}{
		{"channel closed by broker", false},
		{"connection dropped", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, conns, channels := newTestPublisher(t)
			oldConn, oldChannel := (*conns)[0], (*channels)[0]
			oldChannel.closed = true
			oldConn.closed = tt.connClosed

			if err := p.PublishOrderEvent(context.Background(), OrderEvent{Type: OrderPlaced, OrderID: 1}); err != nil {
				t.Fatalf("PublishOrderEvent: %v", err)
			}
			if len(*conns) != 2 {
				t.Fatalf("expected one redial, got %d dials", len(*conns))
			}
			if !oldChannel.closeCalled || !oldConn.closeCalled {
				t.Errorf("old channel and connection should be released before redialing")
			}
			if got := (*channels)[1].published; len(got) != 1 || got[0] != "order.placed" {
				t.Errorf("published on new channel = %v", got)
			}
		})
	}
}

func TestPublisherKeepsHealthyChannel(t *testing.T) {
	p, conns, channels := newTestPublisher(t)
	for i := 0; i < 3; i++ {
		if err := p.PublishOrderEvent(context.Background(), OrderEvent{Type: OrderDeleted, OrderID: uint(i)}); err != nil {
			t.Fatalf("PublishOrderEvent: %v", err)
		}
	}
	if len(*conns) != 1 || len((*channels)[0].published) != 3 {
		t.Errorf("expected 3 publishes on the first channel, got %d dials", len(*conns))
	}
}

func TestPublisherRedialFailure(t *testing.T) {
	p, _, channels := newTestPublisher(t)
	(*channels)[0].closed = true
	p.dial = func() (connection, channel, error) { return nil, nil, errors.New("connection refused") }

	if err := p.PublishOrderEvent(context.Background(), OrderEvent{Type: OrderPlaced}); err == nil {
		t.Fatal("expected an error when the broker is unreachable")
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close after a failed redial: %v", err)
	}
}
