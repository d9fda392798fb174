package busx

import (
	"context"
	"errors"

	"github.com/rabbitmq/amqp091-go"
)

// Exchange is the topic exchange all request-reply commands flow through.
// Routing keys are logical operation names, e.g. "patients.findById".
const Exchange = "clinic.rpc"

type Bus struct {
	conn *amqp091.Connection
}

func Open(url string) (*Bus, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, err
	}
	return &Bus{conn: conn}, nil
}

func (b *Bus) Close() {
	if b != nil && b.conn != nil {
		_ = b.conn.Close()
	}
}

// channel opens a fresh channel with the command exchange declared.
func (b *Bus) channel() (*amqp091.Channel, error) {
	ch, err := b.conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, err
	}
	return ch, nil
}

func ReadyCheck(bus *Bus) func(context.Context) error {
	return func(context.Context) error {
		if bus == nil || bus.conn == nil {
			return errors.New("bus not configured")
		}
		if bus.conn.IsClosed() {
			return errors.New("bus connection closed")
		}
		return nil
	}
}
