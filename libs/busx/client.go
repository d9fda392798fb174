package busx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

var ErrClosed = errors.New("bus client closed")

// Client issues request-reply commands over the bus. It owns a private
// exclusive reply queue and matches replies to callers by correlation id.
// Safe for concurrent use.
type Client struct {
	ch         *amqp091.Channel
	replyQueue string

	mu      sync.Mutex
	pending map[string]chan amqp091.Delivery
	closed  bool
}

func NewClient(bus *Bus) (*Client, error) {
	ch, err := bus.channel()
	if err != nil {
		return nil, err
	}

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, err
	}

	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, err
	}

	c := &Client{
		ch:         ch,
		replyQueue: q.Name,
		pending:    map[string]chan amqp091.Delivery{},
	}
	go c.dispatch(deliveries)
	return c, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return c.ch.Close()
}

// Request publishes payload under the given operation routing key and waits
// for the correlated reply until ctx expires. A reply with ok=false comes
// back as *Error; every other failure is transport-level.
func (c *Client) Request(ctx context.Context, operation string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", operation, err)
	}

	corrID := uuid.NewString()
	waiter := make(chan amqp091.Delivery, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.pending[corrID] = waiter
	err = c.ch.PublishWithContext(ctx, Exchange, operation, false, false, amqp091.Publishing{
		ContentType:   "application/json",
		CorrelationId: corrID,
		ReplyTo:       c.replyQueue,
		Body:          body,
	})
	c.mu.Unlock()
	if err != nil {
		c.forget(corrID)
		return nil, fmt.Errorf("publish %s: %w", operation, err)
	}

	select {
	case <-ctx.Done():
		c.forget(corrID)
		return nil, ctx.Err()
	case d, ok := <-waiter:
		if !ok {
			return nil, ErrClosed
		}
		var reply Reply
		if err := json.Unmarshal(d.Body, &reply); err != nil {
			return nil, fmt.Errorf("decode %s reply: %w", operation, err)
		}
		if !reply.OK {
			if reply.Error == nil {
				return nil, NewError("internal", "reply missing error detail")
			}
			return nil, reply.Error
		}
		return reply.Data, nil
	}
}

func (c *Client) dispatch(deliveries <-chan amqp091.Delivery) {
	for d := range deliveries {
		c.mu.Lock()
		waiter, ok := c.pending[d.CorrelationId]
		if ok {
			delete(c.pending, d.CorrelationId)
		}
		c.mu.Unlock()
		if ok {
			waiter <- d
		}
	}

	// Channel closed: fail all in-flight requests.
	c.mu.Lock()
	c.closed = true
	for id, waiter := range c.pending {
		close(waiter)
		delete(c.pending, id)
	}
	c.mu.Unlock()
}

func (c *Client) forget(corrID string) {
	c.mu.Lock()
	delete(c.pending, corrID)
	c.mu.Unlock()
}
