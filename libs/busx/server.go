package busx

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Handler processes one inbound command payload and returns the success
// result, or an error. Returning *Error propagates its code to the caller;
// any other error is reported as "internal".
type Handler func(ctx context.Context, payload json.RawMessage) (any, error)

// Server consumes a service's command queue and dispatches by operation
// name. One server per process; register all handlers before Run.
type Server struct {
	bus      *Bus
	logger   *slog.Logger
	service  string
	handlers map[string]Handler
}

func NewServer(bus *Bus, logger *slog.Logger, service string) *Server {
	return &Server{
		bus:      bus,
		logger:   logger,
		service:  service,
		handlers: map[string]Handler{},
	}
}

func (s *Server) Handle(operation string, h Handler) {
	s.handlers[operation] = h
}

// Run consumes until ctx is cancelled, re-establishing the channel after
// transport failures.
func (s *Server) Run(ctx context.Context) {
	for {
		if err := s.consume(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("bus consume failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(1 * time.Second):
		}
	}
}

func (s *Server) consume(ctx context.Context) error {
	ch, err := s.bus.channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	queue := s.service + ".rpc"
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return err
	}
	if err := ch.QueueBind(queue, s.service+".*", Exchange, false, nil); err != nil {
		return err
	}
	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			s.serve(ctx, ch, d)
		}
	}
}

func (s *Server) serve(ctx context.Context, ch *amqp091.Channel, d amqp091.Delivery) {
	defer func() { _ = d.Ack(false) }()

	operation := d.RoutingKey
	handler, ok := s.handlers[operation]

	var body []byte
	if !ok {
		s.logger.Warn("unknown operation", "operation", operation)
		body = errorReply(NewError("unknown_operation", operation))
	} else {
		result, err := handler(ctx, d.Body)
		switch {
		case err == nil:
			encoded, encErr := okReply(result)
			if encErr != nil {
				s.logger.Error("reply encode failed", "operation", operation, "err", encErr)
				body = errorReply(NewError("internal", "reply encode failed"))
			} else {
				body = encoded
			}
		default:
			var busErr *Error
			if errors.As(err, &busErr) {
				body = errorReply(busErr)
			} else {
				s.logger.Error("handler failed", "operation", operation, "err", err)
				body = errorReply(NewError("internal", "command failed"))
			}
		}
	}

	if d.ReplyTo == "" {
		return
	}
	err := ch.PublishWithContext(ctx, "", d.ReplyTo, false, false, amqp091.Publishing{
		ContentType:   "application/json",
		CorrelationId: d.CorrelationId,
		Body:          body,
	})
	if err != nil {
		s.logger.Error("reply publish failed", "operation", operation, "err", err)
	}
}
