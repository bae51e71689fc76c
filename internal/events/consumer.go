package events

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type Handler interface {
	HandleLeadUnlocked(ctx context.Context, event LeadUnlocked) error
	HandleCreditsPurchased(ctx context.Context, event CreditsPurchased) error
}

var errUnknownEvent = errors.New("unknown event type")

type Consumer struct {
	handler Handler
	log     *zap.Logger
}

func NewConsumer(handler Handler, log *zap.Logger) *Consumer {
	return &Consumer{handler: handler, log: log}
}

// Start registers a manual-ack consumer on the notifications queue and
// processes deliveries until ctx is done or the channel closes.
func (c *Consumer) Start(ctx context.Context, ch *amqp.Channel) error {
	deliveries, err := ch.ConsumeWithContext(ctx, NotificationsQueue, "", false, false, false, false, nil)
	if err != nil {
		return errors.Wrap(err, "register consumer")
	}
	go c.Run(ctx, deliveries)
	return nil
}

func (c *Consumer) Run(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			c.process(ctx, d)
		}
	}
}

// process acks handled messages and dead-letters the rest without requeue,
// so a poison message cannot block the queue.
func (c *Consumer) process(ctx context.Context, d amqp.Delivery) {
	if err := c.dispatch(ctx, d); err != nil {
		c.log.Error("event handling failed",
			zap.String("routing_key", d.RoutingKey),
			zap.String("message_id", d.MessageId),
			zap.Error(err),
		)
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

func (c *Consumer) dispatch(ctx context.Context, d amqp.Delivery) error {
	switch d.RoutingKey {
	case KeyLeadUnlocked:
		var event LeadUnlocked
		if err := json.Unmarshal(d.Body, &event); err != nil {
			return errors.Wrap(err, "decode lead.unlocked")
		}
		return c.handler.HandleLeadUnlocked(ctx, event)
	case KeyCreditsPurchased:
		var event CreditsPurchased
		if err := json.Unmarshal(d.Body, &event); err != nil {
			return errors.Wrap(err, "decode credits.purchased")
		}
		return c.handler.HandleCreditsPurchased(ctx, event)
	default:
		return errors.Wrap(errUnknownEvent, d.RoutingKey)
	}
}
