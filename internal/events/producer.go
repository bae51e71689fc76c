package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
)

// channel is the subset of *amqp.Channel the producer needs.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type Producer struct {
	ch channel
}

func NewProducer(ch channel) *Producer {
	return &Producer{ch: ch}
}

func (p *Producer) PublishLeadUnlocked(ctx context.Context, event LeadUnlocked) error {
	return p.publish(ctx, KeyLeadUnlocked, event)
}

func (p *Producer) PublishCreditsPurchased(ctx context.Context, event CreditsPurchased) error {
	return p.publish(ctx, KeyCreditsPurchased, event)
}

func (p *Producer) publish(ctx context.Context, key string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "encode event")
	}
	err = p.ch.PublishWithContext(ctx, ExchangeName, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Type:         key,
		Body:         body,
	})
	if err != nil {
		return errors.Wrapf(err, "publish %s", key)
	}
	return nil
}
