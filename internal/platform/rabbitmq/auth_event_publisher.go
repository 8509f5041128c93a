package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"lumina/internal/backend"
)

// AuthEventPublisher fans user-wide auth events out to every replica through
// a fanout exchange.
type AuthEventPublisher struct {
	conn     *amqp.Connection
	exchange string
}

func NewAuthEventPublisher(conn *amqp.Connection, exchange string) *AuthEventPublisher {
	return &AuthEventPublisher{
		conn:     conn,
		exchange: exchange,
	}
}

func (p *AuthEventPublisher) Publish(ctx context.Context, evt backend.UserEvent) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	if err := DeclareAuthExchange(ch, p.exchange); err != nil {
		return err
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal auth event failed: %w", err)
	}

	if err := ch.PublishWithContext(
		ctx,
		p.exchange,
		"",
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        payload,
			Timestamp:   evt.OccurredAt,
		},
	); err != nil {
		return fmt.Errorf("publish auth event failed: %w", err)
	}
	return nil
}

// DeclareAuthExchange declares the durable fanout exchange auth events go
// through. Publisher and consumers both call it.
func DeclareAuthExchange(ch *amqp.Channel, exchange string) error {
	err := ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeFanout,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare exchange failed: %w", err)
	}
	return nil
}
