package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/streadway/amqp"

	"github.com/relabs-tech/dprs_gateway/internal/station"
)

type amqpChannel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQP publishes each report as JSON to a durable fanout exchange.
type AMQP struct {
	conn     *amqp.Connection
	ch       amqpChannel
	exchange string
}

func DialAMQP(url, exchange string) (*AMQP, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp declare exchange %s: %w", exchange, err)
	}
	return &AMQP{conn: conn, ch: ch, exchange: exchange}, nil
}

func (a *AMQP) Name() string { return "amqp" }

func (a *AMQP) Send(ctx context.Context, r station.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := encode(r)
	if err != nil {
		return err
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    r.ReceivedAt,
		AppId:        "dprs-gateway",
		Type:         "dprs.fix",
		Body:         payload,
	}
	if err := a.ch.Publish(a.exchange, r.ID, false, false, msg); err != nil {
		return fmt.Errorf("amqp publish %s: %w", a.exchange, err)
	}
	return nil
}

func (a *AMQP) Close() error {
	err := a.ch.Close()
	if a.conn != nil {
		err = errors.Join(err, a.conn.Close())
	}
	return err
}
