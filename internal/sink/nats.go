package sink

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/relabs-tech/dprs_gateway/internal/station"
)

// NATS publishes each report as JSON on a subject.
type NATS struct {
	conn    *nats.Conn
	subject string
}

func DialNATS(url, subject, clientName string) (*NATS, error) {
	conn, err := nats.Connect(url, nats.Name(clientName))
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", url, err)
	}
	return &NATS{conn: conn, subject: subject}, nil
}

func (n *NATS) Name() string { return "nats" }

// Send publishes and flushes, so a returned nil means the server has the
// message.
func (n *NATS) Send(ctx context.Context, r station.Report) error {
	payload, err := encode(r)
	if err != nil {
		return err
	}
	if err := n.conn.Publish(n.subject, payload); err != nil {
		return fmt.Errorf("nats publish %s: %w", n.subject, err)
	}
	if err := n.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}
	return nil
}

func (n *NATS) Close() error {
	return n.conn.Drain()
}
