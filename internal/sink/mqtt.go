package sink

import (
	"context"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/dprs_gateway/internal/station"
)

// MQTT publishes each report as retained JSON on a single topic, so a
// subscriber that connects late still sees the last fix.
type MQTT struct {
	client mqtt.Client
	topic  string
}

// NewMQTT wraps an already connected client.
func NewMQTT(client mqtt.Client, topic string) *MQTT {
	return &MQTT{client: client, topic: topic}
}

func (m *MQTT) Name() string { return "mqtt" }

func (m *MQTT) Send(ctx context.Context, r station.Report) error {
	payload, err := encode(r)
	if err != nil {
		return err
	}

	token := m.client.Publish(m.topic, 0, true, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("mqtt publish %s: %w", m.topic, ctx.Err())
	}
	if token.Error() != nil {
		return fmt.Errorf("mqtt publish %s: %w", m.topic, token.Error())
	}
	return nil
}

func (m *MQTT) Close() error {
	m.client.Disconnect(250)
	return nil
}
