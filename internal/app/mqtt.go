package app

import (
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/dprs_gateway/internal/station"
)

func connectMQTT(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to MQTT broker %s: %w", broker, token.Error())
	}
	log.WithField("client_id", clientID).Infof("connected to MQTT broker at %s", broker)
	return client, nil
}

// reportHandler decodes a fix message and passes it on; bad payloads are
// logged and dropped.
func reportHandler(handle func(station.Report)) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		var r station.Report
		if err := json.Unmarshal(msg.Payload(), &r); err != nil {
			log.WithError(err).WithField("topic", msg.Topic()).Warn("report unmarshal error")
			return
		}
		handle(r)
	}
}

func subscribeReports(client mqtt.Client, topic string, handle func(station.Report)) error {
	token := client.Subscribe(topic, 0, reportHandler(handle))
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", topic, token.Error())
	}
	log.Infof("subscribed to MQTT topic %s", topic)
	return nil
}
