package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/dprs_gateway/internal/config"
	"github.com/relabs-tech/dprs_gateway/internal/station"
)

// RunConsoleMQTT prints every fix published on the fix topic until ctx is
// cancelled.
func RunConsoleMQTT(ctx context.Context) error {
	cfg := config.Get()
	if cfg == nil {
		return errors.New("config not initialised")
	}

	client, err := connectMQTT(cfg.MQTT.Broker, cfg.MQTT.ClientIDConsole)
	if err != nil {
		return err
	}

	err = subscribeReports(client, cfg.MQTT.TopicFix, func(r station.Report) {
		fmt.Println(formatConsoleLine(r, time.Now()))
	})
	if err != nil {
		client.Disconnect(250)
		return err
	}

	<-ctx.Done()
	log.Info("console: shutting down")
	client.Disconnect(250)
	return nil
}

func formatConsoleLine(r station.Report, now time.Time) string {
	line := fmt.Sprintf(
		"[DPRS] %-9s lat=%.6f (%s) lon=%.6f (%s) geohash=%s",
		r.ID, r.Latitude, nmea.FormatDMS(r.Latitude), r.Longitude, nmea.FormatDMS(r.Longitude), r.Geohash,
	)
	if r.DistanceKm != nil {
		line += fmt.Sprintf(" dist=%.1fkm", *r.DistanceKm)
	}
	return line + " heard " + r.Age(now)
}
