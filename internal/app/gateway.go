// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	nmea "github.com/adrianmo/go-nmea"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/dprs_gateway/internal/config"
	"github.com/relabs-tech/dprs_gateway/internal/dprs"
	"github.com/relabs-tech/dprs_gateway/internal/metrics"
	"github.com/relabs-tech/dprs_gateway/internal/serialline"
	"github.com/relabs-tech/dprs_gateway/internal/sink"
	"github.com/relabs-tech/dprs_gateway/internal/station"
)

// Gateway runs the read -> parse -> forward loop on a single goroutine.
type Gateway struct {
	sink    sink.Sink
	builder *station.Builder
	metrics *metrics.Metrics
}

func NewGateway(s sink.Sink, b *station.Builder, m *metrics.Metrics) *Gateway {
	return &Gateway{sink: s, builder: b, metrics: m}
}

// Run consumes lines until the source is exhausted, fails, or ctx is done.
// EOF and cancellation end the loop without error.
func (g *Gateway) Run(ctx context.Context, lines *serialline.Reader) error {
	for ctx.Err() == nil {
		line, err := lines.Next()
		switch {
		case errors.Is(err, serialline.ErrLineTooLong):
			g.metrics.LineOversized()
			log.Warn("dropping oversized line")
			continue
		case errors.Is(err, io.EOF):
			log.Info("end of input")
			return nil
		case err != nil:
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read line: %w", err)
		}

		g.HandleLine(ctx, line)
	}
	return nil
}

// HandleLine processes one line and reports whether it was forwarded. The
// sink is called at most once per line.
func (g *Gateway) HandleLine(ctx context.Context, line string) bool {
	g.metrics.LineRead()

	pkt, outcome := dprs.Parse(line)
	g.metrics.Parsed(outcome)

	switch outcome {
	case dprs.NotRecognized:
		log.WithField("line", line).Debug("ignoring line")
		return false
	case dprs.Malformed:
		log.WithField("line", line).Debug("malformed packet")
		return false
	case dprs.NoPosition:
		log.WithField("id", pkt.Identifier).Debug("packet without position")
		return false
	}

	report, ok := g.builder.Build(pkt, line)
	if !ok {
		return false
	}

	fields := log.Fields{
		"id":  report.ID,
		"lat": nmea.FormatDMS(report.Latitude),
		"lon": nmea.FormatDMS(report.Longitude),
	}
	if report.DistanceKm != nil {
		fields["distance_km"] = fmt.Sprintf("%.1f", *report.DistanceKm)
	}

	err := g.sink.Send(ctx, report)
	g.metrics.Forwarded(report)
	if err != nil {
		for _, name := range sink.FailedSinks(err) {
			g.metrics.SinkFailed(name)
		}
		log.WithFields(fields).WithError(err).Warn("forward failed")
		return true
	}
	log.WithFields(fields).Info("forwarded position")
	return true
}

// RunGateway wires the configured sinks to the serial port, or to a replay
// file when replayPath is set, and runs until ctx is cancelled.
func RunGateway(ctx context.Context, replayPath string) error {
	cfg := config.Get()
	if cfg == nil {
		return errors.New("config not initialised")
	}

	sinks, err := openSinks(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := sinks.Close(); err != nil {
			log.WithError(err).Warn("closing sinks")
		}
	}()

	m := metrics.New()
	if cfg.Status.Addr != "" {
		go func() {
			if err := serveHTTP(ctx, cfg.Status.Addr, newStatusRouter(m)); err != nil {
				log.WithError(err).Error("status server stopped")
			}
		}()
		log.Infof("status server listening on %s", cfg.Status.Addr)
	}

	src, err := openSource(cfg, replayPath)
	if err != nil {
		return err
	}
	defer src.Close()

	// a blocked serial read only returns once the port is closed
	stop := context.AfterFunc(ctx, func() { src.Close() })
	defer stop()

	builder := station.NewBuilder(cfg.Home.Enable, cfg.Home.Latitude, cfg.Home.Longitude)
	g := NewGateway(sinks, builder, m)
	return g.Run(ctx, serialline.NewReader(src, cfg.Serial.MaxLineBytes))
}

func openSource(cfg *config.Config, replayPath string) (io.ReadCloser, error) {
	if replayPath != "" {
		f, err := os.Open(replayPath)
		if err != nil {
			return nil, fmt.Errorf("open replay file: %w", err)
		}
		log.Infof("replaying %s", replayPath)
		return f, nil
	}

	port, err := serialline.Open(serialline.Options{
		PortName: cfg.Serial.Port,
		BaudRate: cfg.Serial.BaudRate,
	})
	if err != nil {
		return nil, err
	}
	log.Infof("serial port opened on %s at %d baud", cfg.Serial.Port, cfg.Serial.BaudRate)
	return port, nil
}

// openSinks always includes Traccar; brokers are added when configured.
func openSinks(cfg *config.Config) (*sink.Multi, error) {
	tr, err := sink.NewTraccar(cfg.Traccar.URL, cfg.Traccar.Timeout)
	if err != nil {
		return nil, err
	}
	multi := sink.NewMulti(tr)
	log.Infof("forwarding to Traccar at %s", cfg.Traccar.URL)

	if cfg.MQTT.Enable {
		client, err := connectMQTT(cfg.MQTT.Broker, cfg.MQTT.ClientIDGateway)
		if err != nil {
			multi.Close()
			return nil, err
		}
		multi.Add(sink.NewMQTT(client, cfg.MQTT.TopicFix))
		log.Infof("publishing fixes to MQTT topic %s", cfg.MQTT.TopicFix)
	}

	if cfg.NATS.URL != "" {
		n, err := sink.DialNATS(cfg.NATS.URL, cfg.NATS.Subject, cfg.MQTT.ClientIDGateway)
		if err != nil {
			multi.Close()
			return nil, err
		}
		multi.Add(n)
		log.Infof("publishing fixes to NATS subject %s", cfg.NATS.Subject)
	}

	if cfg.AMQP.URL != "" {
		a, err := sink.DialAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			multi.Close()
			return nil, err
		}
		multi.Add(a)
		log.Infof("publishing fixes to AMQP exchange %s", cfg.AMQP.Exchange)
	}

	return multi, nil
}
