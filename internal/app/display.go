package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/dprs_gateway/internal/config"
	"github.com/relabs-tech/dprs_gateway/internal/station"
)

// lastHeard holds the most recent report for the display loop.
type lastHeard struct {
	mu     sync.RWMutex
	report station.Report
	have   bool
}

func (l *lastHeard) set(r station.Report) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.have && l.report.ReceivedAt.After(r.ReceivedAt) {
		return
	}
	l.report = r
	l.have = true
}

func (l *lastHeard) get() (station.Report, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.report, l.have
}

func RunDisplay(ctx context.Context) error {
	cfg := config.Get()
	if cfg == nil {
		return errors.New("config not initialised")
	}

	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	bus, err := i2creg.Open("")
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Info("display: initialized at 0x3C")

	if err := drawLines(dev, splashLines()); err != nil {
		log.WithError(err).Warn("display: error showing splash")
	}

	last := &lastHeard{}
	client, err := connectMQTT(cfg.MQTT.Broker, cfg.MQTT.ClientIDDisplay)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	if err := subscribeReports(client, cfg.MQTT.TopicFix, last.set); err != nil {
		return err
	}

	ticker := time.NewTicker(cfg.Display.UpdateInterval)
	defer ticker.Stop()

	log.Info("display: starting update loop")
	for {
		select {
		case <-ctx.Done():
			return dev.Halt()
		case now := <-ticker.C:
			r, ok := last.get()
			if err := drawLines(dev, lastHeardLines(r, ok, now)); err != nil {
				log.WithError(err).Warn("display: error updating display")
			}
		}
	}
}

func splashLines() []string {
	return []string{"", "D-PRS Gateway", "Listening..."}
}

// lastHeardLines lays out the 128x64 screen: callsign, latitude,
// longitude, age.
func lastHeardLines(r station.Report, have bool, now time.Time) []string {
	if !have {
		return []string{"", "Last heard", "Waiting..."}
	}

	latDir := "N"
	lat := r.Latitude
	if lat < 0 {
		latDir = "S"
		lat = -lat
	}
	lonDir := "E"
	lon := r.Longitude
	if lon < 0 {
		lonDir = "W"
		lon = -lon
	}

	return []string{
		r.ID,
		fmt.Sprintf("%.4f%s", lat, latDir),
		fmt.Sprintf("%.4f%s", lon, lonDir),
		r.Age(now),
	}
}

func renderLines(lines []string) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	for i, line := range lines {
		drawer.Dot = fixed.P(0, 13*(i+1))
		drawer.DrawBytes([]byte(line))
	}
	return img
}

func drawLines(dev *ssd1306.Dev, lines []string) error {
	return dev.Draw(dev.Bounds(), renderLines(lines), image.Point{})
}
