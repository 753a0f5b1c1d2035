package station

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gansidui/geohash"
	geo "github.com/kellydunn/golang-geo"

	"github.com/relabs-tech/dprs_gateway/internal/dprs"
)

// geohashPrecision of 9 characters is roughly a 5 m cell.
const geohashPrecision = 9

// Report is a single forwarded station position, suitable for JSON and MQTT.
type Report struct {
	ID         string    `json:"id"`                    // callsign, e.g. "7M4MON"
	Latitude   float64   `json:"lat"`                   // decimal degrees
	Longitude  float64   `json:"lon"`                   // decimal degrees
	Geohash    string    `json:"geohash"`               // base32 cell of the fix
	DistanceKm *float64  `json:"distance_km,omitempty"` // from the gateway, when home is configured
	ReceivedAt time.Time `json:"received_at"`
	Raw        string    `json:"raw"` // the line as received
}

// Age renders how long ago the report was received relative to now,
// e.g. "3 minutes ago".
func (r Report) Age(now time.Time) string {
	return humanize.RelTime(r.ReceivedAt, now, "ago", "from now")
}

// Builder turns parsed packets into reports.
type Builder struct {
	// Home is the gateway position; nil disables distance annotation.
	Home *geo.Point
	// Now defaults to time.Now.
	Now func() time.Time
}

// NewBuilder returns a Builder, with a home position when homeEnabled.
func NewBuilder(homeEnabled bool, homeLat, homeLon float64) *Builder {
	b := &Builder{Now: time.Now}
	if homeEnabled {
		b.Home = geo.NewPoint(homeLat, homeLon)
	}
	return b
}

// Build returns the report for pkt. ok is false unless the packet carries
// both an identifier and a position.
func (b *Builder) Build(pkt dprs.Packet, raw string) (Report, bool) {
	if pkt.Identifier == "" || pkt.Position == nil {
		return Report{}, false
	}

	now := time.Now
	if b.Now != nil {
		now = b.Now
	}

	lat, lon := pkt.Position.Latitude, pkt.Position.Longitude
	hash, _ := geohash.Encode(lat, lon, geohashPrecision)

	r := Report{
		ID:         pkt.Identifier,
		Latitude:   lat,
		Longitude:  lon,
		Geohash:    hash,
		ReceivedAt: now().UTC(),
		Raw:        raw,
	}
	if b.Home != nil {
		d := b.Home.GreatCircleDistance(geo.NewPoint(lat, lon))
		r.DistanceKm = &d
	}
	return r, true
}
