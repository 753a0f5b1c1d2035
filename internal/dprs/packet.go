// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package dprs decodes D-PRS position reports as emitted by D-STAR radios
// on their serial data port, e.g.
//
//	$$CRC9396,7M4MON>API705,DSTAR*:/020304h3437.54N/13534.14Eb/
//
// Only the callsign and the latitude/longitude pair are extracted.
package dprs

import (
	"regexp"
	"strings"
)

// Marker prefixes every D-PRS line we accept.
const Marker = "$$CRC"

// positionRe matches "DDMM.MM[NS]/DDDMM.MM[EW]" with either symbol-table
// separator. Only the first match in a payload is used.
var positionRe = regexp.MustCompile(`([0-9]{4,5}\.[0-9]{2})([NS])[/\\]([0-9]{5,6}\.[0-9]{2})([EW])`)

// Outcome says how far Parse got with a line.
type Outcome int

const (
	// NotRecognized: the line does not start with Marker.
	NotRecognized Outcome = iota
	// Malformed: marker present but no usable identifier field.
	Malformed
	// NoPosition: identifier found, coordinates absent or unusable.
	NoPosition
	// Positioned: identifier and both coordinates resolved.
	Positioned
)

func (o Outcome) String() string {
	switch o {
	case NotRecognized:
		return "not-recognized"
	case Malformed:
		return "malformed"
	case NoPosition:
		return "no-position"
	case Positioned:
		return "positioned"
	}
	return "unknown"
}

// Position is a decoded fix in signed decimal degrees.
type Position struct {
	Latitude  float64
	Longitude float64
}

// Packet is the result of parsing one line. Position is nil unless the
// outcome was Positioned; Identifier is empty for NotRecognized and
// Malformed.
type Packet struct {
	Identifier string
	Position   *Position
}

// Parse decodes a single newline-stripped line. It never panics and never
// returns an error: bad input is reported through the Outcome.
func Parse(line string) (Packet, Outcome) {
	if !strings.HasPrefix(line, Marker) {
		return Packet{}, NotRecognized
	}

	parts := strings.Split(line, ",")
	if len(parts) < 2 {
		return Packet{}, Malformed
	}

	id, _, _ := strings.Cut(parts[1], ">")
	if id == "" {
		return Packet{}, Malformed
	}
	pkt := Packet{Identifier: id}

	if len(parts) < 3 {
		return pkt, NoPosition
	}

	lat, lon, ok := findAngles(parts[2])
	if !ok {
		return pkt, NoPosition
	}

	latDeg, ok := ToDecimal(lat)
	if !ok {
		return pkt, NoPosition
	}
	lonDeg, ok := ToDecimal(lon)
	if !ok {
		return pkt, NoPosition
	}

	pkt.Position = &Position{Latitude: latDeg, Longitude: lonDeg}
	return pkt, Positioned
}

// findAngles locates the first coordinate pair in an APRS payload.
func findAngles(payload string) (lat, lon AngleField, ok bool) {
	m := positionRe.FindStringSubmatch(payload)
	if m == nil {
		return AngleField{}, AngleField{}, false
	}
	lat = AngleField{Digits: m[1], Hemisphere: Hemisphere(m[2][0])}
	lon = AngleField{Digits: m[3], Hemisphere: Hemisphere(m[4][0])}
	return lat, lon, true
}
