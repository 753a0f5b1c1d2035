// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package dprs

import (
	"math"
	"strconv"
	"strings"
)

// Hemisphere is the single-letter suffix of an APRS coordinate.
type Hemisphere byte

const (
	North Hemisphere = 'N'
	South Hemisphere = 'S'
	East  Hemisphere = 'E'
	West  Hemisphere = 'W'
)

// degreeDigits returns how many leading characters of a coordinate hold the
// whole degrees: 2 for latitude (DDMM.MM), 3 for longitude (DDDMM.MM).
// Zero means the hemisphere is not one we know.
func (h Hemisphere) degreeDigits() int {
	switch h {
	case North, South:
		return 2
	case East, West:
		return 3
	}
	return 0
}

func (h Hemisphere) negative() bool {
	return h == South || h == West
}

// limit is the largest magnitude a decoded value may have.
func (h Hemisphere) limit() float64 {
	if h.degreeDigits() == 2 {
		return 90
	}
	return 180
}

// AngleField is one raw coordinate as it appears on the wire, before
// conversion to decimal degrees.
type AngleField struct {
	Digits     string     // e.g. "3437.54"
	Hemisphere Hemisphere // N, S, E or W
}

// ToDecimal converts a degrees+minutes field into signed decimal degrees
// rounded to 6 places. The second return is false when there is nothing
// usable to convert, including results outside [-90,90] / [-180,180].
func ToDecimal(f AngleField) (float64, bool) {
	if f.Digits == "" || !strings.Contains(f.Digits, ".") {
		return 0, false
	}
	n := f.Hemisphere.degreeDigits()
	if n == 0 || len(f.Digits) <= n {
		return 0, false
	}

	deg, err := strconv.Atoi(f.Digits[:n])
	if err != nil || deg < 0 {
		return 0, false
	}
	minutes, err := strconv.ParseFloat(f.Digits[n:], 64)
	if err != nil || minutes < 0 || math.IsNaN(minutes) || math.IsInf(minutes, 0) {
		return 0, false
	}

	v := float64(deg) + minutes/60
	if f.Hemisphere.negative() {
		v = -v
	}
	v = round6(v)

	if math.Abs(v) > f.Hemisphere.limit() {
		return 0, false
	}
	return v, true
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
