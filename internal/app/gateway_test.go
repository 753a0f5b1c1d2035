package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/dprs_gateway/internal/metrics"
	"github.com/relabs-tech/dprs_gateway/internal/serialline"
	"github.com/relabs-tech/dprs_gateway/internal/sink"
	"github.com/relabs-tech/dprs_gateway/internal/station"
)

const sampleLine = "$$CRC9396,7M4MON>API705,DSTAR*:/020304h3437.54N/13534.14Eb/"

type recordingSink struct {
	err  error
	sent []station.Report
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Send(_ context.Context, r station.Report) error {
	s.sent = append(s.sent, r)
	return s.err
}

func (s *recordingSink) Close() error { return nil }

func newTestGateway(s sink.Sink) (*Gateway, *metrics.Metrics) {
	m := metrics.New()
	b := &station.Builder{Now: func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }}
	return NewGateway(s, b, m), m
}

func TestHandleLine_ForwardsOnlyPositionedPackets(t *testing.T) {
	cases := []struct {
		name    string
		line    string
		forward bool
	}{
		{name: "positioned", line: sampleLine, forward: true},
		{name: "other traffic", line: "$GPGGA,123519,4807.038,N", forward: false},
		{name: "no comma", line: "$$CRC9396", forward: false},
		{name: "empty identifier", line: "$$CRC9396,>API705,DSTAR*:/x", forward: false},
		{name: "no payload", line: "$$CRC9396,7M4MON>API705", forward: false},
		{name: "no coordinates", line: "$$CRC9396,7M4MON>API705,DSTAR*:>status text", forward: false},
		{name: "bad hemisphere range", line: "$$CRC9396,7M4MON>API705,DSTAR*:/020304h9937.54N/13534.14Eb/", forward: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := &recordingSink{}
			g, _ := newTestGateway(s)

			assert.Equal(t, tc.forward, g.HandleLine(context.Background(), tc.line))
			if tc.forward {
				require.Len(t, s.sent, 1)
			} else {
				assert.Empty(t, s.sent)
			}
		})
	}
}

func TestHandleLine_Report(t *testing.T) {
	s := &recordingSink{}
	g, _ := newTestGateway(s)

	require.True(t, g.HandleLine(context.Background(), sampleLine))
	r := s.sent[0]
	assert.Equal(t, "7M4MON", r.ID)
	assert.InDelta(t, 34.625667, r.Latitude, 1e-9)
	assert.InDelta(t, 135.569, r.Longitude, 1e-9)
	assert.Equal(t, sampleLine, r.Raw)
	assert.Nil(t, r.DistanceKm)
}

func TestHandleLine_SinkErrorIsCountedNotRetried(t *testing.T) {
	s := &recordingSink{err: errors.New("connection refused")}
	multi := sink.NewMulti(s)
	g, m := newTestGateway(multi)

	assert.True(t, g.HandleLine(context.Background(), sampleLine))
	assert.Len(t, s.sent, 1)

	st := m.Snapshot(time.Now())
	assert.Equal(t, uint64(1), st.SinkErrors["recording"])
	assert.Equal(t, uint64(1), st.Forwarded)
}

func TestRun_ReplaysUntilEOF(t *testing.T) {
	input := strings.Join([]string{
		sampleLine,
		"",
		"garbage",
		"$$CRC1234,JA1ABC>API705,DSTAR*:/010203h3541.00N/13945.00Eb/",
		strings.Repeat("x", 100),
		"$$CRC1234,JA1ABC>API705,DSTAR*:no position here",
		"$$CRC9396,7M4MON>API705,DSTAR*:/020304h3437.54N/13534.14Eb/\r",
	}, "\n")

	s := &recordingSink{}
	g, m := newTestGateway(s)
	err := g.Run(context.Background(), serialline.NewReader(strings.NewReader(input), 80))
	require.NoError(t, err)

	require.Len(t, s.sent, 3)
	assert.Equal(t, "7M4MON", s.sent[0].ID)
	assert.Equal(t, "JA1ABC", s.sent[1].ID)
	assert.Equal(t, "7M4MON", s.sent[2].ID)

	st := m.Snapshot(time.Now())
	assert.Equal(t, uint64(5), st.Lines)
	assert.Equal(t, uint64(1), st.Oversized)
	assert.Equal(t, uint64(3), st.Packets["positioned"])
	assert.Equal(t, uint64(1), st.Packets["no-position"])
	assert.Equal(t, uint64(1), st.Packets["not-recognized"])
}

func TestRun_StopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &recordingSink{}
	g, _ := newTestGateway(s)
	err := g.Run(ctx, serialline.NewReader(strings.NewReader(sampleLine+"\n"), 0))
	require.NoError(t, err)
	assert.Empty(t, s.sent)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("device unplugged") }

func TestRun_ReadErrorEndsLoop(t *testing.T) {
	g, _ := newTestGateway(&recordingSink{})
	err := g.Run(context.Background(), serialline.NewReader(failingReader{}, 0))
	assert.ErrorContains(t, err, "device unplugged")
}
