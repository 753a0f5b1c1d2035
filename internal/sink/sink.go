// Package sink delivers decoded station reports to the outside world: the
// Traccar tracking server and, optionally, message brokers.
package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/relabs-tech/dprs_gateway/internal/station"
)

// Sink receives one report per positioned packet.
type Sink interface {
	// Name identifies the sink in logs and metrics.
	Name() string
	Send(ctx context.Context, r station.Report) error
	Close() error
}

// Multi fans a report out to several sinks. Every sink is tried even when
// an earlier one fails.
type Multi struct {
	sinks []Sink
}

func NewMulti(sinks ...Sink) *Multi {
	return &Multi{sinks: sinks}
}

// Add appends s to the fan-out list.
func (m *Multi) Add(s Sink) {
	m.sinks = append(m.sinks, s)
}

func (m *Multi) Name() string { return "multi" }

// Len reports how many sinks are attached.
func (m *Multi) Len() int { return len(m.sinks) }

// Send delivers r to each sink once and joins their errors. Each error is a
// *SendError naming the failing sink.
func (m *Multi) Send(ctx context.Context, r station.Report) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Send(ctx, r); err != nil {
			errs = append(errs, &SendError{Sink: s.Name(), Err: err})
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// SendError wraps a failure of one sink inside a Multi.
type SendError struct {
	Sink string
	Err  error
}

func (e *SendError) Error() string { return e.Sink + ": " + e.Err.Error() }

func (e *SendError) Unwrap() error { return e.Err }

// FailedSinks lists the sink names found in an error returned by Multi.Send.
func FailedSinks(err error) []string {
	if err == nil {
		return nil
	}
	var errs []error
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	} else {
		errs = []error{err}
	}
	var names []string
	for _, e := range errs {
		var se *SendError
		if errors.As(e, &se) {
			names = append(names, se.Sink)
		}
	}
	return names
}

func encode(r station.Report) ([]byte, error) {
	payload, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return payload, nil
}
