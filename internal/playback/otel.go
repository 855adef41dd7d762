package playback

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/bandfield/marchsim/internal/playback"

// Metrics holds the playback instruments. A nil *Metrics records nothing.
type Metrics struct {
	ticks      metric.Int64Counter
	dropped    metric.Int64Counter
	collisions metric.Int64Counter
	runs       metric.Int64UpDownCounter
}

// NewMetrics creates the instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)
	var (
		m   Metrics
		err error
	)
	if m.ticks, err = meter.Int64Counter("marchsim.playback.ticks",
		metric.WithDescription("Simulation ticks advanced")); err != nil {
		return nil, err
	}
	if m.dropped, err = meter.Int64Counter("marchsim.playback.frames_dropped",
		metric.WithDescription("Snapshots not delivered to slow subscribers")); err != nil {
		return nil, err
	}
	if m.collisions, err = meter.Int64Counter("marchsim.playback.collisions",
		metric.WithDescription("Runs halted by a collision")); err != nil {
		return nil, err
	}
	if m.runs, err = meter.Int64UpDownCounter("marchsim.playback.active_runs",
		metric.WithDescription("Runs currently being recorded")); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Metrics) tick() {
	if m != nil {
		m.ticks.Add(context.Background(), 1)
	}
}

func (m *Metrics) frameDropped() {
	if m != nil {
		m.dropped.Add(context.Background(), 1)
	}
}

func (m *Metrics) collision() {
	if m != nil {
		m.collisions.Add(context.Background(), 1)
	}
}

func (m *Metrics) runStarted() {
	if m != nil {
		m.runs.Add(context.Background(), 1)
	}
}

func (m *Metrics) runEnded() {
	if m != nil {
		m.runs.Add(context.Background(), -1)
	}
}
