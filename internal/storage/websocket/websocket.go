package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/bandfield/marchsim/pkg/core"
	"github.com/bandfield/marchsim/pkg/streaming"
)

// DefaultAckTimeout bounds start_run and end_run round trips.
const DefaultAckTimeout = 10 * time.Second

// Config holds WebSocket backend configuration.
type Config struct {
	URL        string
	Secret     string
	AckTimeout time.Duration
}

// Backend streams runs to a remote collector. start_run and end_run wait for
// an ack; frames and events are fire-and-forget.
// It implements storage.Backend but not storage.Uploadable.
type Backend struct {
	conn *connection
	cfg  Config
}

// New creates a new WebSocket storage backend.
func New(cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = DefaultAckTimeout
	}
	return &Backend{
		conn: newConnection(logger),
		cfg:  cfg,
	}
}

// Init connects to the collector.
func (b *Backend) Init() error {
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the collector.
func (b *Backend) Close() error {
	return b.conn.close()
}

// Dropped is the number of messages discarded because the send queue was full.
func (b *Backend) Dropped() uint64 {
	return b.conn.dropped.Load()
}

func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	env, err := streaming.NewEnvelope(msgType, payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

func (b *Backend) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	b.conn.send(data)
	return nil
}

// StartRun sends the run header and actor list and waits for the ack.
func (b *Backend) StartRun(run *core.Run, actors []core.ActorInfo) error {
	data, err := marshalEnvelope(streaming.TypeStartRun, streaming.StartRunPayload{Run: run, Actors: actors})
	if err != nil {
		return err
	}
	b.conn.setStartRun(data)
	return b.conn.sendAndWait(data, streaming.TypeStartRun, b.cfg.AckTimeout)
}

// EndRun sends the summary and waits for the ack.
func (b *Backend) EndRun(summary *core.RunSummary) error {
	data, err := marshalEnvelope(streaming.TypeEndRun, summary)
	if err != nil {
		return err
	}
	err = b.conn.sendAndWait(data, streaming.TypeEndRun, b.cfg.AckTimeout)
	b.conn.setStartRun(nil)
	return err
}

func (b *Backend) RecordFrame(f *core.Frame) error {
	return b.sendEnvelope(streaming.TypeFrame, f)
}

func (b *Backend) RecordEvent(e *core.RunEvent) error {
	return b.sendEnvelope(streaming.TypeEvent, e)
}
