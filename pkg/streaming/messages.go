package streaming

import (
	"encoding/json"

	"github.com/bandfield/marchsim/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartRun = "start_run"
	TypeEndRun   = "end_run"
	TypeFrame    = "frame"
	TypeEvent    = "event"
	TypeAck      = "ack"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// StartRunPayload carries the run header and the static actor list.
type StartRunPayload struct {
	Run    *core.Run        `json:"run"`
	Actors []core.ActorInfo `json:"actors"`
}

// NewEnvelope marshals payload under the given type.
func NewEnvelope(msgType string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: msgType, Payload: data}, nil
}
