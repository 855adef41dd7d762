// pkg/core/run.go
package core

import "time"

// Run is one playback session of a level as seen by recorders.
type Run struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	LevelID   uint      `json:"levelId"`
	LevelName string    `json:"levelName"`
	Author    string    `json:"author"`
	StartTime time.Time `json:"startTime"`
	TickRate  int       `json:"tickRate"`
	Field     Size      `json:"field"`
}

// Size is a width/height pair in field units or pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ActorInfo is the static description of an actor, recorded once per run.
type ActorInfo struct {
	ID       string     `json:"id"`
	Name     string     `json:"name,omitempty"`
	Category Category   `json:"category"`
	Start    Position2D `json:"start"`
	End      Position2D `json:"end"`
	Speed    float64    `json:"speed"`
	Radius   float64    `json:"radius"`
}

// ActorFrame is the runtime state of one actor at a tick.
type ActorFrame struct {
	ActorID  string     `json:"id"`
	Position Position2D `json:"position"`
	Flag     int        `json:"flag"`
}

// Frame is the state of every actor at a tick.
type Frame struct {
	RunID   string       `json:"runId"`
	Tick    uint64       `json:"tick"`
	Time    time.Time    `json:"time"`
	Elapsed float64      `json:"elapsed"`
	Actors  []ActorFrame `json:"actors"`
}

// Run event kinds.
const (
	EventPlay       = "play"
	EventPause      = "pause"
	EventReset      = "reset"
	EventToggle     = "toggle"
	EventCollision  = "collision"
	EventComplete   = "complete"
	EventIncomplete = "incomplete"
)

// RunEvent is a discrete occurrence during a run.
type RunEvent struct {
	RunID   string    `json:"runId"`
	Tick    uint64    `json:"tick"`
	Time    time.Time `json:"time"`
	Elapsed float64   `json:"elapsed"`
	Kind    string    `json:"kind"`
	ActorID string    `json:"actorId,omitempty"`
	OtherID string    `json:"otherId,omitempty"`
	Message string    `json:"message,omitempty"`
}

// RunSummary closes a run.
type RunSummary struct {
	RunID      string    `json:"runId"`
	EndTime    time.Time `json:"endTime"`
	Ticks      uint64    `json:"ticks"`
	Elapsed    float64   `json:"elapsed"`
	HaltReason string    `json:"haltReason"`
	Complete   bool      `json:"complete"`
	Progress   float64   `json:"progress"`
	Collisions int       `json:"collisions"`
}

// UploadMetadata describes an exported replay for the gallery server.
type UploadMetadata struct {
	LevelName string
	Author    string
	Duration  float64
	Outcome   string
}
