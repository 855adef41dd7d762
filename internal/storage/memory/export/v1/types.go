// Package v1 contains the v1 replay format for recorded playback runs.
// Positions are flattened to arrays to keep long runs compact.
package v1

// FormatVersion is written into every export.
const FormatVersion = 1

// Export is the root JSON structure for v1 format
type Export struct {
	Version   int        `json:"version"`
	RunID     string     `json:"runId"`
	LevelID   uint       `json:"levelId"`
	LevelName string     `json:"levelName"`
	Author    string     `json:"author"`
	StartTime string     `json:"startTime"`
	TickRate  int        `json:"tickRate"`
	Field     [2]float64 `json:"field"`
	EndTick   uint64     `json:"endTick"`
	Elapsed   float64    `json:"elapsed"`
	Outcome   string     `json:"outcome"`
	Progress  float64    `json:"progress"`
	Actors    []Actor    `json:"actors"`
	Events    [][]any    `json:"events"`
}

// Actor is one band member with its sampled positions.
// Positions entries are [tick, [x, y], flag].
type Actor struct {
	ID        string     `json:"id"`
	Name      string     `json:"name,omitempty"`
	Category  string     `json:"category"`
	Color     string     `json:"color"`
	Radius    float64    `json:"radius"`
	Speed     float64    `json:"speed"`
	Start     [2]float64 `json:"start"`
	End       [2]float64 `json:"end"`
	Positions [][]any    `json:"positions"`
}
