// pkg/core/level.go
package core

import "time"

// Level is a formation: a named set of band members with start and end marks.
type Level struct {
	ID              uint         `json:"id"`
	Name            string       `json:"name"`
	Author          string       `json:"author"`
	Description     string       `json:"description,omitempty"`
	Difficulty      string       `json:"difficulty,omitempty"`
	MusicTheme      string       `json:"musicTheme,omitempty"`
	SongTitle       string       `json:"songTitle,omitempty"`
	Tempo           int          `json:"tempo"`
	DurationSeconds int          `json:"durationSeconds"`
	Plays           int          `json:"plays"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
	BandMembers     []BandMember `json:"bandMembers"`
}

// BandMember is one marcher on the field.
type BandMember struct {
	ID         uint        `json:"id"`
	LevelID    uint        `json:"levelId"`
	Name       string      `json:"name"`
	Instrument string      `json:"instrument"`
	Category   Category    `json:"instrumentType"`
	Radius     float64     `json:"radius"`
	Speed      float64     `json:"speed"`
	Start      Position2D  `json:"start"`
	End        Position2D  `json:"end"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
	MIDITracks []MIDITrack `json:"midiTracks,omitempty"`
}

// MIDITrack is a looping note pattern assigned to a band member.
type MIDITrack struct {
	ID               uint      `json:"id"`
	BandMemberID     uint      `json:"bandMemberId"`
	TrackNumber      int       `json:"trackNumber"`
	InstrumentNumber int       `json:"instrumentNumber"`
	Data             TrackData `json:"trackData"`
}

// TrackData holds a pattern as parallel note and length slices.
// Lengths are MIDI ticks at 480 ticks per beat.
type TrackData struct {
	Notes    []int `json:"notes"`
	Lengths  []int `json:"lengths"`
	Tempo    int   `json:"tempo"`
	Duration int   `json:"duration"`
}

// MIDINote is a single scheduled note, times in seconds.
type MIDINote struct {
	Pitch     int     `json:"pitch"`
	StartTime float64 `json:"startTime"`
	EndTime   float64 `json:"endTime"`
	Velocity  int     `json:"velocity"`
}
