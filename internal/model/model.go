package model

import (
	"database/sql"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// LevelModels are the tables owned by the level store
var LevelModels = []interface{}{
	&Level{},
	&BandMember{},
	&MIDITrack{},
}

// RecordingModels are the tables written by run recorders
var RecordingModels = []interface{}{
	&PlaybackRun{},
	&RunActor{},
	&ActorState{},
	&PlaybackEvent{},
	&HostPerformance{},
}

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = append(append([]interface{}{}, LevelModels...), RecordingModels...)

////////////////////////
// LEVELS
////////////////////////

// Level is a saved formation
type Level struct {
	ID              uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
	Name            string    `json:"name" gorm:"size:200;not null;index:idx_level_name"`
	Author          string    `json:"author" gorm:"size:200;not null"`
	Description     string    `json:"description" gorm:"size:2000"`
	Difficulty      string    `json:"difficulty" gorm:"size:32;default:medium"`
	MusicTheme      string    `json:"musicTheme" gorm:"size:127"`
	SongTitle       string    `json:"songTitle" gorm:"size:200"`
	Tempo           int       `json:"tempo" gorm:"default:120"`
	DurationSeconds int       `json:"durationSeconds" gorm:"default:60"`
	Plays           int       `json:"plays" gorm:"default:0"`

	BandMembers []BandMember `json:"bandMembers" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (*Level) TableName() string {
	return "levels"
}

// BandMember is one marcher of a level
type BandMember struct {
	ID         uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
	LevelID    uint      `json:"levelId" gorm:"index:idx_bandmember_level_id"`
	Name       string    `json:"name" gorm:"size:127"`
	Instrument string    `json:"instrument" gorm:"size:64"`
	Category   string    `json:"instrumentType" gorm:"size:16;index:idx_bandmember_category"` // brass, woodwind or percussion
	Radius     float64   `json:"radius" gorm:"default:1"`
	Speed      float64   `json:"speed" gorm:"default:1"`

	StartPos geom.Point `json:"startPos"` // field units
	EndPos   geom.Point `json:"endPos"`   // field units

	MIDITracks []MIDITrack `json:"midiTracks" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (*BandMember) TableName() string {
	return "band_members"
}

// MIDITrack stores a member's note pattern as JSON {notes, lengths, tempo, duration}
type MIDITrack struct {
	ID               uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	BandMemberID     uint           `json:"bandMemberId" gorm:"index:idx_miditrack_band_member_id"`
	TrackNumber      int            `json:"trackNumber"`
	InstrumentNumber int            `json:"instrumentNumber"`
	Data             datatypes.JSON `json:"data"`
}

func (*MIDITrack) TableName() string {
	return "midi_tracks"
}

////////////////////////
// RUN RECORDING
////////////////////////

// PlaybackRun is one recorded playback session
type PlaybackRun struct {
	ID          uint         `json:"id" gorm:"primarykey;autoIncrement;"`
	RunUUID     string       `json:"runId" gorm:"size:36;uniqueIndex:idx_run_uuid"`
	SessionID   string       `json:"sessionId" gorm:"size:36"`
	LevelID     uint         `json:"levelId" gorm:"index:idx_run_level_id"`
	LevelName   string       `json:"levelName" gorm:"size:200"`
	Author      string       `json:"author" gorm:"size:200"`
	StartTime   time.Time    `json:"startTime" gorm:"type:timestamptz;index:idx_run_start"`
	EndTime     sql.NullTime `json:"endTime" gorm:"type:timestamptz"`
	TickRate    int          `json:"tickRate"`
	FieldWidth  float64      `json:"fieldWidth"`
	FieldHeight float64      `json:"fieldHeight"`

	Ticks      uint64  `json:"ticks"`
	Elapsed    float64 `json:"elapsed"`
	HaltReason string  `json:"haltReason" gorm:"size:16"`
	Complete   bool    `json:"complete" gorm:"default:false"`
	Progress   float64 `json:"progress"`
	Collisions int     `json:"collisions"`

	Actors []RunActor `json:"actors" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (*PlaybackRun) TableName() string {
	return "playback_runs"
}

// RunActor is the static description of an actor in a run
type RunActor struct {
	ID            uint            `json:"id" gorm:"primarykey;autoIncrement;"`
	PlaybackRunID uint            `json:"playbackRunId" gorm:"index:idx_runactor_run_id"`
	ActorID       string          `json:"actorId" gorm:"size:64"`
	Name          string          `json:"name" gorm:"size:127"`
	Category      string          `json:"category" gorm:"size:16"`
	Speed         float64         `json:"speed"`
	Radius        float64         `json:"radius"`
	Path          geom.LineString `json:"-"` // straight start->end segment
}

func (*RunActor) TableName() string {
	return "run_actors"
}

// ActorState is a sampled actor position
type ActorState struct {
	ID            uint        `json:"id" gorm:"primarykey;autoIncrement;"`
	Time          time.Time   `json:"time" gorm:"type:timestamptz;"`
	PlaybackRunID uint        `json:"playbackRunId" gorm:"index:idx_actorstate_run_id"`
	PlaybackRun   PlaybackRun `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:PlaybackRunID;"`
	Tick          uint64      `json:"tick" gorm:"index:idx_actorstate_tick"`
	ActorID       string      `json:"actorId" gorm:"size:64;index:idx_actorstate_actor_id"`
	Position      geom.Point  `json:"position"`
	Flag          int8        `json:"flag"` // 1 forward, 0 stopped
}

func (*ActorState) TableName() string {
	return "actor_states"
}

// PlaybackEvent is a discrete event of a run (play, pause, collision, ...)
type PlaybackEvent struct {
	ID            uint        `json:"id" gorm:"primarykey;autoIncrement;"`
	Time          time.Time   `json:"time" gorm:"type:timestamptz;"`
	PlaybackRunID uint        `json:"playbackRunId" gorm:"index:idx_event_run_id"`
	PlaybackRun   PlaybackRun `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:PlaybackRunID;"`
	Tick          uint64      `json:"tick"`
	Elapsed       float64     `json:"elapsed"`
	Kind          string      `json:"kind" gorm:"size:16;index:idx_event_kind"`
	ActorID       string      `json:"actorId" gorm:"size:64"`
	OtherID       string      `json:"otherId" gorm:"size:64"`
	Message       string      `json:"message" gorm:"size:500"`
}

func (*PlaybackEvent) TableName() string {
	return "playback_events"
}

// HostPerformance is a periodic snapshot of the playback host
type HostPerformance struct {
	Time                time.Time         `json:"time" gorm:"type:timestamptz;index:idx_time"`
	OpenSessions        int               `json:"openSessions"`
	RunningSessions     int               `json:"runningSessions"`
	Ticks               uint64            `json:"ticks"`
	FramesDropped       uint64            `json:"framesDropped"`
	RecordPending       int               `json:"recordPending"`
	RecordDropped       uint64            `json:"recordDropped"`
	CachedLevels        int               `json:"cachedLevels"`
	CacheHits           int               `json:"cacheHits"`
	CacheMisses         int               `json:"cacheMisses"`
	WriteQueueLengths   WriteQueueLengths `json:"writeQueueLengths" gorm:"embedded;embeddedPrefix:writequeue_"`
	LastWriteDurationMs float32           `json:"lastWriteDurationMs"`
}

func (*HostPerformance) TableName() string {
	return "host_performances"
}

// WriteQueueLengths is the model for the write queue lengths
type WriteQueueLengths struct {
	ActorStates    int `json:"actorStates"`
	PlaybackEvents int `json:"playbackEvents"`
}
