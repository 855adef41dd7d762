// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"database/sql"
	"encoding/json"

	"github.com/bandfield/marchsim/internal/geo"
	"github.com/bandfield/marchsim/internal/model"
	"github.com/bandfield/marchsim/pkg/core"
	"gorm.io/datatypes"
)

// trackDataToJSON converts a core.TrackData to datatypes.JSON for DB storage.
func trackDataToJSON(d core.TrackData) datatypes.JSON {
	if d.Notes == nil {
		d.Notes = []int{}
	}
	if d.Lengths == nil {
		d.Lengths = []int{}
	}
	data, _ := json.Marshal(d)
	return datatypes.JSON(data)
}

// CoreToLevel converts a core.Level and its members to a GORM model.Level.
func CoreToLevel(l core.Level) model.Level {
	members := make([]model.BandMember, 0, len(l.BandMembers))
	for _, m := range l.BandMembers {
		members = append(members, CoreToBandMember(m))
	}
	return model.Level{
		ID:              l.ID,
		CreatedAt:       l.CreatedAt,
		UpdatedAt:       l.UpdatedAt,
		Name:            l.Name,
		Author:          l.Author,
		Description:     l.Description,
		Difficulty:      l.Difficulty,
		MusicTheme:      l.MusicTheme,
		SongTitle:       l.SongTitle,
		Tempo:           l.Tempo,
		DurationSeconds: l.DurationSeconds,
		Plays:           l.Plays,
		BandMembers:     members,
	}
}

// CoreToBandMember converts a core.BandMember to a GORM model.BandMember.
func CoreToBandMember(m core.BandMember) model.BandMember {
	tracks := make([]model.MIDITrack, 0, len(m.MIDITracks))
	for _, t := range m.MIDITracks {
		tracks = append(tracks, model.MIDITrack{
			ID:               t.ID,
			BandMemberID:     t.BandMemberID,
			TrackNumber:      t.TrackNumber,
			InstrumentNumber: t.InstrumentNumber,
			Data:             trackDataToJSON(t.Data),
		})
	}
	return model.BandMember{
		ID:         m.ID,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
		LevelID:    m.LevelID,
		Name:       m.Name,
		Instrument: m.Instrument,
		Category:   string(m.Category),
		Radius:     m.Radius,
		Speed:      m.Speed,
		StartPos:   geo.PointFromPosition(m.Start),
		EndPos:     geo.PointFromPosition(m.End),
		MIDITracks: tracks,
	}
}

// CoreToRun converts a core.Run to a GORM model.PlaybackRun.
// The actor list becomes RunActor rows with a straight path segment.
func CoreToRun(r core.Run, actors []core.ActorInfo) model.PlaybackRun {
	out := model.PlaybackRun{
		RunUUID:     r.ID,
		SessionID:   r.SessionID,
		LevelID:     r.LevelID,
		LevelName:   r.LevelName,
		Author:      r.Author,
		StartTime:   r.StartTime,
		TickRate:    r.TickRate,
		FieldWidth:  r.Field.Width,
		FieldHeight: r.Field.Height,
	}
	for _, a := range actors {
		out.Actors = append(out.Actors, model.RunActor{
			ActorID:  a.ID,
			Name:     a.Name,
			Category: string(a.Category),
			Speed:    a.Speed,
			Radius:   a.Radius,
			Path:     geo.SegmentToLineString(a.Start, a.End),
		})
	}
	return out
}

// ApplySummary copies the closing fields of a run onto its GORM row.
func ApplySummary(run *model.PlaybackRun, s core.RunSummary) {
	run.EndTime = sql.NullTime{Time: s.EndTime, Valid: !s.EndTime.IsZero()}
	run.Ticks = s.Ticks
	run.Elapsed = s.Elapsed
	run.HaltReason = s.HaltReason
	run.Complete = s.Complete
	run.Progress = s.Progress
	run.Collisions = s.Collisions
}

// CoreToActorStates expands a frame into one ActorState row per actor.
func CoreToActorStates(runID uint, f core.Frame) []model.ActorState {
	states := make([]model.ActorState, 0, len(f.Actors))
	for _, a := range f.Actors {
		states = append(states, model.ActorState{
			Time:          f.Time,
			PlaybackRunID: runID,
			Tick:          f.Tick,
			ActorID:       a.ActorID,
			Position:      geo.PointFromPosition(a.Position),
			Flag:          int8(a.Flag),
		})
	}
	return states
}

// CoreToEvent converts a core.RunEvent to a GORM model.PlaybackEvent.
func CoreToEvent(runID uint, e core.RunEvent) model.PlaybackEvent {
	return model.PlaybackEvent{
		Time:          e.Time,
		PlaybackRunID: runID,
		Tick:          e.Tick,
		Elapsed:       e.Elapsed,
		Kind:          e.Kind,
		ActorID:       e.ActorID,
		OtherID:       e.OtherID,
		Message:       e.Message,
	}
}
