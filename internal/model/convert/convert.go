package convert

import (
	"encoding/json"

	"github.com/bandfield/marchsim/internal/geo"
	"github.com/bandfield/marchsim/internal/model"
	"github.com/bandfield/marchsim/pkg/core"
)

// LevelToCore converts a GORM model.Level and its loaded members to a core.Level.
func LevelToCore(l model.Level) core.Level {
	out := core.Level{
		ID:              l.ID,
		Name:            l.Name,
		Author:          l.Author,
		Description:     l.Description,
		Difficulty:      l.Difficulty,
		MusicTheme:      l.MusicTheme,
		SongTitle:       l.SongTitle,
		Tempo:           l.Tempo,
		DurationSeconds: l.DurationSeconds,
		Plays:           l.Plays,
		CreatedAt:       l.CreatedAt,
		UpdatedAt:       l.UpdatedAt,
		BandMembers:     make([]core.BandMember, 0, len(l.BandMembers)),
	}
	for _, m := range l.BandMembers {
		out.BandMembers = append(out.BandMembers, BandMemberToCore(m))
	}
	return out
}

// BandMemberToCore converts a GORM model.BandMember to a core.BandMember.
// Track data that fails to decode is dropped.
func BandMemberToCore(m model.BandMember) core.BandMember {
	out := core.BandMember{
		ID:         m.ID,
		LevelID:    m.LevelID,
		Name:       m.Name,
		Instrument: m.Instrument,
		Category:   core.Category(m.Category),
		Radius:     m.Radius,
		Speed:      m.Speed,
		Start:      geo.PositionFromPoint(m.StartPos),
		End:        geo.PositionFromPoint(m.EndPos),
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
	for _, t := range m.MIDITracks {
		var data core.TrackData
		if len(t.Data) > 0 {
			if err := json.Unmarshal(t.Data, &data); err != nil {
				continue
			}
		}
		out.MIDITracks = append(out.MIDITracks, core.MIDITrack{
			ID:               t.ID,
			BandMemberID:     t.BandMemberID,
			TrackNumber:      t.TrackNumber,
			InstrumentNumber: t.InstrumentNumber,
			Data:             data,
		})
	}
	return out
}

// RunActorToCore converts a stored run actor back to its static description.
func RunActorToCore(a model.RunActor) core.ActorInfo {
	start, end, _ := geo.LineStringToSegment(a.Path)
	return core.ActorInfo{
		ID:       a.ActorID,
		Name:     a.Name,
		Category: core.Category(a.Category),
		Start:    start,
		End:      end,
		Speed:    a.Speed,
		Radius:   a.Radius,
	}
}
