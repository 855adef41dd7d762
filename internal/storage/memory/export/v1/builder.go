package v1

import (
	"math"
	"time"

	"github.com/bandfield/marchsim/pkg/core"
)

// RunData contains all the data needed to build an export
type RunData struct {
	Run     *core.Run
	Summary *core.RunSummary
	Actors  []*ActorRecord
	Events  []core.RunEvent
}

// ActorRecord groups an actor with its sampled states
type ActorRecord struct {
	Info   core.ActorInfo
	States []Sample
}

// Sample is one recorded actor state.
type Sample struct {
	Tick     uint64
	Position core.Position2D
	Flag     int
}

// Outcome names how a run ended: "complete", "collision", "incomplete" or "stopped".
func Outcome(s *core.RunSummary) string {
	if s == nil {
		return "stopped"
	}
	switch {
	case s.HaltReason == "collision":
		return core.EventCollision
	case s.HaltReason == "allStopped" && s.Complete:
		return core.EventComplete
	case s.HaltReason == "allStopped":
		return core.EventIncomplete
	default:
		return "stopped"
	}
}

// Build creates an Export from the run data
func Build(data *RunData) Export {
	export := Export{
		Version:   FormatVersion,
		RunID:     data.Run.ID,
		LevelID:   data.Run.LevelID,
		LevelName: data.Run.LevelName,
		Author:    data.Run.Author,
		StartTime: data.Run.StartTime.UTC().Format(time.RFC3339),
		TickRate:  data.Run.TickRate,
		Field:     [2]float64{data.Run.Field.Width, data.Run.Field.Height},
		Outcome:   Outcome(data.Summary),
		Actors:    make([]Actor, 0, len(data.Actors)),
		Events:    make([][]any, 0, len(data.Events)),
	}

	var endTick uint64
	for _, rec := range data.Actors {
		a := Actor{
			ID:        rec.Info.ID,
			Name:      rec.Info.Name,
			Category:  string(rec.Info.Category),
			Color:     rec.Info.Category.Color(),
			Radius:    rec.Info.Radius,
			Speed:     rec.Info.Speed,
			Start:     pair(rec.Info.Start),
			End:       pair(rec.Info.End),
			Positions: make([][]any, 0, len(rec.States)),
		}
		for _, s := range rec.States {
			a.Positions = append(a.Positions, []any{s.Tick, pair(s.Position), s.Flag})
			if s.Tick > endTick {
				endTick = s.Tick
			}
		}
		export.Actors = append(export.Actors, a)
	}

	// Format: [tick, kind, actorId, otherId, message]
	for _, evt := range data.Events {
		export.Events = append(export.Events, []any{
			evt.Tick,
			evt.Kind,
			evt.ActorID,
			evt.OtherID,
			evt.Message,
		})
		if evt.Tick > endTick {
			endTick = evt.Tick
		}
	}

	export.EndTick = endTick
	if data.Summary != nil {
		if data.Summary.Ticks > endTick {
			export.EndTick = data.Summary.Ticks
		}
		export.Elapsed = round(data.Summary.Elapsed)
		export.Progress = round(data.Summary.Progress)
	}

	return export
}

func pair(p core.Position2D) [2]float64 {
	return [2]float64{round(p.X), round(p.Y)}
}

// round trims float noise to 1e-6 field units.
func round(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
