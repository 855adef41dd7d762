package levels

import (
	"context"
	"strconv"

	"github.com/bandfield/marchsim/internal/sim"
	"github.com/bandfield/marchsim/pkg/core"
)

// TestLevel is the three-member diagonal formation used for smoke tests.
func TestLevel() core.Level {
	member := func(name string, cat core.Category, sx, sy, ex, ey float64) core.BandMember {
		return core.BandMember{
			Name:     name,
			Category: cat,
			Radius:   1,
			Speed:    1,
			Start:    core.Position2D{X: sx, Y: sy},
			End:      core.Position2D{X: ex, Y: ey},
		}
	}
	return core.Level{
		Name:        "Test Level",
		Author:      "marchsim",
		Description: "Three marchers on parallel diagonals",
		Difficulty:  "easy",
		Tempo:       120,
		BandMembers: []core.BandMember{
			member("Trumpet", core.CategoryBrass, 10, 10, 20, 20),
			member("Clarinet", core.CategoryWoodwind, 30, 30, 40, 40),
			member("Snare", core.CategoryPercussion, 50, 50, 60, 60),
		},
	}
}

// SeedTestLevel inserts TestLevel.
func (s *Store) SeedTestLevel(ctx context.Context) (core.Level, error) {
	return s.CreateLevel(ctx, TestLevel())
}

// Definitions turns a level's members into actor definitions. Stored members
// are keyed by their id; unsaved members by their position in the list.
func Definitions(l core.Level) []sim.Definition {
	defs := make([]sim.Definition, 0, len(l.BandMembers))
	for i, m := range l.BandMembers {
		id := strconv.FormatUint(uint64(m.ID), 10)
		if m.ID == 0 {
			id = "m" + strconv.Itoa(i+1)
		}
		defs = append(defs, sim.Definition{
			ID:       id,
			Name:     m.Name,
			Category: m.Category,
			Start:    m.Start,
			End:      m.End,
			Speed:    m.Speed,
			Radius:   m.Radius,
		})
	}
	return defs
}
