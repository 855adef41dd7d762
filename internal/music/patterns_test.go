package music

import (
	"testing"

	"github.com/bandfield/marchsim/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTrack(t *testing.T) {
	drums := DefaultTrack(core.CategoryPercussion)
	assert.Equal(t, []int{35, 38, 42, 46}, drums.Data.Notes)
	assert.Equal(t, 115, drums.InstrumentNumber)

	brass := DefaultTrack(core.CategoryBrass)
	assert.Equal(t, []int{60, 64, 67, 72}, brass.Data.Notes)
	assert.Equal(t, []int{480, 480, 480, 480}, brass.Data.Lengths)
	assert.Equal(t, 56, brass.InstrumentNumber)
	assert.Equal(t, 120, brass.Data.Tempo)
	assert.Equal(t, 4, brass.Data.Duration)

	assert.Equal(t, 73, DefaultTrack(core.CategoryWoodwind).InstrumentNumber)
}

func TestArrange_AlternatesRoles(t *testing.T) {
	members := []core.BandMember{
		{ID: 1, Category: core.CategoryBrass},
		{ID: 2, Category: core.CategoryWoodwind},
		{ID: 3, Category: core.CategoryPercussion},
		{ID: 4, Category: core.CategoryPercussion},
	}
	patterns := Arrange(members)
	require.Len(t, patterns, 4)

	assert.Equal(t, RolePoint, patterns[0].Role)
	assert.Equal(t, RoleCounterpoint, patterns[1].Role)
	assert.Equal(t, RolePoint, patterns[2].Role)
	assert.Equal(t, RoleCounterpoint, patterns[3].Role)

	assert.Equal(t, []int{60, 64, 67, 72}, patterns[0].Notes, "point is left alone")
	assert.Equal(t, []int{67, 67, 67, 72}, patterns[1].Notes, "counterpoint is snapped")
	assert.Equal(t, []int{35, 38, 42, 46}, patterns[3].Notes, "drums are not snapped")
}

func TestArrange_UsesMemberTrack(t *testing.T) {
	track := core.MIDITrack{InstrumentNumber: 1, Data: core.TrackData{Notes: []int{70, 71}, Lengths: []int{240}, Tempo: 0}}
	members := []core.BandMember{{ID: 9, Category: core.CategoryBrass, MIDITracks: []core.MIDITrack{track}}}

	patterns := Arrange(members)
	require.Len(t, patterns, 1)
	assert.Equal(t, []int{70, 71}, patterns[0].Notes)
	assert.Equal(t, []int{240, 480}, patterns[0].Lengths, "missing lengths default to a beat")
	assert.Equal(t, DefaultTempo, patterns[0].Tempo)

	// arranging must not alias the member's notes
	patterns[0].Notes[0] = 1
	assert.Equal(t, 70, members[0].MIDITracks[0].Data.Notes[0])
}

func TestLoopLength(t *testing.T) {
	patterns := []Pattern{
		{Notes: []int{60, 62}, Lengths: []int{480, 480}, Tempo: 120},
		{Notes: []int{60}, Lengths: []int{480}, Tempo: 120},
	}
	assert.InDelta(t, 0.5, LoopLength(patterns), 1e-12)
	assert.Equal(t, 0.0, LoopLength(nil))
}
