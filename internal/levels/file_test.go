package levels

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bandfield/marchsim/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const formationYAML = `name: Opener
author: director
tempo: 100
members:
  - name: Trumpet 1
    category: brass
    start: "10,10"
    end: "20, 20"
  - name: Snare
    category: percussion
    radius: 0.75
    speed: 2
    start: "0,0"
    end: "5,0"
    notes: [38, 38, 42]
    lengths: [240, 240, 480]
`

func TestDecode(t *testing.T) {
	l, err := Decode(strings.NewReader(formationYAML))
	require.NoError(t, err)

	assert.Equal(t, "Opener", l.Name)
	assert.Equal(t, 100, l.Tempo)
	require.Len(t, l.BandMembers, 2)

	trumpet := l.BandMembers[0]
	assert.Equal(t, core.CategoryBrass, trumpet.Category)
	assert.Equal(t, 1.0, trumpet.Radius, "radius defaults to 1")
	assert.Equal(t, 1.0, trumpet.Speed, "speed defaults to 1")
	assert.Equal(t, core.Position2D{X: 20, Y: 20}, trumpet.End)
	assert.Empty(t, trumpet.MIDITracks)

	snare := l.BandMembers[1]
	assert.Equal(t, 0.75, snare.Radius)
	require.Len(t, snare.MIDITracks, 1)
	assert.Equal(t, []int{38, 38, 42}, snare.MIDITracks[0].Data.Notes)
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad coordinates", "name: a\nauthor: b\nmembers:\n  - category: brass\n    start: \"x,1\"\n    end: \"1,1\"\n"},
		{"unknown field", "name: a\nauthor: b\ncolor: red\n"},
		{"missing author", "name: a\n"},
		{"unknown category", "name: a\nauthor: b\nmembers:\n  - category: strings\n    start: \"1,1\"\n    end: \"2,2\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.yaml))
			assert.ErrorIs(t, err, ErrInvalidLevel)
		})
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, TestLevel()))

	path := filepath.Join(t.TempDir(), "test.yaml")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))

	l, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, TestLevel().BandMembers, l.BandMembers)
	assert.Equal(t, "Test Level", l.Name)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDefinitions(t *testing.T) {
	l := TestLevel()
	l.BandMembers[0].ID = 12

	defs := Definitions(l)
	require.Len(t, defs, 3)
	assert.Equal(t, "12", defs[0].ID)
	assert.Equal(t, "m2", defs[1].ID)
	assert.Equal(t, "Clarinet", defs[1].Name)
	for _, d := range defs {
		assert.NoError(t, d.Validate())
	}
}
