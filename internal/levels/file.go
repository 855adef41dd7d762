package levels

import (
	"fmt"
	"io"
	"os"

	"github.com/bandfield/marchsim/internal/geo"
	"github.com/bandfield/marchsim/pkg/core"
	"gopkg.in/yaml.v3"
)

// formationFile is the YAML layout of an exported formation.
//
//	name: Opener
//	author: director
//	tempo: 120
//	members:
//	  - name: Trumpet 1
//	    category: brass
//	    start: "10,10"
//	    end: "20,20"
type formationFile struct {
	Name            string       `yaml:"name"`
	Author          string       `yaml:"author"`
	Description     string       `yaml:"description"`
	Difficulty      string       `yaml:"difficulty"`
	MusicTheme      string       `yaml:"musicTheme"`
	SongTitle       string       `yaml:"songTitle"`
	Tempo           int          `yaml:"tempo"`
	DurationSeconds int          `yaml:"durationSeconds"`
	Members         []memberFile `yaml:"members"`
}

type memberFile struct {
	Name       string        `yaml:"name"`
	Instrument string        `yaml:"instrument"`
	Category   core.Category `yaml:"category"`
	Radius     float64       `yaml:"radius"`
	Speed      float64       `yaml:"speed"`
	Start      string        `yaml:"start"`
	End        string        `yaml:"end"`
	Notes      []int         `yaml:"notes"`
	Lengths    []int         `yaml:"lengths"`
}

// LoadFile reads a YAML formation from disk.
func LoadFile(path string) (core.Level, error) {
	f, err := os.Open(path)
	if err != nil {
		return core.Level{}, err
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses a YAML formation and validates it. Radius and speed default to 1.
func Decode(r io.Reader) (core.Level, error) {
	var ff formationFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&ff); err != nil {
		return core.Level{}, fmt.Errorf("%w: %w", ErrInvalidLevel, err)
	}

	l := core.Level{
		Name:            ff.Name,
		Author:          ff.Author,
		Description:     ff.Description,
		Difficulty:      ff.Difficulty,
		MusicTheme:      ff.MusicTheme,
		SongTitle:       ff.SongTitle,
		Tempo:           ff.Tempo,
		DurationSeconds: ff.DurationSeconds,
	}
	for i, mf := range ff.Members {
		m, err := mf.member()
		if err != nil {
			return core.Level{}, fmt.Errorf("%w: member %d: %w", ErrInvalidLevel, i, err)
		}
		l.BandMembers = append(l.BandMembers, m)
	}
	if err := ValidateLevel(l); err != nil {
		return core.Level{}, err
	}
	return l, nil
}

func (mf memberFile) member() (core.BandMember, error) {
	start, err := geo.PositionFromString(mf.Start)
	if err != nil {
		return core.BandMember{}, fmt.Errorf("start: %w", err)
	}
	end, err := geo.PositionFromString(mf.End)
	if err != nil {
		return core.BandMember{}, fmt.Errorf("end: %w", err)
	}
	m := core.BandMember{
		Name:       mf.Name,
		Instrument: mf.Instrument,
		Category:   mf.Category,
		Radius:     mf.Radius,
		Speed:      mf.Speed,
		Start:      start,
		End:        end,
	}
	if m.Radius == 0 {
		m.Radius = 1
	}
	if m.Speed == 0 {
		m.Speed = 1
	}
	if len(mf.Notes) > 0 {
		m.MIDITracks = []core.MIDITrack{{
			Data: core.TrackData{Notes: mf.Notes, Lengths: mf.Lengths},
		}}
	}
	return m, nil
}

// Encode writes l in the YAML formation layout.
func Encode(w io.Writer, l core.Level) error {
	ff := formationFile{
		Name:            l.Name,
		Author:          l.Author,
		Description:     l.Description,
		Difficulty:      l.Difficulty,
		MusicTheme:      l.MusicTheme,
		SongTitle:       l.SongTitle,
		Tempo:           l.Tempo,
		DurationSeconds: l.DurationSeconds,
	}
	for _, m := range l.BandMembers {
		mf := memberFile{
			Name:       m.Name,
			Instrument: m.Instrument,
			Category:   m.Category,
			Radius:     m.Radius,
			Speed:      m.Speed,
			Start:      fmt.Sprintf("%g,%g", m.Start.X, m.Start.Y),
			End:        fmt.Sprintf("%g,%g", m.End.X, m.End.Y),
		}
		if len(m.MIDITracks) > 0 {
			mf.Notes = m.MIDITracks[0].Data.Notes
			mf.Lengths = m.MIDITracks[0].Data.Lengths
		}
		ff.Members = append(ff.Members, mf)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(ff); err != nil {
		return err
	}
	return enc.Close()
}
