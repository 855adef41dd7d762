package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/bandfield/marchsim/internal/music"
)

// maxRenderSeconds bounds a rendered WAV request.
const maxRenderSeconds = 120

type musicResponse struct {
	LevelID  uint            `json:"levelId"`
	Loop     float64         `json:"loop"`
	Patterns []music.Pattern `json:"patterns"`
}

func (s *Server) levelPatterns(r *http.Request) (uint, []music.Pattern, error) {
	id, err := pathID(r)
	if err != nil {
		return 0, nil, err
	}
	l, err := s.deps.Levels.GetLevel(r.Context(), id)
	if err != nil {
		return 0, nil, err
	}
	return id, music.Arrange(l.BandMembers), nil
}

func (s *Server) levelMusic(w http.ResponseWriter, r *http.Request) {
	id, patterns, err := s.levelPatterns(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, musicResponse{LevelID: id, Loop: music.LoopLength(patterns), Patterns: patterns})
}

func queryFloat(r *http.Request, key string) (float64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", errBadRequest, key, raw)
	}
	return v, nil
}

// levelWAV renders the level's arrangement. The encoder needs a seekable
// writer, so the audio goes through a temp file.
func (s *Server) levelWAV(w http.ResponseWriter, r *http.Request) {
	id, patterns, err := s.levelPatterns(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	seconds, err := queryFloat(r, "seconds")
	if err == nil && seconds > maxRenderSeconds {
		err = fmt.Errorf("%w: at most %d seconds", errBadRequest, maxRenderSeconds)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	offset, err := queryFloat(r, "offset")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	f, err := os.CreateTemp("", "marchsim-*.wav")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer os.Remove(f.Name())
	defer f.Close()

	opts := music.RenderOptions{SampleRate: s.deps.SampleRate, Seconds: seconds, Offset: offset}
	if err := music.WriteWAV(f, patterns, opts); err != nil {
		if errors.Is(err, music.ErrNoPatterns) {
			err = fmt.Errorf("%w: level %d has no music", errNotFound, id)
		}
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	http.ServeContent(w, r, fmt.Sprintf("level-%d.wav", id), time.Time{}, f)
}
