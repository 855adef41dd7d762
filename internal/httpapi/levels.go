package httpapi

import (
	"fmt"
	"net/http"

	"github.com/bandfield/marchsim/internal/levels"
	"github.com/bandfield/marchsim/pkg/core"
)

func (s *Server) listLevels(w http.ResponseWriter, r *http.Request) {
	out, err := s.deps.Levels.ListLevels(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createLevel(w http.ResponseWriter, r *http.Request) {
	var l core.Level
	if err := decode(r, &l); err != nil {
		s.writeError(w, r, err)
		return
	}
	created, err := s.deps.Levels.CreateLevel(r.Context(), l)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) getLevel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	l, err := s.deps.Levels.GetLevel(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) updateLevel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var u levels.LevelUpdate
	if err := decode(r, &u); err != nil {
		s.writeError(w, r, err)
		return
	}
	l, err := s.deps.Levels.UpdateLevel(r.Context(), id, u)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) deleteLevel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.deps.Levels.DeleteLevel(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) addMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var m core.BandMember
	if err := decode(r, &m); err != nil {
		s.writeError(w, r, err)
		return
	}
	created, err := s.deps.Levels.AddBandMember(r.Context(), id, m)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) listMembers(w http.ResponseWriter, r *http.Request) {
	var (
		out []core.BandMember
		err error
	)
	if c := core.Category(r.URL.Query().Get("category")); c != "" {
		if !c.Valid() {
			s.writeError(w, r, fmt.Errorf("%w: unknown category %q", errBadRequest, c))
			return
		}
		out, err = s.deps.Levels.MembersByCategory(r.Context(), c)
	} else {
		out, err = s.deps.Levels.ListBandMembers(r.Context())
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	m, err := s.deps.Levels.GetBandMember(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) updateMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var u levels.MemberUpdate
	if err := decode(r, &u); err != nil {
		s.writeError(w, r, err)
		return
	}
	m, err := s.deps.Levels.UpdateBandMember(r.Context(), id, u)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

type positionBody struct {
	Start *core.Position2D `json:"start"`
	End   *core.Position2D `json:"end"`
}

func (s *Server) updatePosition(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var body positionBody
	if err := decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	m, err := s.deps.Levels.UpdatePosition(r.Context(), id, body.Start, body.End)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) deleteMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.deps.Levels.DeleteBandMember(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
