package playback

import (
	"time"

	"github.com/bandfield/marchsim/internal/sim"
	"github.com/bandfield/marchsim/pkg/core"
	"github.com/google/uuid"
)

func (h *Host) actorInfos() []core.ActorInfo {
	actors := h.session.Actors()
	out := make([]core.ActorInfo, len(actors))
	for i, a := range actors {
		out[i] = a.Def.Info()
	}
	return out
}

func (h *Host) startRun() {
	h.collisions = 0
	run := &core.Run{
		ID:        uuid.NewString(),
		SessionID: h.id,
		LevelID:   h.level.ID,
		LevelName: h.level.Name,
		Author:    h.level.Author,
		StartTime: time.Now(),
		TickRate:  h.opts.TickRate,
		Field:     h.session.Mapper().Field,
	}
	h.run = run
	h.opts.Metrics.runStarted()
	if h.rec != nil {
		h.rec.startRun(run, h.actorInfos())
	}
}

func (h *Host) endRun() {
	run := h.run
	h.run = nil
	if run == nil {
		return
	}
	h.opts.Metrics.runEnded()
	if h.rec == nil {
		return
	}
	summary := &core.RunSummary{
		RunID:      run.ID,
		EndTime:    time.Now(),
		Ticks:      h.session.Ticks(),
		Elapsed:    h.session.Elapsed(),
		HaltReason: string(h.session.HaltReason()),
		Complete:   h.session.Complete(),
		Progress:   h.session.Progress(),
		Collisions: h.collisions,
	}
	h.rec.endRun(summary)
}

func (h *Host) recordFrame(snap sim.Snapshot) {
	if h.rec == nil {
		return
	}
	f := snap.Frame(h.run.ID)
	f.Time = time.Now()
	h.rec.frame(&f)
}

func (h *Host) recordEvent(snap sim.Snapshot, kind, actorID, otherID, msg string) {
	if h.run == nil || h.rec == nil {
		return
	}
	e := &core.RunEvent{
		RunID:   h.run.ID,
		Tick:    snap.Tick,
		Time:    time.Now(),
		Elapsed: snap.Elapsed,
		Kind:    kind,
		ActorID: actorID,
		OtherID: otherID,
		Message: msg,
	}
	h.rec.event(e)
}
