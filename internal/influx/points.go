package influx

import (
	"time"

	"github.com/bandfield/marchsim/internal/model"
	"github.com/bandfield/marchsim/pkg/core"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
)

// RunPoint summarises a finished run.
func RunPoint(run core.Run, s core.RunSummary) *influxdb2_write.Point {
	return influxdb2_write.NewPoint(
		"run_summary",
		map[string]string{
			"level":       run.LevelName,
			"author":      run.Author,
			"halt_reason": s.HaltReason,
		},
		map[string]any{
			"run_id":     s.RunID,
			"session_id": run.SessionID,
			"ticks":      int64(s.Ticks),
			"elapsed":    s.Elapsed,
			"progress":   s.Progress,
			"complete":   s.Complete,
			"collisions": s.Collisions,
		},
		s.EndTime,
	)
}

// EventPoint records one run event.
func EventPoint(run core.Run, e core.RunEvent) *influxdb2_write.Point {
	p := influxdb2_write.NewPointWithMeasurement("run_event").
		AddTag("kind", e.Kind).
		AddTag("level", run.LevelName).
		AddField("run_id", e.RunID).
		AddField("tick", int64(e.Tick)).
		AddField("elapsed", e.Elapsed).
		SetTime(e.Time)
	if e.ActorID != "" {
		p.AddField("actor_id", e.ActorID)
	}
	if e.OtherID != "" {
		p.AddField("other_id", e.OtherID)
	}
	return p
}

// HostPoint records one host performance sample.
func HostPoint(perf model.HostPerformance) *influxdb2_write.Point {
	t := perf.Time
	if t.IsZero() {
		t = time.Now()
	}
	return influxdb2_write.NewPointWithMeasurement("host").
		AddField("open_sessions", perf.OpenSessions).
		AddField("running_sessions", perf.RunningSessions).
		AddField("ticks", int64(perf.Ticks)).
		AddField("frames_dropped", int64(perf.FramesDropped)).
		AddField("record_pending", perf.RecordPending).
		AddField("record_dropped", int64(perf.RecordDropped)).
		AddField("cached_levels", perf.CachedLevels).
		AddField("cache_hits", perf.CacheHits).
		AddField("cache_misses", perf.CacheMisses).
		AddField("writequeue_actor_states", perf.WriteQueueLengths.ActorStates).
		AddField("writequeue_playback_events", perf.WriteQueueLengths.PlaybackEvents).
		AddField("last_write_ms", perf.LastWriteDurationMs).
		SetTime(t)
}
