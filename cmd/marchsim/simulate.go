package main

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/bandfield/marchsim/internal/config"
	"github.com/bandfield/marchsim/internal/geo"
	"github.com/bandfield/marchsim/internal/levels"
	"github.com/bandfield/marchsim/internal/sim"
	"github.com/bandfield/marchsim/internal/storage"
	"github.com/bandfield/marchsim/internal/storage/memory"
	"github.com/bandfield/marchsim/pkg/core"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// Outcome is what a headless run ends with.
type Outcome struct {
	Level      string
	Ticks      uint64
	Elapsed    float64
	HaltReason sim.HaltReason
	Complete   bool
	Progress   float64
	Collision  *sim.Collision
	TimedOut   bool
	Replay     string
}

func (o Outcome) String() string {
	switch {
	case o.TimedOut:
		return fmt.Sprintf("%s: still running after %.2fs (%d ticks, %.0f%% travelled)", o.Level, o.Elapsed, o.Ticks, o.Progress*100)
	case o.HaltReason == sim.HaltCollision && o.Collision != nil:
		return fmt.Sprintf("%s: collision between %s and %s at %.2fs (%d ticks, distance %.3f)",
			o.Level, o.Collision.FirstID, o.Collision.SecondID, o.Elapsed, o.Ticks, o.Collision.Distance)
	case o.Complete:
		return fmt.Sprintf("%s: complete in %.2fs (%d ticks)", o.Level, o.Elapsed, o.Ticks)
	default:
		return fmt.Sprintf("%s: all stopped at %.2fs, incomplete (%d ticks, %.0f%% travelled)", o.Level, o.Elapsed, o.Ticks, o.Progress*100)
	}
}

func simulateCmd() *cobra.Command {
	var maxSeconds float64
	var replayDir string

	cmd := &cobra.Command{
		Use:   "simulate <level-file>",
		Short: "Play a formation headless at a fixed step and print how it ends",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := levels.LoadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to load %s: %w", args[0], err)
			}
			mapper, err := fieldMapper()
			if err != nil {
				return fmt.Errorf("invalid field config: %w", err)
			}

			var rec storage.Backend
			if replayDir != "" {
				rec = memory.New(config.MemoryConfig{OutputDir: replayDir, CompressOutput: true})
			}

			out, err := simulate(level, mapper, config.GetPlaybackConfig().TickRate, maxSeconds, rec)
			if err != nil {
				return err
			}
			return printOutcome(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().Float64Var(&maxSeconds, "max-seconds", 600, "give up after this much simulated time")
	cmd.Flags().StringVar(&replayDir, "replay", "", "write a gzipped JSON replay into this directory")
	return cmd
}

func printOutcome(w io.Writer, out Outcome) error {
	if _, err := fmt.Fprintln(w, out); err != nil {
		return err
	}
	if out.Replay != "" {
		_, err := fmt.Fprintln(w, "replay:", out.Replay)
		return err
	}
	return nil
}

// simulate plays the level with a fixed dt of 1/tickRate until it halts or
// maxSeconds of simulated time pass. Every tick is recorded when rec is set.
func simulate(level core.Level, mapper geo.Mapper, tickRate int, maxSeconds float64, rec storage.Backend) (Outcome, error) {
	if tickRate <= 0 {
		return Outcome{}, fmt.Errorf("invalid tick rate %d", tickRate)
	}
	session, err := sim.NewSession(levels.Definitions(level), mapper)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to build session: %w", err)
	}

	dt := 1 / float64(tickRate)
	maxTicks := uint64(math.Ceil(maxSeconds * float64(tickRate)))
	run := &core.Run{
		ID:        uuid.NewString(),
		SessionID: "simulate",
		LevelID:   level.ID,
		LevelName: level.Name,
		Author:    level.Author,
		StartTime: time.Now(),
		TickRate:  tickRate,
		Field:     mapper.Field,
	}

	if rec != nil {
		if err := rec.Init(); err != nil {
			return Outcome{}, err
		}
		defer rec.Close()
		actors := session.Actors()
		infos := make([]core.ActorInfo, len(actors))
		for i, a := range actors {
			infos[i] = a.Def.Info()
		}
		if err := rec.StartRun(run, infos); err != nil {
			return Outcome{}, fmt.Errorf("failed to start recording: %w", err)
		}
	}

	session.Play()
	out := Outcome{Level: level.Name}
	for {
		res := session.Step(dt)
		if rec != nil {
			f := session.Snapshot().Frame(run.ID)
			f.Time = run.StartTime.Add(time.Duration(session.Elapsed() * float64(time.Second)))
			if err := rec.RecordFrame(&f); err != nil {
				return Outcome{}, err
			}
		}
		if res.Halted {
			out.Collision = res.Collision
			break
		}
		if session.Ticks() >= maxTicks {
			out.TimedOut = true
			break
		}
	}

	out.Ticks = session.Ticks()
	out.Elapsed = session.Elapsed()
	out.HaltReason = session.HaltReason()
	out.Complete = session.Complete()
	out.Progress = session.Progress()

	if rec != nil {
		if err := recordOutcome(rec, run, out); err != nil {
			return out, err
		}
		if u, ok := rec.(storage.Uploadable); ok {
			out.Replay = u.GetExportedFilePath()
		}
	}
	return out, nil
}

func recordOutcome(rec storage.Backend, run *core.Run, out Outcome) error {
	end := run.StartTime.Add(time.Duration(out.Elapsed * float64(time.Second)))
	var collisions int
	if out.Collision != nil {
		collisions = 1
		if err := rec.RecordEvent(&core.RunEvent{
			RunID:   run.ID,
			Tick:    out.Ticks,
			Time:    end,
			Elapsed: out.Elapsed,
			Kind:    core.EventCollision,
			ActorID: out.Collision.FirstID,
			OtherID: out.Collision.SecondID,
			Message: fmt.Sprintf("distance %.3f", out.Collision.Distance),
		}); err != nil {
			return err
		}
	} else if !out.TimedOut {
		kind := core.EventIncomplete
		if out.Complete {
			kind = core.EventComplete
		}
		if err := rec.RecordEvent(&core.RunEvent{
			RunID: run.ID, Tick: out.Ticks, Time: end, Elapsed: out.Elapsed, Kind: kind,
		}); err != nil {
			return err
		}
	}
	return rec.EndRun(&core.RunSummary{
		RunID:      run.ID,
		EndTime:    end,
		Ticks:      out.Ticks,
		Elapsed:    out.Elapsed,
		HaltReason: string(out.HaltReason),
		Complete:   out.Complete,
		Progress:   out.Progress,
		Collisions: collisions,
	})
}
