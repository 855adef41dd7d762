package main

import (
	"fmt"
	"os"

	"github.com/bandfield/marchsim/internal/config"
	"github.com/bandfield/marchsim/internal/levels"
	"github.com/bandfield/marchsim/internal/music"

	"github.com/spf13/cobra"
)

func renderCmd() *cobra.Command {
	var seconds, offset float64
	var sampleRate int

	cmd := &cobra.Command{
		Use:   "render <level-file> <out.wav>",
		Short: "Render a formation's music loop to a WAV file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if sampleRate <= 0 {
				sampleRate = config.GetMusicConfig().SampleRate
			}
			if err := renderFile(args[0], args[1], music.RenderOptions{
				SampleRate: sampleRate,
				Seconds:    seconds,
				Offset:     offset,
			}); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "wrote", args[1])
			return nil
		},
	}

	cmd.Flags().Float64Var(&seconds, "seconds", 0, "length to render, 0 renders one loop")
	cmd.Flags().Float64Var(&offset, "offset", 0, "start this many seconds into the loop")
	cmd.Flags().IntVar(&sampleRate, "sample-rate", 0, "override music.sampleRate")
	return cmd
}

func renderFile(levelPath, outPath string, opts music.RenderOptions) error {
	level, err := levels.LoadFile(levelPath)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", levelPath, err)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	if err := music.WriteWAV(out, music.Arrange(level.BandMembers), opts); err != nil {
		out.Close()
		os.Remove(outPath)
		return fmt.Errorf("failed to render %s: %w", level.Name, err)
	}
	return out.Close()
}
