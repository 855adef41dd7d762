package main

import (
	"fmt"

	"github.com/bandfield/marchsim/internal/cache"
	"github.com/bandfield/marchsim/internal/levels"

	"github.com/spf13/cobra"
)

func seedCmd() *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert the demo level, or a formation file, into the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dbm, err := openDatabase()
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer dbm.Close()
			if dbm.ShouldSaveLocal {
				Logger.Warn("Seeding an in-memory database, nothing will persist", "dumpPath", dbm.SqliteFilePath)
				defer dbm.DumpMemoryToDisk()
			}

			store := levels.NewStore(dbm.DB, cache.NewLevelCache())
			ctx := cmd.Context()
			if from == "" {
				l, err := store.SeedTestLevel(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "seeded level %d %q\n", l.ID, l.Name)
				return nil
			}

			level, err := levels.LoadFile(from)
			if err != nil {
				return fmt.Errorf("failed to load %s: %w", from, err)
			}
			l, err := store.CreateLevel(ctx, level)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created level %d %q with %d members\n", l.ID, l.Name, len(l.BandMembers))
			return nil
		},
	}

	cmd.Flags().StringVarP(&from, "file", "f", "", "formation YAML to insert instead of the demo level")
	return cmd
}
