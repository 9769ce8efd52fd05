package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/goclaw-memory/internal/memory"
)

func syncCmd() *cobra.Command {
	var reason string
	var actorsFrom string
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run a full indexing pass over the workspace and session transcripts",
		Run: func(cmd *cobra.Command, args []string) {
			ms, _, err := loadMemoryStore()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				os.Exit(1)
			}
			defer ms.Close()

			mgr := ms.Manager()
			ctx := context.Background()

			if actorsFrom != "" {
				snapshot, err := memory.LoadSessionSnapshot(actorsFrom)
				if err != nil {
					fmt.Fprintf(os.Stderr, "Error: %s\n", err)
					os.Exit(1)
				}
				if err := mgr.SyncActorsFromSnapshot(ctx, snapshot); err != nil {
					fmt.Fprintf(os.Stderr, "Error: sync actors from %s: %s\n", actorsFrom, err)
					os.Exit(1)
				}
			}

			report := func(p memory.Progress) {
				fmt.Printf("\r%s: %d/%d", p.Label, p.Completed, p.Total)
			}
			if err := mgr.IndexAllWithProgress(ctx, report); err != nil {
				fmt.Println()
				fmt.Fprintf(os.Stderr, "Error: sync (%s) failed: %s\n", reason, err)
				os.Exit(1)
			}
			fmt.Println()
			fmt.Printf("Sync complete. %d chunks indexed.\n", mgr.ChunkCount())
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "manual", "label for this sync run, shown in the error message if it fails")
	cmd.Flags().StringVar(&actorsFrom, "actors-from", "", "refresh the actor directory from a session-store snapshot JSON file before syncing")
	return cmd
}
