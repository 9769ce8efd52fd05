package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/goclaw-memory/internal/memory"
)

func searchCmd() *cobra.Command {
	var (
		mode        string
		maxResults  int
		minScore    float64
		sessionKey  string
		actorID     string
		jsonOutput  bool
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search memory files and session transcripts",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ms, _, err := loadMemoryStore()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				os.Exit(1)
			}
			defer ms.Close()

			opts := memory.SearchOptions{
				Query:      args[0],
				Mode:       memory.Mode(mode),
				MaxResults: maxResults,
				MinScore:   minScore,
				SessionKey: sessionKey,
				ActorID:    actorID,
			}
			switch {
			case sessionKey != "":
				opts.Scope = memory.ScopeSession
			case actorID != "":
				opts.Scope = memory.ScopeActor
			}
			results, err := ms.Search(context.Background(), args[0], opts)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: search failed: %s\n", err)
				os.Exit(1)
			}

			if jsonOutput {
				data, _ := json.MarshalIndent(results, "", "  ")
				fmt.Println(string(data))
				return
			}
			if len(results) == 0 {
				fmt.Println("No results.")
				return
			}
			for _, r := range results {
				fmt.Printf("%.3f  %s:%d-%d\n  %s\n\n", r.Score, r.Path, r.StartLine, r.EndLine, r.Snippet)
			}
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "hybrid", "retrieval mode: hybrid, vector, or keyword")
	cmd.Flags().IntVar(&maxResults, "max-results", 10, "maximum results to return")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "minimum relevance score")
	cmd.Flags().StringVar(&sessionKey, "session-key", "", "restrict to this session's transcript (scope=session; takes precedence over --actor-id)")
	cmd.Flags().StringVar(&actorID, "actor-id", "", "restrict to this actor (scope=actor)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}
